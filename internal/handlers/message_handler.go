package handlers

import (
	"math"
	"net/http"

	"github.com/attendly/backend/internal/models"
	"github.com/attendly/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// MessageHandler handles HTTP requests related to direct messages
type MessageHandler struct {
	messageService *services.MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// RegisterMessageRoutes registers message-related routes
func (h *MessageHandler) RegisterMessageRoutes(g *echo.Group) {
	g.GET("/threads/:id/messages", h.ListMessages)
	g.POST("/threads/:id/messages", h.SendMessage)
	g.PUT("/threads/:id/read", h.MarkRead)
}

// ListMessages returns a page of messages in a thread, respecting the caller's cutoff
func (h *MessageHandler) ListMessages(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	threadID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	page, limit := parsePagination(c)

	messages, total, err := h.messageService.ListMessages(c.Request().Context(), threadID, currentUserID, page, limit)
	if err != nil {
		return toHTTPError(err)
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"messages": messages,
		},
		"meta": echo.Map{
			"currentPage":     page,
			"totalPages":      totalPages,
			"totalItems":      total,
			"itemsPerPage":    limit,
			"hasNextPage":     page < totalPages,
			"hasPreviousPage": page > 1,
		},
	})
}

// SendMessage posts a new message into a thread
func (h *MessageHandler) SendMessage(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	threadID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var req models.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg, err := h.messageService.SendMessage(c.Request().Context(), threadID, currentUserID, req.Content, req.EncryptedContent)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// MarkRead marks the counterpart's messages in a thread as read
func (h *MessageHandler) MarkRead(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	threadID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.messageService.MarkRead(c.Request().Context(), threadID, currentUserID); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
