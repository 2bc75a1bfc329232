package handlers

import (
	"net/http"
	"strconv"

	"github.com/attendly/backend/internal/models"
	"github.com/attendly/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ThreadHandler handles HTTP requests related to message threads
type ThreadHandler struct {
	threadService  *services.ThreadService
	messageService *services.MessageService
}

// NewThreadHandler creates a new ThreadHandler
func NewThreadHandler(threadService *services.ThreadService, messageService *services.MessageService) *ThreadHandler {
	return &ThreadHandler{
		threadService:  threadService,
		messageService: messageService,
	}
}

// RegisterThreadRoutes registers thread-related routes
func (h *ThreadHandler) RegisterThreadRoutes(g *echo.Group) {
	g.GET("/threads", h.ListThreads)
	g.POST("/threads", h.OpenThread)
	g.POST("/threads/:id/clear", h.ClearHistory)
}

// ListThreads returns the authenticated user's visible threads
func (h *ThreadHandler) ListThreads(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var eventContext *uint
	if raw := c.QueryParam("event_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid event_id")
		}
		eventID := uint(parsed)
		eventContext = &eventID
	}

	summaries, err := h.threadService.ListVisibleThreads(c.Request().Context(), currentUserID, eventContext)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"threads": summaries},
	})
}

// OpenThread gets or creates a conversation with another user
func (h *ThreadHandler) OpenThread(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.StartThreadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	thread, err := h.messageService.OpenThread(c.Request().Context(), currentUserID, req.RecipientID, req.EventID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, thread)
}

// ClearHistory hides the thread's current messages from the caller only
func (h *ThreadHandler) ClearHistory(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	threadID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.threadService.ClearForUser(c.Request().Context(), threadID, currentUserID); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
