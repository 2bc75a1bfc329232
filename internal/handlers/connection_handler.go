package handlers

import (
	"net/http"

	"github.com/attendly/backend/internal/models"
	"github.com/attendly/backend/internal/repositories"
	"github.com/attendly/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ConnectionHandler handles HTTP requests related to connections
type ConnectionHandler struct {
	connectionService *services.ConnectionService
	userRepository    repositories.UserRepository
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(connectionService *services.ConnectionService, userRepo repositories.UserRepository) *ConnectionHandler {
	return &ConnectionHandler{
		connectionService: connectionService,
		userRepository:    userRepo,
	}
}

// RegisterConnectionRoutes registers connection-related routes
func (h *ConnectionHandler) RegisterConnectionRoutes(g *echo.Group) {
	g.POST("/connections/request", h.SendConnectionRequest)
	g.GET("/connections/requests/pending", h.GetPendingRequests)
	g.PUT("/connections/:id/respond", h.RespondToRequest)
	g.GET("/connections", h.GetConnections)
	g.DELETE("/connections/:id", h.RemoveConnection)
}

// SendConnectionRequest handles sending a connection request with an icebreaker
func (h *ConnectionHandler) SendConnectionRequest(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreateConnectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conn, err := h.connectionService.CreateRequest(c.Request().Context(), currentUserID, req.RecipientID, req.Icebreaker, req.EventID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, h.toView(c, conn))
}

// GetPendingRequests retrieves pending connection requests for the authenticated user
func (h *ConnectionHandler) GetPendingRequests(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	conns, err := h.connectionService.ListPending(c.Request().Context(), currentUserID)
	if err != nil {
		return toHTTPError(err)
	}
	views := make([]models.ConnectionView, 0, len(conns))
	for i := range conns {
		views = append(views, h.toView(c, &conns[i]))
	}
	return c.JSON(http.StatusOK, views)
}

// RespondToRequest accepts or rejects a pending connection request
func (h *ConnectionHandler) RespondToRequest(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	connectionID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var req models.RespondConnectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conn, err := h.connectionService.Respond(c.Request().Context(), connectionID, currentUserID, req.Action == "accept")
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, h.toView(c, conn))
}

// GetConnections retrieves the authenticated user's accepted connections
func (h *ConnectionHandler) GetConnections(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	conns, err := h.connectionService.ListAccepted(c.Request().Context(), currentUserID)
	if err != nil {
		return toHTTPError(err)
	}
	views := make([]models.ConnectionView, 0, len(conns))
	for i := range conns {
		views = append(views, h.toView(c, &conns[i]))
	}
	return c.JSON(http.StatusOK, views)
}

// RemoveConnection dissolves an accepted connection
func (h *ConnectionHandler) RemoveConnection(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	connectionID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.connectionService.Remove(c.Request().Context(), connectionID, currentUserID); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ConnectionHandler) toView(c echo.Context, conn *models.Connection) models.ConnectionView {
	view := models.ConnectionView{
		ID:                 conn.ID,
		Status:             conn.Status,
		IcebreakerMessage:  conn.IcebreakerMessage,
		OriginatingEventID: conn.OriginatingEventID,
		CreatedAt:          conn.CreatedAt,
		UpdatedAt:          conn.UpdatedAt,
	}
	ctx := c.Request().Context()
	if requester, err := h.userRepository.GetUserByID(ctx, conn.RequesterID); err == nil {
		view.Requester = requester.ToCompact()
	} else {
		view.Requester = models.UserCompact{ID: conn.RequesterID}
	}
	if recipient, err := h.userRepository.GetUserByID(ctx, conn.RecipientID); err == nil {
		view.Recipient = recipient.ToCompact()
	} else {
		view.Recipient = models.UserCompact{ID: conn.RecipientID}
	}
	return view
}
