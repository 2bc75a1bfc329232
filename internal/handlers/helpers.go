package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/attendly/backend/internal/models"
	"github.com/attendly/backend/pkg/apperrors"
	"github.com/labstack/echo/v4"
)

// getUserIDFromContext extracts the authenticated user ID set by the JWT middleware.
func getUserIDFromContext(c echo.Context) uint {
	claims, ok := c.Get("user").(*models.JwtCustomClaims)
	if !ok {
		return 0
	}
	return claims.UserID
}

func parseUintParam(c echo.Context, name string) (uint, error) {
	value, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return uint(value), nil
}

func parsePagination(c echo.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}
	return page, limit
}

// toHTTPError translates typed core errors into the external response.
func toHTTPError(err error) error {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	status := http.StatusInternalServerError
	switch appErr.Code {
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodeConflict:
		status = http.StatusConflict
	case apperrors.CodeForbidden:
		status = http.StatusForbidden
	case apperrors.CodeValidation:
		status = http.StatusUnprocessableEntity
	}
	return echo.NewHTTPError(status, appErr.Message)
}
