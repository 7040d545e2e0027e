package http

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/outline-admin/internal/errs"
	"github.com/jmehdipour/outline-admin/internal/outline"
	echo "github.com/labstack/echo/v4"
)

// errorJSON maps service errors onto status codes. Only sentinel and upstream
// errors expose their message; anything else is logged and hidden.
func errorJSON(c echo.Context, err error) error {
	var apiErr *outline.APIError

	switch {
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrConflict):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, errs.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, errs.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	case errors.Is(err, errs.ErrBusy):
		return c.JSON(http.StatusConflict, map[string]string{"error": "customer is busy, retry shortly"})
	case errors.As(err, &apiErr):
		c.Logger().Errorf("outline %s failed: %v", apiErr.Op, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": apiErr.Error()})
	case errors.Is(err, outline.ErrCircuitOpen):
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "outline api unavailable"})
	default:
		c.Logger().Errorf("request failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
