package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/outline-admin/internal/model"
	"github.com/jmehdipour/outline-admin/internal/repository"
	echo "github.com/labstack/echo/v4"
)

func listAuditHandler(reader repository.AuditReader) echo.HandlerFunc {
	return func(c echo.Context) error {
		f := repository.AuditFilter{
			CustomerID: strings.TrimSpace(c.QueryParam("customer_id")),
			Limit:      50,
		}
		if raw := strings.TrimSpace(c.QueryParam("action")); raw != "" {
			a := model.AuditAction(raw)
			if !a.Valid() {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid action"})
			}
			f.Action = a
		}
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				f.Limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				f.Offset = n
			}
		}

		logs, err := reader.List(c.Request().Context(), f)
		if err != nil {
			c.Logger().Errorf("audit list failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":  f.Limit,
			"offset": f.Offset,
			"items":  logs,
		})
	}
}
