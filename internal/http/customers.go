package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/outline-admin/internal/model"
	"github.com/jmehdipour/outline-admin/internal/repository"
	"github.com/jmehdipour/outline-admin/internal/service/customer"
	echo "github.com/labstack/echo/v4"
)

// CustomerService is the lifecycle API the handlers drive.
type CustomerService interface {
	Create(ctx context.Context, in customer.CreateInput) (*model.Customer, error)
	Get(ctx context.Context, id string) (*model.Customer, error)
	List(ctx context.Context, f repository.CustomerFilter) ([]model.Customer, error)
	Update(ctx context.Context, id string, in customer.UpdateInput) (*model.Customer, error)
	Delete(ctx context.Context, id string) error
	Renew(ctx context.Context, id string, planDays int) (*model.Customer, error)
	Revoke(ctx context.Context, id string) (*model.Customer, error)
	Lock(ctx context.Context, id string) error
	Unlock(ctx context.Context, id string) error
	ExpireSweep(ctx context.Context) (customer.SweepResult, error)
}

var _ CustomerService = (*customer.Service)(nil)

type createCustomerRequest struct {
	Name     string      `json:"name"`
	Phone    *string     `json:"phone"`
	PlanDays json.Number `json:"planDays"`
}

type updateCustomerRequest struct {
	Name  *string         `json:"name"`
	Phone json.RawMessage `json:"phone"` // absent: keep, null or "": clear
}

type renewCustomerRequest struct {
	PlanDays json.Number `json:"planDays"`
}

// planDays accepts integers given as JSON numbers or numeric strings.
// Anything else yields 0.
func planDays(n json.Number) int {
	v, err := strconv.Atoi(strings.TrimSpace(n.String()))
	if err != nil {
		return 0
	}
	return v
}

func listCustomersHandler(svc CustomerService) echo.HandlerFunc {
	return func(c echo.Context) error {
		f := repository.CustomerFilter{Search: strings.TrimSpace(c.QueryParam("q"))}

		if raw := c.QueryParam("status"); raw != "" {
			st, ok := model.ParseCustomerStatus(raw)
			if !ok {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid status"})
			}
			f.Status = st
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

		customers, err := svc.List(c.Request().Context(), f)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"customers": customers})
	}
}

func getCustomerHandler(svc CustomerService) echo.HandlerFunc {
	return func(c echo.Context) error {
		cu, err := svc.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"customer": cu})
	}
}

func createCustomerHandler(svc CustomerService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createCustomerRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
		}

		cu, err := svc.Create(c.Request().Context(), customer.CreateInput{
			Name:     req.Name,
			Phone:    req.Phone,
			PlanDays: planDays(req.PlanDays),
		})
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"customer": cu})
	}
}

func updateCustomerHandler(svc CustomerService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req updateCustomerRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
		}

		in := customer.UpdateInput{Name: req.Name}
		if len(req.Phone) > 0 {
			in.SetPhone = true
			if string(req.Phone) != "null" {
				var phone string
				if err := json.Unmarshal(req.Phone, &phone); err != nil {
					return c.JSON(http.StatusBadRequest, map[string]string{"error": "phone must be a string"})
				}
				in.Phone = &phone
			}
		}

		cu, err := svc.Update(c.Request().Context(), c.Param("id"), in)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"customer": cu})
	}
}

func deleteCustomerHandler(svc CustomerService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	}
}

func renewCustomerHandler(svc CustomerService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req renewCustomerRequest
		_ = c.Bind(&req) // missing or invalid planDays keeps the current plan

		cu, err := svc.Renew(c.Request().Context(), c.Param("id"), planDays(req.PlanDays))
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"customer": cu})
	}
}

func revokeCustomerHandler(svc CustomerService) echo.HandlerFunc {
	return func(c echo.Context) error {
		cu, err := svc.Revoke(c.Request().Context(), c.Param("id"))
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"customer": cu})
	}
}

func lockCustomerHandler(svc CustomerService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.Lock(c.Request().Context(), c.Param("id")); err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"message": "Device access locked (data limit set to 0)",
		})
	}
}

func unlockCustomerHandler(svc CustomerService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.Unlock(c.Request().Context(), c.Param("id")); err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"message": "Device access unlocked (data limit removed)",
		})
	}
}

func expireHandler(svc CustomerService) echo.HandlerFunc {
	return func(c echo.Context) error {
		res, err := svc.ExpireSweep(c.Request().Context())
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, res)
	}
}
