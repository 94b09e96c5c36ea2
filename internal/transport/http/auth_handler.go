package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/njprem/agri_admin_backend/internal/service"
	"github.com/njprem/agri_admin_backend/internal/util"
)

type AuthHandler struct {
	auth  *service.AuthService
	roles *service.RoleService
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func RegisterAuth(e *echo.Echo, auth *service.AuthService, roles *service.RoleService) {
	h := &AuthHandler{auth: auth, roles: roles}
	e.POST(apiPrefix+"/auth/login", h.login)
	e.GET(apiPrefix+"/auth/me", h.me, RequireAuth(auth))
}

func (h *AuthHandler) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	result, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrAccountDisabled):
			return c.JSON(http.StatusUnauthorized, util.Error(err.Error()))
		default:
			c.Logger().Errorf("login: %v", err)
			return c.JSON(http.StatusInternalServerError, util.Error("internal error"))
		}
	}
	return c.JSON(http.StatusOK, util.OK(result))
}

func (h *AuthHandler) me(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}
	perms, err := h.roles.UserPermissions(c.Request().Context(), user.ID)
	if err != nil {
		c.Logger().Errorf("me: %v", err)
		return c.JSON(http.StatusInternalServerError, util.Error("internal error"))
	}
	return c.JSON(http.StatusOK, util.OK(echo.Map{
		"user":        user,
		"superAdmin":  user.IsSuperAdmin(),
		"permissions": perms,
	}))
}
