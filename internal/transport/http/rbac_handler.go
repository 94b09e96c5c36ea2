package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/njprem/agri_admin_backend/internal/domain"
	"github.com/njprem/agri_admin_backend/internal/service"
	"github.com/njprem/agri_admin_backend/internal/util"
)

type RBACHandler struct {
	roles *service.RoleService
}

type assignRoleRequest struct {
	UserID uuid.UUID `json:"userId"`
	RoleID uuid.UUID `json:"roleId"`
}

func RegisterRBAC(e *echo.Echo, auth *service.AuthService, roles *service.RoleService) {
	h := &RBACHandler{roles: roles}

	group := e.Group(apiPrefix+"/admin/rbac", RequireAuth(auth))
	group.GET("/users/:id/permissions", h.userPermissions)

	admin := group.Group("", RequireSuperAdmin())
	admin.GET("/roles", h.list)
	admin.GET("/users", h.listUsers)
	admin.POST("/roles", h.create)
	admin.PUT("/roles/:id", h.update)
	admin.DELETE("/roles/:id", h.remove)
	admin.PUT("/roles/:id/activate", h.activate)
	admin.PUT("/roles/:id/deactivate", h.deactivate)
	admin.POST("/assign", h.assign)
}

func (h *RBACHandler) list(c echo.Context) error {
	roles, err := h.roles.List(c.Request().Context())
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.OK(roles))
}

func (h *RBACHandler) listUsers(c echo.Context) error {
	users, err := h.roles.ListUsers(c.Request().Context())
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.OK(users))
}

func (h *RBACHandler) create(c echo.Context) error {
	var in domain.RoleInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid role payload"))
	}
	role, err := h.roles.Create(c.Request().Context(), in)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, util.OK(role))
}

func (h *RBACHandler) update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid role id"))
	}
	var in domain.RoleInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid role payload"))
	}
	role, err := h.roles.Update(c.Request().Context(), id, in)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.OK(role))
}

func (h *RBACHandler) remove(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid role id"))
	}
	if err := h.roles.Delete(c.Request().Context(), id); err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.OK(echo.Map{"deleted": id}))
}

func (h *RBACHandler) activate(c echo.Context) error   { return h.setActive(c, true) }
func (h *RBACHandler) deactivate(c echo.Context) error { return h.setActive(c, false) }

func (h *RBACHandler) setActive(c echo.Context, active bool) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid role id"))
	}
	role, err := h.roles.SetActive(c.Request().Context(), id, active)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.OK(role))
}

func (h *RBACHandler) assign(c echo.Context) error {
	var req assignRoleRequest
	if err := c.Bind(&req); err != nil || req.UserID == uuid.Nil || req.RoleID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, util.Error("userId and roleId are required"))
	}
	assignment, err := h.roles.Assign(c.Request().Context(), req.UserID, req.RoleID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.OK(assignment))
}

// userPermissions is open to the user themself and to super admins.
func (h *RBACHandler) userPermissions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid user id"))
	}
	user, _ := CurrentUser(c)
	if user.ID != id && !user.IsSuperAdmin() {
		return c.JSON(http.StatusForbidden, util.Error(service.ErrSuperAdminRequired.Error()))
	}
	perms, err := h.roles.UserPermissions(c.Request().Context(), id)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.OK(perms))
}

func (h *RBACHandler) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrRoleNameRequired),
		errors.Is(err, service.ErrRoleNoModules),
		errors.Is(err, service.ErrRoleNoPermissions),
		errors.Is(err, service.ErrRoleUnknownModule),
		errors.Is(err, service.ErrRoleUnknownPerm),
		errors.Is(err, service.ErrRoleInactive):
		return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
	case errors.Is(err, service.ErrRoleNotFound), errors.Is(err, service.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, util.Error(err.Error()))
	case errors.Is(err, service.ErrRoleExists), errors.Is(err, service.ErrRoleInUse):
		return c.JSON(http.StatusConflict, util.Error(err.Error()))
	default:
		c.Logger().Errorf("rbac: %v", err)
		return c.JSON(http.StatusInternalServerError, util.Error("internal error"))
	}
}
