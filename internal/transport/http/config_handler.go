package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/njprem/agri_admin_backend/internal/domain"
	"github.com/njprem/agri_admin_backend/internal/service"
	"github.com/njprem/agri_admin_backend/internal/util"
)

const maxSettingsBody = 256 * 1024

// ConfigHandler serves code formats and system settings. Reads are open to
// every signed-in user; writes need a super admin.
type ConfigHandler struct {
	codes    *service.CodeFormatService
	settings *service.SettingsService
}

func RegisterConfig(e *echo.Echo, auth *service.AuthService, codes *service.CodeFormatService, settings *service.SettingsService) {
	h := &ConfigHandler{codes: codes, settings: settings}

	group := e.Group(apiPrefix+"/admin", RequireAuth(auth))
	group.GET("/code-formats", h.listCodeFormats)
	group.GET("/settings/:category", h.getSettings)

	admin := group.Group("", RequireSuperAdmin())
	admin.POST("/code-formats", h.createCodeFormat)
	admin.PUT("/code-formats/:id", h.updateCodeFormat)
	admin.POST("/code-formats/:type/next", h.nextCode)
	admin.PUT("/settings/:category", h.putSettings)
}

func (h *ConfigHandler) listCodeFormats(c echo.Context) error {
	formats, err := h.codes.List(c.Request().Context())
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.OK(formats))
}

func (h *ConfigHandler) createCodeFormat(c echo.Context) error {
	var in service.CodeFormatInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid code format payload"))
	}
	in.CodeType = domain.CodeType(strings.ToUpper(strings.TrimSpace(string(in.CodeType))))
	created, err := h.codes.Create(c.Request().Context(), in)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, util.OK(created))
}

func (h *ConfigHandler) updateCodeFormat(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid code format id"))
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxSettingsBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid code format payload"))
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid code format payload"))
	}
	if _, ok := raw["startingNumber"]; ok {
		return h.writeError(c, service.ErrStartingNumberReadOnly)
	}
	var update domain.CodeFormatUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid code format payload"))
	}
	updated, err := h.codes.Update(c.Request().Context(), id, update)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.OK(updated))
}

func (h *ConfigHandler) nextCode(c echo.Context) error {
	codeType := domain.CodeType(strings.ToUpper(c.Param("type")))
	code, err := h.codes.NextCode(c.Request().Context(), codeType)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.OK(echo.Map{"code": code}))
}

func (h *ConfigHandler) getSettings(c echo.Context) error {
	raw, err := h.settings.Get(c.Request().Context(), domain.SettingCategory(c.Param("category")))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.OK(raw))
}

func (h *ConfigHandler) putSettings(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxSettingsBody))
	if err != nil || !json.Valid(body) {
		return c.JSON(http.StatusBadRequest, util.Error("settings payload must be JSON"))
	}
	stored, err := h.settings.Put(c.Request().Context(), domain.SettingCategory(c.Param("category")), body)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.OK(stored))
}

func (h *ConfigHandler) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidCodeFormat),
		errors.Is(err, service.ErrStartingNumberReadOnly),
		errors.Is(err, service.ErrInvalidSettings):
		return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
	case errors.Is(err, service.ErrCodeFormatNotFound),
		errors.Is(err, service.ErrNoActiveCodeFormat),
		errors.Is(err, service.ErrUnknownSetting):
		return c.JSON(http.StatusNotFound, util.Error(err.Error()))
	case errors.Is(err, service.ErrCodeFormatExists):
		return c.JSON(http.StatusConflict, util.Error(err.Error()))
	default:
		c.Logger().Errorf("config: %v", err)
		return c.JSON(http.StatusInternalServerError, util.Error("internal error"))
	}
}
