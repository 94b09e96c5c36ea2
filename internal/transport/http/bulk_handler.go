package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/njprem/agri_admin_backend/internal/domain"
	"github.com/njprem/agri_admin_backend/internal/service"
	"github.com/njprem/agri_admin_backend/internal/util"
)

const defaultStatusErrorLimit = 10

type BulkHandler struct {
	imports       *service.BulkImportService
	exports       *service.BulkExportService
	maxUploadSize int64
}

func RegisterBulk(e *echo.Echo, auth *service.AuthService, imports *service.BulkImportService, exports *service.BulkExportService, maxUpload int64) {
	h := &BulkHandler{imports: imports, exports: exports, maxUploadSize: maxUpload}

	group := e.Group(apiPrefix, RequireAuth(auth))
	group.POST("/:entity/bulk/import", h.importFile)
	group.POST("/:entity/bulk/export", h.export)
	group.GET("/:entity/bulk/template", h.template)
	group.GET("/bulk/import/:id/status", h.status)
	group.GET("/bulk/import/:id/errors.csv", h.errorReport)
	group.GET("/bulk/import/:id/file", h.originalFile)
	group.POST("/farmers/bulk/assign-by-location", h.assignByLocation)
}

func (h *BulkHandler) importFile(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}
	entity, ok := domain.ParseEntityType(c.Param("entity"))
	if !ok {
		return c.JSON(http.StatusNotFound, util.Error(service.ErrUnknownEntity.Error()))
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("file is required"))
	}
	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("unable to read upload"))
	}
	defer src.Close()

	limit := h.maxUploadSize
	if limit <= 0 {
		limit = 10 * 1024 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("failed reading upload"))
	}
	if int64(len(data)) > limit {
		return c.JSON(http.StatusRequestEntityTooLarge, util.Error(service.ErrImportTooLarge.Error()))
	}

	autoAssign, _ := strconv.ParseBool(strings.TrimSpace(c.FormValue("autoAssign")))
	strategy := domain.AssignmentStrategy(strings.ToUpper(strings.TrimSpace(c.FormValue("assignmentStrategy"))))
	if strategy != "" && strategy != domain.AssignmentManual && strategy != domain.AssignmentByLocation {
		return c.JSON(http.StatusBadRequest, util.Error("assignmentStrategy must be MANUAL or LOCATION"))
	}

	job, err := h.imports.Submit(c.Request().Context(), service.ImportRequest{
		Uploader:    user,
		Entity:      entity,
		FileName:    file.Filename,
		ContentType: file.Header.Get(echo.HeaderContentType),
		Contents:    data,
		AutoAssign:  autoAssign,
		Strategy:    strategy,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	code := http.StatusOK
	if !job.Status.Terminal() {
		code = http.StatusAccepted
	}
	return c.JSON(code, util.OK(job))
}

func (h *BulkHandler) status(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid import id"))
	}
	limit := defaultStatusErrorLimit
	if raw := c.QueryParam("errorLimit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, util.Error("errorLimit must be a non-negative integer"))
		}
		limit = n
	}
	job, err := h.imports.GetStatus(c.Request().Context(), user, id, limit)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.OK(job))
}

func (h *BulkHandler) errorReport(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid import id"))
	}
	data, err := h.imports.ErrorReport(c.Request().Context(), user, id)
	if err != nil {
		return h.writeError(c, err)
	}
	return attachment(c, fmt.Sprintf("import_%s_errors.csv", id), domain.MIMECSV, data)
}

func (h *BulkHandler) originalFile(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid import id"))
	}
	job, data, err := h.imports.OriginalFile(c.Request().Context(), user, id)
	if err != nil {
		return h.writeError(c, err)
	}
	contentType := domain.MIMEExcel
	if domain.ImportFileKind(job.FileName, "") == "csv" {
		contentType = domain.MIMECSV
	}
	return attachment(c, job.FileName, contentType, data)
}

func (h *BulkHandler) template(c echo.Context) error {
	entity, ok := domain.ParseEntityType(c.Param("entity"))
	if !ok {
		return c.JSON(http.StatusNotFound, util.Error(service.ErrUnknownEntity.Error()))
	}
	data, err := h.imports.Template(entity)
	if err != nil {
		return h.writeError(c, err)
	}
	return attachment(c, entity.Lower()+"_import_template.xlsx", domain.MIMEExcel, data)
}

func (h *BulkHandler) export(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}
	entity, ok := domain.ParseEntityType(c.Param("entity"))
	if !ok {
		return c.JSON(http.StatusNotFound, util.Error(service.ErrUnknownEntity.Error()))
	}
	var req domain.ExportRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid export request"))
	}
	req.Format = domain.ExportFormat(strings.ToUpper(strings.TrimSpace(string(req.Format))))

	result, err := h.exports.Export(c.Request().Context(), user, entity, req)
	if err != nil {
		return h.writeError(c, err)
	}
	c.Response().Header().Set("X-Export-Rows", strconv.Itoa(result.Rows))
	return attachment(c, result.FileName, result.ContentType, result.Data)
}

type assignByLocationRequest struct {
	Location      string `json:"location"`
	EmployeeEmail string `json:"employeeEmail"`
}

func (h *BulkHandler) assignByLocation(c echo.Context) error {
	var req assignByLocationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	updated, err := h.exports.AssignByLocation(c.Request().Context(), req.Location, req.EmployeeEmail)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.OK(echo.Map{"updated": updated}))
}

func (h *BulkHandler) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrUnknownEntity), errors.Is(err, service.ErrImportNotFound):
		return c.JSON(http.StatusNotFound, util.Error(err.Error()))
	case errors.Is(err, service.ErrSuperAdminRequired), errors.Is(err, service.ErrImportAccessDenied):
		return c.JSON(http.StatusForbidden, util.Error(err.Error()))
	case errors.Is(err, service.ErrImportUnsupportedType):
		return c.JSON(http.StatusUnsupportedMediaType, util.Error(err.Error()))
	case errors.Is(err, service.ErrImportEmptyFile),
		errors.Is(err, service.ErrImportUnreadable),
		errors.Is(err, service.ErrExportInvalidFormat),
		errors.Is(err, service.ErrExportInvalidRange),
		errors.Is(err, service.ErrExportInvalidKYC),
		errors.Is(err, service.ErrAssignInvalid):
		return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
	case errors.Is(err, service.ErrImportInvalidHeaders):
		return c.JSON(http.StatusUnprocessableEntity, util.Error(err.Error()))
	case errors.Is(err, service.ErrImportTooLarge), errors.Is(err, service.ErrImportRowLimitExceeded):
		return c.JSON(http.StatusRequestEntityTooLarge, util.Error(err.Error()))
	case errors.Is(err, service.ErrEmployeeNotFound):
		return c.JSON(http.StatusNotFound, util.Error(err.Error()))
	case errors.Is(err, service.ErrImportQueueFull):
		return c.JSON(http.StatusServiceUnavailable, util.Error(err.Error()))
	default:
		c.Logger().Errorf("bulk: %v", err)
		return c.JSON(http.StatusInternalServerError, util.Error("internal error"))
	}
}

func attachment(c echo.Context, filename, contentType string, data []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	return c.Blob(http.StatusOK, contentType, data)
}
