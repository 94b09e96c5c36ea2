package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

// ImportUpload is one spreadsheet submitted to the bulk import endpoint.
type ImportUpload struct {
	FileName    string
	ContentType string
	Contents    []byte
	AutoAssign  bool
	Strategy    domain.AssignmentStrategy
}

func (c *Client) BulkImport(ctx context.Context, entity domain.EntityType, upload ImportUpload) (*domain.ImportJob, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.FileName))
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(upload.Contents); err != nil {
		return nil, err
	}

	strategy := upload.Strategy
	if strategy == "" {
		strategy = domain.AssignmentManual
	}
	if err := w.WriteField("autoAssign", strconv.FormatBool(upload.AutoAssign)); err != nil {
		return nil, err
	}
	if err := w.WriteField("assignmentStrategy", string(strategy)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	path := "/" + entity.Path() + "/bulk/import"
	resp, err := c.send(ctx, "POST", path, &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}
	return decode[*domain.ImportJob](resp, "POST "+path)
}

// ImportStatus reads a job with at most errorLimit row errors attached.
func (c *Client) ImportStatus(ctx context.Context, id uuid.UUID, errorLimit int) (*domain.ImportJob, error) {
	path := fmt.Sprintf("/bulk/import/%s/status", id)
	if errorLimit >= 0 {
		path += "?" + url.Values{"errorLimit": {strconv.Itoa(errorLimit)}}.Encode()
	}
	return call[*domain.ImportJob](ctx, c, "GET", path, nil)
}

func (c *Client) ImportErrorReport(ctx context.Context, id uuid.UUID) (*File, error) {
	return c.download(ctx, "GET", fmt.Sprintf("/bulk/import/%s/errors.csv", id), nil, fmt.Sprintf("import_%s_errors.csv", id))
}

func (c *Client) BulkExport(ctx context.Context, entity domain.EntityType, req domain.ExportRequest) (*File, error) {
	return c.download(ctx, "POST", "/"+entity.Path()+"/bulk/export", req, "")
}

func (c *Client) DownloadTemplate(ctx context.Context, entity domain.EntityType) (*File, error) {
	return c.download(ctx, "GET", "/"+entity.Path()+"/bulk/template", nil, entity.Lower()+"_import_template.xlsx")
}

type assignByLocation struct {
	Location      string `json:"location"`
	EmployeeEmail string `json:"employeeEmail"`
}

type assignResult struct {
	Updated int64 `json:"updated"`
}

// BulkAssignFarmersByLocation reassigns every farmer in a district and
// returns how many rows changed.
func (c *Client) BulkAssignFarmersByLocation(ctx context.Context, location, employeeEmail string) (int64, error) {
	out, err := call[assignResult](ctx, c, "POST", "/farmers/bulk/assign-by-location", assignByLocation{
		Location:      location,
		EmployeeEmail: employeeEmail,
	})
	return out.Updated, err
}
