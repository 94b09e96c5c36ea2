package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithToken("token-1"))
}

func TestBulkImportSendsMultipartDefaults(t *testing.T) {
	id := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/farmers/bulk/import" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("authorization header = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if r.FormValue("autoAssign") != "false" || r.FormValue("assignmentStrategy") != "MANUAL" {
			t.Errorf("defaults = %q %q", r.FormValue("autoAssign"), r.FormValue("assignmentStrategy"))
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		body, _ := io.ReadAll(f)
		if hdr.Filename != "farmers.csv" || string(body) != "a,b\n" {
			t.Errorf("file = %q %q", hdr.Filename, body)
		}
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `{"data":{"importId":"`+id.String()+`","status":"PROCESSING","entityType":"FARMER"}}`)
	})

	job, err := c.BulkImport(context.Background(), domain.EntityFarmer, ImportUpload{
		FileName:    "farmers.csv",
		ContentType: "text/csv",
		Contents:    []byte("a,b\n"),
	})
	if err != nil {
		t.Fatalf("BulkImport: %v", err)
	}
	if job == nil || job.ID != id || job.Status != domain.ImportStatusProcessing {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestServerErrorCarriesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error":"role name already exists"}`)
	})

	_, err := c.CreateRole(context.Background(), domain.RoleInput{RoleName: "Viewer"})
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %T %v", err, err)
	}
	if se.StatusCode != http.StatusConflict || se.Error() != "role name already exists" || !se.HasMessage() {
		t.Fatalf("unexpected server error %+v", se)
	}
}

func TestServerErrorFallsBackToStatusText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.ListRoles(context.Background())
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if se.HasMessage() || se.Error() != StatusMessage(http.StatusForbidden) {
		t.Fatalf("unexpected message %q", se.Error())
	}
}

func TestTransportErrorWhenServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).ListRoles(context.Background())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T %v", err, err)
	}
}

func TestBulkExportUsesContentDisposition(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/employees/bulk/export" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"format":"CSV"`) {
			t.Errorf("body = %s", body)
		}
		w.Header().Set("Content-Type", domain.MIMECSV)
		w.Header().Set("Content-Disposition", `attachment; filename="employee_export_1.csv"`)
		io.WriteString(w, "email\n")
	})

	file, err := c.BulkExport(context.Background(), domain.EntityEmployee, domain.ExportRequest{Format: domain.ExportFormatCSV})
	if err != nil {
		t.Fatalf("BulkExport: %v", err)
	}
	if file.Name != "employee_export_1.csv" || string(file.Data) != "email\n" {
		t.Fatalf("unexpected file %+v", file)
	}
}

func TestLoginStoresToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{"token":"fresh","user":{"email":"a@b.in"}}}`)
	})
	if _, err := c.Login(context.Background(), "a@b.in", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if c.Token() != "fresh" {
		t.Fatalf("token = %q", c.Token())
	}
}

func TestGenerateNextCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/admin/code-formats/FARMER/next" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `{"data":{"code":"FRM-00100"}}`)
	})
	code, err := c.GenerateNextCode(context.Background(), domain.CodeTypeFarmer)
	if err != nil || code != "FRM-00100" {
		t.Fatalf("GenerateNextCode = %q, %v", code, err)
	}
}
