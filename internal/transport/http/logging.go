package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	requestBodyLogKey  = "http.request.body.summary"
	responseBodyLogKey = "http.response.body.summary"
	maxLoggedBody      = 2048
	maxLoggedItems     = 5
)

// sensitiveKeys are redacted wherever they appear as a JSON or form key.
var sensitiveKeys = []string{"password", "token", "aadhaar", "pan_number", "pannumber", "account_number", "accountnumber"}

type requestLog struct {
	Time      string `json:"time"`
	UserUUID  string `json:"user_uuid"`
	LatencyMS int64  `json:"latency_ms"`
	Request   struct {
		Method string `json:"method"`
		URI    string `json:"uri"`
		Body   any    `json:"body,omitempty"`
	} `json:"request"`
	Response struct {
		Status int    `json:"status"`
		Body   any    `json:"body,omitempty"`
		Error  string `json:"error,omitempty"`
	} `json:"response"`
}

func registerLogging(e *echo.Echo) {
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := requestLog{
				Time:      v.StartTime.UTC().Format(time.RFC3339),
				UserUUID:  "anonymous",
				LatencyMS: v.Latency.Milliseconds(),
			}
			if user, ok := CurrentUser(c); ok {
				entry.UserUUID = user.ID.String()
			}
			entry.Request.Method = v.Method
			entry.Request.URI = v.URI
			entry.Request.Body = c.Get(requestBodyLogKey)
			entry.Response.Status = v.Status
			entry.Response.Body = c.Get(responseBodyLogKey)
			if v.Error != nil {
				entry.Response.Error = v.Error.Error()
			}

			buf, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			log.Println(string(buf))
			return nil
		},
	}))

	e.Use(middleware.BodyDumpWithConfig(middleware.BodyDumpConfig{
		Handler: func(c echo.Context, reqBody, resBody []byte) {
			if summary := summarizeBody(reqBody, c.Request().Header.Get(echo.HeaderContentType)); summary != nil {
				c.Set(requestBodyLogKey, summary)
			}
			if summary := summarizeBody(resBody, c.Response().Header().Get(echo.HeaderContentType)); summary != nil {
				c.Set(responseBodyLogKey, summary)
			}
		},
	}))
}

// summarizeBody turns a request or response body into something safe and
// small enough for a log line. Spreadsheet payloads are reduced to their
// size; JSON is redacted and trimmed.
func summarizeBody(body []byte, contentType string) any {
	if len(body) == 0 {
		return nil
	}
	mediaType, params, _ := mime.ParseMediaType(contentType)
	mediaType = strings.ToLower(mediaType)

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		return summarizeMultipart(body, params["boundary"])
	case mediaType == "text/csv",
		strings.Contains(mediaType, "spreadsheetml"),
		strings.Contains(mediaType, "ms-excel"),
		mediaType == "application/octet-stream":
		return fileSummary(mediaType, len(body))
	case mediaType == "application/json" || json.Valid(body):
		var data any
		if err := json.Unmarshal(body, &data); err == nil {
			return trimValue(redact(data, ""), 0)
		}
	}
	if !utf8.Valid(body) {
		return fileSummary(mediaType, len(body))
	}
	return clampString(string(body))
}

func fileSummary(mediaType string, size int) map[string]any {
	if mediaType == "" {
		mediaType = "binary"
	}
	return map[string]any{"file": mediaType, "bytes": size}
}

func summarizeMultipart(body []byte, boundary string) any {
	if boundary == "" {
		return fileSummary("multipart", len(body))
	}
	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	fields := make(map[string]any)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fileSummary("multipart", len(body))
		}
		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}
		data, _ := io.ReadAll(part)
		if filename := part.FileName(); filename != "" {
			fields[name] = map[string]any{"filename": filename, "bytes": len(data)}
		} else {
			fields[name] = redactString(clampString(string(data)), strings.ToLower(name))
		}
		_ = part.Close()
	}
	return fields
}

func isSensitive(key string) bool {
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

func redact(value any, key string) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = redact(val, strings.ToLower(k))
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redact(item, key)
		}
		return out
	case string:
		return redactString(v, key)
	default:
		if isSensitive(key) {
			return "redacted"
		}
		return v
	}
}

func redactString(value, key string) string {
	if isSensitive(key) {
		return "redacted"
	}
	return value
}

// trimValue caps nesting and list lengths; import status responses can carry
// hundreds of row errors.
func trimValue(value any, depth int) any {
	if depth > 4 {
		return "...(omitted)..."
	}
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = trimValue(val, depth+1)
		}
		return out
	case []any:
		if len(v) <= maxLoggedItems {
			out := make([]any, len(v))
			for i, item := range v {
				out[i] = trimValue(item, depth+1)
			}
			return out
		}
		sample := make([]any, maxLoggedItems)
		for i := range sample {
			sample[i] = trimValue(v[i], depth+1)
		}
		return map[string]any{"_total_items": len(v), "_sample": sample}
	case string:
		return clampString(v)
	default:
		return v
	}
}

func clampString(value string) string {
	if len(value) <= maxLoggedBody {
		return value
	}
	truncated := value[:maxLoggedBody]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated + "...(truncated)"
}
