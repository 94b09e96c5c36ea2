package domain

import (
	"path/filepath"
	"strings"
)

var acceptedImportMIMEs = map[string]struct{}{
	MIMEExcel: {},
	MIMEXls:   {},
	MIMECSV:   {},
}

var acceptedImportExtensions = map[string]struct{}{
	".xlsx": {},
	".xls":  {},
	".csv":  {},
}

// AcceptedImportFile gates bulk uploads: spreadsheet or CSV by MIME type, or
// by file extension when the browser sent a generic type.
func AcceptedImportFile(name, contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}
	if _, ok := acceptedImportMIMEs[mediaType]; ok {
		return true
	}
	_, ok := acceptedImportExtensions[strings.ToLower(filepath.Ext(strings.TrimSpace(name)))]
	return ok
}

// ImportFileKind classifies an accepted upload for parsing.
func ImportFileKind(name, contentType string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	switch {
	case ext == ".csv":
		return "csv"
	case ext == ".xlsx" || ext == ".xls":
		return "xlsx"
	case strings.HasPrefix(strings.ToLower(contentType), MIMECSV):
		return "csv"
	default:
		return "xlsx"
	}
}
