package domain

import "time"

type ExportFormat string

const (
	ExportFormatExcel ExportFormat = "EXCEL"
	ExportFormatCSV   ExportFormat = "CSV"
)

const (
	MIMEExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEXls   = "application/vnd.ms-excel"
	MIMECSV   = "text/csv"
)

func (f ExportFormat) Extension() string {
	if f == ExportFormatExcel {
		return "xlsx"
	}
	return "csv"
}

func (f ExportFormat) ContentType() string {
	if f == ExportFormatExcel {
		return MIMEExcel
	}
	return MIMECSV
}

func (f ExportFormat) Valid() bool {
	return f == ExportFormatExcel || f == ExportFormatCSV
}

// ExportRequest is built fresh for every export and never persisted.
type ExportRequest struct {
	Format                ExportFormat `json:"format"`
	AssignedEmployeeEmail string       `json:"assignedEmployeeEmail,omitempty"`
	Location              string       `json:"location,omitempty"`
	KYCStatus             KYCStatus    `json:"kycStatus,omitempty"`
	FromDate              *time.Time   `json:"fromDate,omitempty"`
	ToDate                *time.Time   `json:"toDate,omitempty"`
}
