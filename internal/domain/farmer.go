package domain

import (
	"time"

	"github.com/google/uuid"
)

type KYCStatus string

const (
	KYCPending    KYCStatus = "PENDING"
	KYCApproved   KYCStatus = "APPROVED"
	KYCRejected   KYCStatus = "REJECTED"
	KYCReferBack  KYCStatus = "REFER_BACK"
	KYCNotStarted KYCStatus = "NOT_STARTED"
)

func (k KYCStatus) Valid() bool {
	switch k {
	case KYCPending, KYCApproved, KYCRejected, KYCReferBack, KYCNotStarted:
		return true
	}
	return false
}

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

type Farmer struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	DisplayID          *string    `db:"display_id" json:"displayId,omitempty"`
	FirstName          string     `db:"first_name" json:"firstName"`
	LastName           string     `db:"last_name" json:"lastName"`
	Gender             *Gender    `db:"gender" json:"gender,omitempty"`
	DateOfBirth        *time.Time `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	Phone              string     `db:"phone" json:"phone"`
	Email              *string    `db:"email" json:"email,omitempty"`
	State              *string    `db:"state" json:"state,omitempty"`
	District           *string    `db:"district" json:"district,omitempty"`
	Village            *string    `db:"village" json:"village,omitempty"`
	Pincode            *string    `db:"pincode" json:"pincode,omitempty"`
	Education          *string    `db:"education" json:"education,omitempty"`
	AadhaarNumber      *string    `db:"aadhaar_number" json:"aadhaarNumber,omitempty"`
	KYCStatus          KYCStatus  `db:"kyc_status" json:"kycStatus"`
	AssignedEmployeeID *uuid.UUID `db:"assigned_employee_id" json:"assignedEmployeeId,omitempty"`
	ImportID           *uuid.UUID `db:"import_id" json:"importId,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`

	AssignedEmployeeEmail *string `db:"assigned_employee_email" json:"assignedEmployeeEmail,omitempty"`
}

type Employee struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	DisplayID     *string    `db:"display_id" json:"displayId,omitempty"`
	FirstName     string     `db:"first_name" json:"firstName"`
	LastName      string     `db:"last_name" json:"lastName"`
	Gender        *Gender    `db:"gender" json:"gender,omitempty"`
	DateOfBirth   *time.Time `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	Phone         string     `db:"phone" json:"phone"`
	Email         string     `db:"email" json:"email"`
	Designation   *string    `db:"designation" json:"designation,omitempty"`
	State         *string    `db:"state" json:"state,omitempty"`
	District      *string    `db:"district" json:"district,omitempty"`
	Pincode       *string    `db:"pincode" json:"pincode,omitempty"`
	Education     *string    `db:"education" json:"education,omitempty"`
	PANNumber     *string    `db:"pan_number" json:"panNumber,omitempty"`
	IFSCCode      *string    `db:"ifsc_code" json:"ifscCode,omitempty"`
	AccountNumber *string    `db:"account_number" json:"accountNumber,omitempty"`
	KYCStatus     KYCStatus  `db:"kyc_status" json:"kycStatus"`
	ImportID      *uuid.UUID `db:"import_id" json:"importId,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// ExportFilter is the storage-side projection of an ExportRequest.
type ExportFilter struct {
	AssignedEmployeeEmail string
	District              string
	KYCStatus             KYCStatus
	From                  *time.Time
	To                    *time.Time
}
