package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/njprem/agri_admin_backend/internal/domain"
	"github.com/njprem/agri_admin_backend/internal/validation"
)

var farmerColumns = []string{
	"first_name", "last_name", "phone", "email", "gender", "date_of_birth",
	"state", "district", "village", "pincode", "education", "aadhaar_number",
	"kyc_status", "assigned_employee_email",
}

var farmerRequired = []string{"first_name", "last_name", "phone", "district"}

var employeeColumns = []string{
	"first_name", "last_name", "email", "phone", "gender", "date_of_birth",
	"designation", "state", "district", "pincode", "education", "pan_number",
	"ifsc_code", "account_number",
}

var employeeRequired = []string{"first_name", "last_name", "email", "phone"}

func importColumns(entity domain.EntityType) (all, required []string) {
	if entity == domain.EntityEmployee {
		return employeeColumns, employeeRequired
	}
	return farmerColumns, farmerRequired
}

var dateLayouts = []string{"2006-01-02", "02-01-2006", "02/01/2006", "2006/01/02", "01-02-06"}

func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised date %q, use YYYY-MM-DD", raw)
}

func parseGender(raw string) (*domain.Gender, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "":
		return nil, nil
	case "M", "MALE":
		g := domain.GenderMale
		return &g, nil
	case "F", "FEMALE":
		g := domain.GenderFemale
		return &g, nil
	case "O", "OTHER":
		g := domain.GenderOther
		return &g, nil
	default:
		return nil, fmt.Errorf("must be MALE, FEMALE or OTHER")
	}
}

// ageAt returns completed years between dob and now.
func ageAt(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

type rowErrors struct {
	row  int
	errs []domain.ImportError
}

func (r *rowErrors) add(field, message string) {
	r.errs = append(r.errs, domain.ImportError{RowNumber: r.row, FieldName: field, ErrorMessage: message})
}

func (r *rowErrors) check(err error) {
	if err == nil {
		return
	}
	if fe, ok := err.(*validation.FieldError); ok {
		r.add(fe.Field, fe.Message)
		return
	}
	r.add("", err.Error())
}

func (r *rowErrors) empty() bool { return len(r.errs) == 0 }

func (s *BulkImportService) checkAge(re *rowErrors, userType string, dob *time.Time) {
	if dob == nil || s.ages == nil {
		return
	}
	bounds, ok := s.ages.AgeBounds(userType)
	if !ok {
		return
	}
	age := ageAt(*dob, s.now())
	if age < bounds.MinAge || age > bounds.MaxAge {
		re.add("date_of_birth", fmt.Sprintf("age %d outside allowed range %d-%d", age, bounds.MinAge, bounds.MaxAge))
	}
}

func (s *BulkImportService) buildFarmer(values map[string]string, re *rowErrors) *domain.Farmer {
	re.check(validation.Name("first_name", values["first_name"]))
	re.check(validation.Name("last_name", values["last_name"]))
	re.check(validation.Phone("phone", values["phone"]))
	re.check(validation.Required("district", values["district"]))
	re.check(validation.Optional(validation.Email, "email", values["email"]))
	re.check(validation.Optional(validation.Pincode, "pincode", values["pincode"]))
	re.check(validation.Optional(validation.Aadhaar, "aadhaar_number", values["aadhaar_number"]))
	re.check(validation.Optional(validation.Email, "assigned_employee_email", values["assigned_employee_email"]))

	farmer := &domain.Farmer{
		FirstName:     strings.TrimSpace(values["first_name"]),
		LastName:      strings.TrimSpace(values["last_name"]),
		Phone:         validation.NormalizePhone(values["phone"]),
		Email:         stringPointer(strings.ToLower(values["email"])),
		State:         stringPointer(values["state"]),
		District:      stringPointer(values["district"]),
		Village:       stringPointer(values["village"]),
		Pincode:       stringPointer(values["pincode"]),
		Education:     stringPointer(values["education"]),
		AadhaarNumber: stringPointer(strings.ReplaceAll(values["aadhaar_number"], " ", "")),
		KYCStatus:     domain.KYCPending,
	}

	gender, err := parseGender(values["gender"])
	if err != nil {
		re.add("gender", err.Error())
	}
	farmer.Gender = gender

	dob, err := parseDate(values["date_of_birth"])
	if err != nil {
		re.add("date_of_birth", err.Error())
	}
	farmer.DateOfBirth = dob
	s.checkAge(re, domain.UserTypeFarmer, dob)

	if raw := strings.ToUpper(strings.TrimSpace(values["kyc_status"])); raw != "" {
		status := domain.KYCStatus(strings.ReplaceAll(raw, " ", "_"))
		if !status.Valid() {
			re.add("kyc_status", "unknown KYC status")
		} else {
			farmer.KYCStatus = status
		}
	}
	return farmer
}

func (s *BulkImportService) buildEmployee(values map[string]string, re *rowErrors) *domain.Employee {
	re.check(validation.Name("first_name", values["first_name"]))
	re.check(validation.Name("last_name", values["last_name"]))
	re.check(validation.Email("email", values["email"]))
	re.check(validation.Phone("phone", values["phone"]))
	re.check(validation.Optional(validation.Pincode, "pincode", values["pincode"]))
	re.check(validation.Optional(validation.PAN, "pan_number", values["pan_number"]))
	re.check(validation.Optional(validation.IFSC, "ifsc_code", values["ifsc_code"]))

	employee := &domain.Employee{
		FirstName:     strings.TrimSpace(values["first_name"]),
		LastName:      strings.TrimSpace(values["last_name"]),
		Email:         strings.ToLower(strings.TrimSpace(values["email"])),
		Phone:         validation.NormalizePhone(values["phone"]),
		Designation:   stringPointer(values["designation"]),
		State:         stringPointer(values["state"]),
		District:      stringPointer(values["district"]),
		Pincode:       stringPointer(values["pincode"]),
		Education:     stringPointer(values["education"]),
		PANNumber:     stringPointer(strings.ToUpper(values["pan_number"])),
		IFSCCode:      stringPointer(strings.ToUpper(values["ifsc_code"])),
		AccountNumber: stringPointer(values["account_number"]),
		KYCStatus:     domain.KYCPending,
	}

	gender, err := parseGender(values["gender"])
	if err != nil {
		re.add("gender", err.Error())
	}
	employee.Gender = gender

	dob, err := parseDate(values["date_of_birth"])
	if err != nil {
		re.add("date_of_birth", err.Error())
	}
	employee.DateOfBirth = dob
	s.checkAge(re, domain.UserTypeEmployee, dob)
	return employee
}

func stringPointer(val string) *string {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil
	}
	return &val
}
