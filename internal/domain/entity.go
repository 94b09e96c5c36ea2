package domain

import "strings"

type EntityType string

const (
	EntityFarmer   EntityType = "FARMER"
	EntityEmployee EntityType = "EMPLOYEE"
)

// ParseEntityType accepts either the enum value or the plural route segment.
func ParseEntityType(raw string) (EntityType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "farmer", "farmers":
		return EntityFarmer, true
	case "employee", "employees":
		return EntityEmployee, true
	default:
		return "", false
	}
}

// Path is the pluralized lowercase route segment, e.g. "farmers".
func (e EntityType) Path() string {
	return strings.ToLower(string(e)) + "s"
}

func (e EntityType) Lower() string {
	return strings.ToLower(string(e))
}

func (e EntityType) Valid() bool {
	return e == EntityFarmer || e == EntityEmployee
}
