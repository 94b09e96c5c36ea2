package domain

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ghodss/yaml"
)

type SettingCategory string

const (
	SettingAge            SettingCategory = "age"
	SettingEducationTypes SettingCategory = "education-types"
	SettingCropNames      SettingCategory = "crop-names"
	SettingCropTypes      SettingCategory = "crop-types"
)

var AllSettingCategories = []SettingCategory{
	SettingAge,
	SettingEducationTypes,
	SettingCropNames,
	SettingCropTypes,
}

func (c SettingCategory) Valid() bool {
	for _, known := range AllSettingCategories {
		if c == known {
			return true
		}
	}
	return false
}

const (
	UserTypeFarmer   = "farmer"
	UserTypeEmployee = "employee"
	UserTypeFPO      = "fpo"
)

// NormalizeUserType lower-cases and trims a user type key.
func NormalizeUserType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

type AgeBounds struct {
	MinAge int `json:"minAge"`
	MaxAge int `json:"maxAge"`
}

// AgeSettings maps a normalized user type to its accepted age range.
type AgeSettings map[string]AgeBounds

// EducationTypes maps a normalized user type to its selectable education levels.
type EducationTypes map[string][]string

type CropName struct {
	Name     string `json:"name"`
	CropType string `json:"cropType"`
}

type CropNames []CropName

type CropTypes []string

//go:embed settings_defaults.yaml
var settingsDefaultsYAML []byte

// DefaultSettings returns the built-in payload of every category, used
// whenever nothing is stored or a stored value cannot be read.
func DefaultSettings() (map[SettingCategory]json.RawMessage, error) {
	asJSON, err := yaml.YAMLToJSON(settingsDefaultsYAML)
	if err != nil {
		return nil, fmt.Errorf("settings defaults: %w", err)
	}
	var byKey map[string]json.RawMessage
	if err := json.Unmarshal(asJSON, &byKey); err != nil {
		return nil, fmt.Errorf("settings defaults: %w", err)
	}
	out := make(map[SettingCategory]json.RawMessage, len(byKey))
	for _, c := range AllSettingCategories {
		payload, ok := byKey[string(c)]
		if !ok {
			return nil, fmt.Errorf("settings defaults: missing %s", c)
		}
		out[c] = payload
	}
	return out, nil
}
