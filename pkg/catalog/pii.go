package catalog

import (
	"strings"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

var highSensitivityHints = []string{
	"ssn", "social_security", "passport", "credit_card", "card_number",
	"tax_id", "national_id", "password", "bank_account",
}

var mediumSensitivityHints = []string{
	"email", "phone", "mobile", "address", "birth", "dob",
	"first_name", "last_name", "full_name", "zip", "postal",
}

// DetectPII classifies a column by its name. Matching is on lower-cased
// substrings, so "CUSTOMER_EMAIL" and "email_address" both match.
func DetectPII(columnName string) (bool, string) {
	lower := strings.ToLower(columnName)
	for _, hint := range highSensitivityHints {
		if strings.Contains(lower, hint) {
			return true, models.SensitivityHigh
		}
	}
	for _, hint := range mediumSensitivityHints {
		if strings.Contains(lower, hint) {
			return true, models.SensitivityMedium
		}
	}
	return false, models.SensitivityNone
}

var sensitiveTagMarkers = []string{"PII", "SENSITIVE", "PERSONAL", "CONFIDENTIAL"}

// IsSensitiveTag reports whether a governance tag name or value marks
// its object as holding sensitive data.
func IsSensitiveTag(name, value string) bool {
	upperName, upperValue := strings.ToUpper(name), strings.ToUpper(value)
	for _, marker := range sensitiveTagMarkers {
		if strings.Contains(upperName, marker) || strings.Contains(upperValue, marker) {
			return true
		}
	}
	return false
}

func sensitivityRank(level string) int {
	switch level {
	case models.SensitivityHigh:
		return 3
	case models.SensitivityMedium:
		return 2
	case models.SensitivityLow:
		return 1
	}
	return 0
}

// MaxSensitivity returns the stricter of two levels.
func MaxSensitivity(a, b string) string {
	if sensitivityRank(b) > sensitivityRank(a) {
		return b
	}
	if a == "" {
		return models.SensitivityNone
	}
	return a
}
