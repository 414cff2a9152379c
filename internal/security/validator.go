package security

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	// MaxIDLength defines maximum target ID length
	MaxIDLength = 128
	// MaxNameLength keeps display names comfortably inside a single QR symbol
	MaxNameLength = 256
	// MaxDescriptionLength defines maximum description length
	MaxDescriptionLength = 4096
	// MaxLocationLength defines maximum location length
	MaxLocationLength = 256
	// MaxURLLength defines maximum content/evidence URL length
	MaxURLLength = 2048
	// MaxPoints caps the points a single activity can award
	MaxPoints = 1000
)

var (
	// safeIDPattern allows UUID-style IDs and safe alphanumeric
	safeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)
	// controlCharPattern detects control characters
	controlCharPattern = regexp.MustCompile(`[\x00-\x1F\x7F]`)
)

// ValidationErrors collects multiple validation errors
type ValidationErrors []error

// Add adds an error to the collection
func (ve *ValidationErrors) Add(err error) {
	if err != nil {
		*ve = append(*ve, err)
	}
}

// Err returns nil when nothing was collected
func (ve ValidationErrors) Err() error {
	if len(ve) == 0 {
		return nil
	}
	return ve
}

// Error returns the combined error message
func (ve ValidationErrors) Error() string {
	switch len(ve) {
	case 0:
		return "no validation errors"
	case 1:
		return ve[0].Error()
	default:
		msgs := make([]string, len(ve))
		for i, err := range ve {
			msgs[i] = err.Error()
		}
		return strings.Join(msgs, "; ")
	}
}

// ValidateID validates a caller-chosen target identifier
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("id cannot be empty")
	case len(id) > MaxIDLength:
		return fmt.Errorf("id length %d exceeds maximum %d", len(id), MaxIDLength)
	case !safeIDPattern.MatchString(id):
		return fmt.Errorf("id contains invalid characters: %s", id)
	}
	return nil
}

// ValidateName validates a required single-line field
func ValidateName(name string, fieldName string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%s cannot be empty", fieldName)
	case len(name) > MaxNameLength:
		return fmt.Errorf("%s length %d exceeds maximum %d", fieldName, len(name), MaxNameLength)
	case controlCharPattern.MatchString(name):
		return fmt.Errorf("%s contains control characters", fieldName)
	}
	return nil
}

// ValidateDescription validates free text; newlines and tabs are allowed
func ValidateDescription(description string, fieldName string) error {
	cleaned := strings.NewReplacer("\n", "", "\r", "", "\t", "").Replace(description)
	switch {
	case len(description) > MaxDescriptionLength:
		return fmt.Errorf("%s length %d exceeds maximum %d", fieldName, len(description), MaxDescriptionLength)
	case controlCharPattern.MatchString(cleaned):
		return fmt.Errorf("%s contains control characters", fieldName)
	}
	return nil
}

// ValidateURL accepts empty input or an absolute http(s) URL
func ValidateURL(raw string, fieldName string) error {
	if raw == "" {
		return nil
	}
	if len(raw) > MaxURLLength {
		return fmt.Errorf("%s length %d exceeds maximum %d", fieldName, len(raw), MaxURLLength)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %v", fieldName, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", fieldName)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", fieldName)
	}
	return nil
}

// ValidateRange validates an integer field
func ValidateRange(value int, fieldName string, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%s %d is outside range [%d, %d]", fieldName, value, min, max)
	}
	return nil
}
