package validation

import (
	"errors"
	"strings"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// ErrIdentifierEmpty is returned when the identifier is empty or whitespace-only after trim.
var ErrIdentifierEmpty = errors.New("identifier is required")

// ErrDateEmpty is returned when a create request has no observation date.
var ErrDateEmpty = errors.New("date is required")

// ErrLocationEmpty is returned when a create request has no location.
var ErrLocationEmpty = errors.New("location is required")

// ValidateIdentifier trims the input and rejects an empty result.
// Identifiers are opaque; no format is enforced beyond presence.
func ValidateIdentifier(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrIdentifierEmpty
	}
	return s, nil
}

// ValidateCreateRequest trims date and location and requires both. Notes are optional.
func ValidateCreateRequest(req models.CreateRequest) (models.CreateRequest, error) {
	out := models.CreateRequest{
		Date:     strings.TrimSpace(req.Date),
		Location: strings.TrimSpace(req.Location),
		Notes:    strings.TrimSpace(req.Notes),
	}
	if out.Date == "" {
		return models.CreateRequest{}, ErrDateEmpty
	}
	if out.Location == "" {
		return models.CreateRequest{}, ErrLocationEmpty
	}
	return out, nil
}
