// Package lookup implements the single-record lookup panel.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

// User-facing messages shown in the result slot.
const (
	MessageValidation = "Please enter a weather ID"
	MessageNotFound   = "Weather data not found for that ID."
)

var (
	// ErrValidation is returned for an empty or whitespace-only identifier.
	ErrValidation = errors.New("validation error")
	// ErrNotFound covers both a non-success response and any transport or parse failure.
	ErrNotFound = errors.New("not found")
)

// State is the panel's result slot. At most one of Record and Error is set.
type State struct {
	Identifier string                `json:"identifier"`
	Record     *models.WeatherRecord `json:"record,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Panel holds one input and one result slot. Concurrent submissions are not
// serialized: whichever response resolves last owns the slot.
type Panel struct {
	client client.BackendClient
	logger *zap.Logger

	mu    sync.Mutex
	state State
}

// NewPanel returns an empty panel.
func NewPanel(c client.BackendClient, logger *zap.Logger) *Panel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Panel{client: c, logger: logger}
}

// Submit looks up identifier and updates the result slot.
func (p *Panel) Submit(ctx context.Context, identifier string) (models.WeatherRecord, error) {
	id, err := validation.ValidateIdentifier(identifier)
	if err != nil {
		observability.LookupsTotal.WithLabelValues("validation").Inc()
		p.setError(identifier, MessageValidation)
		return models.WeatherRecord{}, fmt.Errorf("%w: %s", ErrValidation, MessageValidation)
	}

	record, err := p.client.GetRecord(ctx, id)
	if err != nil {
		observability.LookupsTotal.WithLabelValues("not_found").Inc()
		p.logger.Debug("lookup failed",
			zap.String("id", id),
			zap.String("category", string(client.CategorizeError(err))),
			zap.Error(err))
		p.setError(identifier, MessageNotFound)
		return models.WeatherRecord{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	observability.LookupsTotal.WithLabelValues("found").Inc()
	p.mu.Lock()
	p.state = State{Identifier: identifier, Record: &record}
	p.mu.Unlock()
	return record, nil
}

// State returns a copy of the result slot.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.state
	if s.Record != nil {
		r := *s.Record
		s.Record = &r
	}
	return s
}

func (p *Panel) setError(identifier, msg string) {
	p.mu.Lock()
	p.state = State{Identifier: identifier, Error: msg}
	p.mu.Unlock()
}
