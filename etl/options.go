package etl

import (
	"strconv"
	"strings"
	"time"

	"github.com/teranos/legisync/errors"
)

// Destination selects where the load stage sends documents
type Destination string

const (
	DestinationStore         Destination = "store"
	DestinationEmulatedStore Destination = "emulatedStore"
	DestinationLocalFiles    Destination = "localFiles"
	DestinationMock          Destination = "mock"
)

// Valid reports whether d is a known destination
func (d Destination) Valid() bool {
	switch d {
	case DestinationStore, DestinationEmulatedStore, DestinationLocalFiles, DestinationMock:
		return true
	}
	return false
}

// UsesWriter reports whether d loads through a batch writer
func (d Destination) UsesWriter() bool {
	return d == DestinationStore || d == DestinationEmulatedStore || d == DestinationMock
}

// MinPeriod and MaxPeriod bound the legislature numbers accepted as input
const (
	MinPeriod = 1
	MaxPeriod = 100
)

// DateRange is an inclusive range of calendar days
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Options is what a single invocation asked for. It is built once by the
// command-line parser and not modified afterwards.
type Options struct {
	PeriodNumber *int              `json:"period_number,omitempty"`
	ItemLimit    *int              `json:"item_limit,omitempty"`
	Destination  Destination       `json:"destination"`
	DryRun       bool              `json:"dry_run"`
	Verbose      bool              `json:"verbose"`
	EntityID     string            `json:"entity_id,omitempty"`
	DateRange    *DateRange        `json:"date_range,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"` // job-specific flags, name without dashes
}

// Flag returns a job-specific flag value
func (o Options) Flag(name string) (string, bool) {
	v, ok := o.Extra[name]
	return v, ok
}

// BoolFlag reports whether a job-specific flag was given and is not false
func (o Options) BoolFlag(name string) bool {
	v, ok := o.Extra[name]
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	return err != nil || b
}

// IntFlag parses a job-specific numeric flag, returning fallback when absent
func (o Options) IntFlag(name string, fallback int) (int, error) {
	v, ok := o.Extra[name]
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.NewValidationError("--%s expects a number, got %q", name, v)
	}
	return n, nil
}

// validate checks the constraints shared by every job
func (o Options) validate(result *ValidationResult) {
	if !o.Destination.Valid() {
		result.Errorf("unknown destination %q", o.Destination)
	}
	if o.PeriodNumber != nil && (*o.PeriodNumber < MinPeriod || *o.PeriodNumber > MaxPeriod) {
		result.Errorf("legislature must be between %d and %d, got %d", MinPeriod, MaxPeriod, *o.PeriodNumber)
	}
	if o.ItemLimit != nil && *o.ItemLimit <= 0 {
		result.Errorf("item limit must be > 0, got %d", *o.ItemLimit)
	}
	if o.DateRange != nil {
		if o.DateRange.Start.IsZero() || o.DateRange.End.IsZero() {
			result.Errorf("date range needs both a start and an end")
		} else if o.DateRange.End.Before(o.DateRange.Start) {
			result.Errorf("date range ends (%s) before it starts (%s)",
				o.DateRange.End.Format("2006-01-02"), o.DateRange.Start.Format("2006-01-02"))
		}
	}
}
