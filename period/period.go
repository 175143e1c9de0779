// Package period resolves legislatures, the four-year terms every stored
// document is tagged with.
//
// Resolution order for a date or a number:
//  1. the upstream reference endpoint (/legislaturas)
//  2. the static table (embedded periods.toml, or a file from period.table_file)
//  3. arithmetic from the epoch (legislature 49 began 1991-02-01)
//
// Results are cached per Resolver, which lives for one job run.
package period

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/legisync/errors"
	"github.com/teranos/legisync/logger"
	"github.com/teranos/legisync/upstream"
)

const (
	// EpochNumber is the first legislature the arithmetic fallback knows
	EpochNumber = 49
	// TermYears is the fixed length of a legislature
	TermYears = 4

	dateLayout = "2006-01-02"
)

// Epoch is the first day of legislature EpochNumber
var Epoch = time.Date(1991, time.February, 1, 0, 0, 0, 0, time.UTC)

// Period is one legislature
type Period struct {
	Number int       `json:"number"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"` // inclusive, last day of the term
}

// Contains reports whether the calendar day of t falls within the period
func (p Period) Contains(t time.Time) bool {
	d := day(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

func (p Period) String() string {
	return fmt.Sprintf("%d (%s..%s)", p.Number, p.Start.Format(dateLayout), p.End.Format(dateLayout))
}

// Fetcher is the slice of the upstream client the resolver needs
type Fetcher interface {
	Get(ctx context.Context, path string, query url.Values, opts ...upstream.RequestOption) (upstream.Payload, error)
}

// Resolver resolves periods and caches what it resolved
type Resolver struct {
	fetcher Fetcher // nil = offline
	table   Table
	now     func() time.Time
	logger  *zap.SugaredLogger

	mu       sync.Mutex
	byDate   map[string]Period
	byNumber map[int]Period
}

// Option configures a Resolver
type Option func(*Resolver)

// WithTable replaces the embedded table
func WithTable(t Table) Option {
	return func(r *Resolver) {
		r.table = t
	}
}

// WithClock replaces time.Now as the default reference date
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithLogger sets the resolver logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(r *Resolver) {
		r.logger = log
	}
}

// NewResolver creates a resolver. fetcher may be nil to resolve offline.
func NewResolver(fetcher Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:  fetcher,
		table:    DefaultTable(),
		now:      time.Now,
		byDate:   make(map[string]Period),
		byNumber: make(map[int]Period),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.ComponentLogger("period")
	}
	return r
}

// Current resolves the period containing ref. A zero ref means now.
func (r *Resolver) Current(ctx context.Context, ref time.Time) (Period, error) {
	if ref.IsZero() {
		ref = r.now()
	}
	d := day(ref)
	key := d.Format(dateLayout)

	r.mu.Lock()
	if p, ok := r.byDate[key]; ok {
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	if d.Before(Epoch) {
		return Period{}, errors.NewValidationError("date %s is before the first known legislature (%s)", key, Epoch.Format(dateLayout))
	}

	p, source, err := r.resolveDate(ctx, d)
	if err != nil {
		return Period{}, err
	}

	r.logger.Debugw("Period resolved", logger.FieldPeriod, p.Number, "date", key, "source", source)
	r.store(key, p)
	return p, nil
}

// ByNumber resolves legislature n
func (r *Resolver) ByNumber(ctx context.Context, n int) (Period, error) {
	if n < 1 {
		return Period{}, errors.NewValidationError("legislature number must be >= 1, got %d", n)
	}

	r.mu.Lock()
	if p, ok := r.byNumber[n]; ok {
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	p, source, err := r.resolveNumber(ctx, n)
	if err != nil {
		return Period{}, err
	}

	r.logger.Debugw("Period resolved", logger.FieldPeriod, n, "source", source)
	r.store("", p)
	return p, nil
}

func (r *Resolver) store(dateKey string, p Period) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dateKey != "" {
		r.byDate[dateKey] = p
	}
	r.byNumber[p.Number] = p
}

func (r *Resolver) resolveDate(ctx context.Context, d time.Time) (Period, string, error) {
	if r.fetcher != nil {
		query := url.Values{}
		query.Set("data", d.Format(dateLayout))
		payload, err := r.fetcher.Get(ctx, "/legislaturas", query)
		if err == nil {
			for _, raw := range payload.Items() {
				p, perr := decodeRemote(raw)
				if perr == nil && p.Contains(d) {
					return p, "upstream", nil
				}
			}
		} else {
			r.logger.Warnw("Upstream period lookup failed, using table", logger.FieldError, err.Error())
		}
	}

	if p, ok := r.table.ByDate(d); ok {
		return p, "table", nil
	}

	return Arithmetic(d), "arithmetic", nil
}

func (r *Resolver) resolveNumber(ctx context.Context, n int) (Period, string, error) {
	if r.fetcher != nil {
		payload, err := r.fetcher.Get(ctx, "/legislaturas/{id}", nil,
			upstream.WithPathParams(map[string]string{"id": strconv.Itoa(n)}))
		if err == nil && payload.Len() > 0 {
			if p, perr := decodeRemote(payload.Items()[0]); perr == nil && p.Number == n {
				return p, "upstream", nil
			}
		} else if err != nil {
			r.logger.Warnw("Upstream period lookup failed, using table", logger.FieldPeriod, n, logger.FieldError, err.Error())
		}
	}

	if p, ok := r.table.ByNumber(n); ok {
		return p, "table", nil
	}

	if n < EpochNumber {
		return Period{}, "", errors.NewValidationError("legislature %d predates the first known legislature (%d)", n, EpochNumber)
	}
	return ArithmeticNumber(n), "arithmetic", nil
}

// Arithmetic computes the period containing d from the epoch.
// d must not be before Epoch.
func Arithmetic(d time.Time) Period {
	d = day(d)
	years := d.Year() - Epoch.Year()
	if d.Month() < time.February {
		years--
	}
	return ArithmeticNumber(EpochNumber + years/TermYears)
}

// ArithmeticNumber computes the dates of legislature n (n >= EpochNumber)
func ArithmeticNumber(n int) Period {
	startYear := Epoch.Year() + (n-EpochNumber)*TermYears
	return Period{
		Number: n,
		Start:  time.Date(startYear, time.February, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(startYear+TermYears, time.January, 31, 0, 0, 0, 0, time.UTC),
	}
}

// day truncates t to its calendar date in UTC
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
