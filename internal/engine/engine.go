// Package engine evaluates filter specifications against an immutable lead
// dataset and derives summary metrics and chart datasets from the result.
//
// Every function here is a pure function of its inputs. Callers may run any
// number of evaluations concurrently over the same records.
package engine

import (
	"fmt"
	"strings"

	"freight-dashboard/internal/models"
)

// Granularity selects the calendar bucket used by the timeline chart.
type Granularity string

const (
	Day   Granularity = "day"
	Month Granularity = "month"
)

// ParseGranularity accepts "day" or "month". An empty string means Day.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Day):
		return Day, nil
	case string(Month):
		return Month, nil
	default:
		return "", fmt.Errorf("%w: granularity %q", ErrInvalidConstraint, s)
	}
}

type config struct {
	granularity Granularity
}

type Option func(*config)

func WithGranularity(g Granularity) Option {
	return func(c *config) {
		if g == Month {
			c.granularity = Month
		} else {
			c.granularity = Day
		}
	}
}

func applyOptions(opts []Option) *config {
	cfg := &config{granularity: Day}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Source is anything that exposes an ordered, read-only record sequence.
type Source interface {
	Records() []models.Record
}

// Evaluate filters the records of src by spec and computes the summary and
// every chart from the filtered subset. It fails only when spec names an
// unknown dimension or carries a malformed constraint.
func Evaluate(src Source, spec models.FilterSpec, opts ...Option) (*models.EngineResult, error) {
	filtered, err := Filter(src.Records(), spec)
	if err != nil {
		return nil, err
	}
	return &models.EngineResult{
		Records: filtered,
		Summary: Summarize(filtered),
		Charts:  Charts(filtered, opts...),
	}, nil
}
