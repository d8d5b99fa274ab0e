package engine

import (
	"errors"
	"fmt"
	"math"

	"freight-dashboard/internal/models"
)

var (
	ErrUnknownDimension  = errors.New("unknown filter dimension")
	ErrInvalidConstraint = errors.New("invalid filter constraint")
)

type predicate func(models.Record) bool

// Filter returns the records matching every active constraint in spec, in
// their original order.
func Filter(records []models.Record, spec models.FilterSpec) ([]models.Record, error) {
	preds, err := compile(spec)
	if err != nil {
		return nil, err
	}

	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if matches(r, preds) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Validate checks spec against the schema without evaluating it.
func Validate(spec models.FilterSpec) error {
	_, err := compile(spec)
	return err
}

func matches(r models.Record, preds []predicate) bool {
	for _, p := range preds {
		if !p(r) {
			return false
		}
	}
	return true
}

func compile(spec models.FilterSpec) ([]predicate, error) {
	var preds []predicate
	for _, name := range spec.Dimensions() {
		c := spec[name]
		dim, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, name)
		}
		if c.Kind != dim.Kind {
			return nil, fmt.Errorf("%w: %q is %s, got %q constraint", ErrInvalidConstraint, name, dim.Kind, c.Kind)
		}
		if !c.Active() {
			continue
		}

		var p predicate
		var err error
		switch dim.Kind {
		case models.KindCategorical:
			p = categoryPredicate(dim, c.Values)
		case models.KindNumeric:
			p, err = rangePredicate(dim, c.Range)
		case models.KindDate:
			p, err = datePredicate(dim, c.Dates)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidConstraint, name, err)
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func categoryPredicate(dim Dimension, values []string) predicate {
	accepted := make(map[string]struct{}, len(values))
	for _, v := range values {
		accepted[models.NormalizeCategory(v)] = struct{}{}
	}
	return func(r models.Record) bool {
		_, ok := accepted[dim.category(r)]
		return ok
	}
}

// Missing values never satisfy an active range.
func rangePredicate(dim Dimension, rng models.NumericRange) (predicate, error) {
	if math.IsNaN(rng.Min) || math.IsNaN(rng.Max) {
		return nil, errors.New("range bound is NaN")
	}
	if rng.Min > rng.Max {
		return nil, fmt.Errorf("min %g exceeds max %g", rng.Min, rng.Max)
	}
	return func(r models.Record) bool {
		v := dim.number(r)
		return v.Valid && v.Value >= rng.Min && v.Value <= rng.Max
	}, nil
}

func datePredicate(dim Dimension, rng models.DateRange) (predicate, error) {
	var from, to models.Date
	if !rng.From.IsZero() {
		from = models.DayOf(rng.From)
	}
	if !rng.To.IsZero() {
		to = models.DayOf(rng.To)
	}
	if from.Valid && to.Valid && from.Time.After(to.Time) {
		return nil, fmt.Errorf("start %s is after end %s", from, to)
	}
	return func(r models.Record) bool {
		d := dim.date(r)
		if !d.Valid {
			return false
		}
		if from.Valid && d.Time.Before(from.Time) {
			return false
		}
		if to.Valid && d.Time.After(to.Time) {
			return false
		}
		return true
	}, nil
}
