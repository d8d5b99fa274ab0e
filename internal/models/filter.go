package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"
)

type ConstraintKind string

const (
	KindCategorical ConstraintKind = "categorical"
	KindNumeric     ConstraintKind = "numeric"
	KindDate        ConstraintKind = "date"
)

// NumericRange is inclusive on both ends. Open ends are ±Inf.
type NumericRange struct {
	Min float64
	Max float64
}

// DateRange is inclusive on both calendar days. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Constraint restricts one filter dimension.
type Constraint struct {
	Kind   ConstraintKind
	Values []string
	Range  NumericRange
	Dates  DateRange
}

// OneOf accepts records whose categorical value is in values. An empty set
// places no constraint.
func OneOf(values ...string) Constraint {
	return Constraint{Kind: KindCategorical, Values: slices.Clone(values)}
}

func Between(min, max float64) Constraint {
	return Constraint{Kind: KindNumeric, Range: NumericRange{Min: min, Max: max}}
}

func AtLeast(min float64) Constraint {
	return Between(min, math.Inf(1))
}

func AtMost(max float64) Constraint {
	return Between(math.Inf(-1), max)
}

func DateBetween(from, to time.Time) Constraint {
	return Constraint{Kind: KindDate, Dates: DateRange{From: from, To: to}}
}

// Active reports whether the constraint can exclude anything.
func (c Constraint) Active() bool {
	switch c.Kind {
	case KindCategorical:
		return len(c.Values) > 0
	case KindNumeric:
		return !math.IsInf(c.Range.Min, -1) || !math.IsInf(c.Range.Max, 1)
	case KindDate:
		return !c.Dates.From.IsZero() || !c.Dates.To.IsZero()
	default:
		return false
	}
}

type constraintJSON struct {
	Values []string `json:"values,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	From   string   `json:"from,omitempty"`
	To     string   `json:"to,omitempty"`
}

func (c Constraint) MarshalJSON() ([]byte, error) {
	var out constraintJSON
	switch c.Kind {
	case KindCategorical:
		out.Values = c.Values
		if out.Values == nil {
			out.Values = []string{}
		}
	case KindNumeric:
		if !math.IsInf(c.Range.Min, 0) {
			out.Min = &c.Range.Min
		}
		if !math.IsInf(c.Range.Max, 0) {
			out.Max = &c.Range.Max
		}
	case KindDate:
		if !c.Dates.From.IsZero() {
			out.From = c.Dates.From.Format(DateLayout)
		}
		if !c.Dates.To.IsZero() {
			out.To = c.Dates.To.Format(DateLayout)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON infers the kind from the keys present: values, min/max or
// from/to.
func (c *Constraint) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var in constraintJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	_, hasValues := raw["values"]
	_, hasMin := raw["min"]
	_, hasMax := raw["max"]
	_, hasFrom := raw["from"]
	_, hasTo := raw["to"]

	switch {
	case hasValues && !hasMin && !hasMax && !hasFrom && !hasTo:
		*c = OneOf(in.Values...)
	case (hasMin || hasMax) && !hasValues && !hasFrom && !hasTo:
		r := NumericRange{Min: math.Inf(-1), Max: math.Inf(1)}
		if in.Min != nil {
			r.Min = *in.Min
		}
		if in.Max != nil {
			r.Max = *in.Max
		}
		*c = Between(r.Min, r.Max)
	case (hasFrom || hasTo) && !hasValues && !hasMin && !hasMax:
		var dr DateRange
		var err error
		if in.From != "" {
			if dr.From, err = time.Parse(DateLayout, in.From); err != nil {
				return fmt.Errorf("parse from date: %w", err)
			}
		}
		if in.To != "" {
			if dr.To, err = time.Parse(DateLayout, in.To); err != nil {
				return fmt.Errorf("parse to date: %w", err)
			}
		}
		*c = DateBetween(dr.From, dr.To)
	default:
		return fmt.Errorf("constraint must have exactly one of values, min/max or from/to")
	}
	return nil
}

// FilterSpec maps dimension names to constraints. Treat it as a value:
// use With to derive a narrowed spec instead of writing into the map.
type FilterSpec map[string]Constraint

func NewFilterSpec() FilterSpec {
	return FilterSpec{}
}

// With returns a copy of f with dimension constrained by c.
func (f FilterSpec) With(dimension string, c Constraint) FilterSpec {
	next := make(FilterSpec, len(f)+1)
	maps.Copy(next, f)
	next[dimension] = c
	return next
}

// Dimensions returns the constrained dimension names in sorted order.
func (f FilterSpec) Dimensions() []string {
	return slices.Sorted(maps.Keys(f))
}

// IsEmpty reports whether no constraint in f is active.
func (f FilterSpec) IsEmpty() bool {
	for _, c := range f {
		if c.Active() {
			return false
		}
	}
	return true
}
