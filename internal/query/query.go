// Package query turns flat key/value selections, as sent by the filter bar,
// the REST API and the CLI, into a FilterSpec.
//
// Categorical dimensions take one or more values by repeating the key. A
// value is taken whole, so categories containing commas survive. Numeric dimensions take <dim>_min and <dim>_max; date
// dimensions take <dim>_from and <dim>_to. The value All, or an empty
// value, leaves a dimension unconstrained.
package query

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"freight-dashboard/internal/engine"
	"freight-dashboard/internal/models"
)

// All is the filter-bar sentinel for "no constraint".
const All = "All"

const GranularityKey = "granularity"

// Keys that carry paging or rendering options rather than filters.
var reserved = []string{GranularityKey, "limit", "offset", "datastar"}

type bound int

const (
	noBound bound = iota
	minBound
	maxBound
	fromBound
	toBound
)

var suffixes = []struct {
	suffix string
	bound  bound
}{
	{"_min", minBound},
	{"_max", maxBound},
	{"_from", fromBound},
	{"_to", toBound},
}

func splitKey(key string) (string, bound) {
	for _, s := range suffixes {
		if dim, ok := strings.CutSuffix(key, s.suffix); ok && dim != "" {
			return dim, s.bound
		}
	}
	return key, noBound
}

type partial struct {
	kind   models.ConstraintKind
	values []string
	rng    models.NumericRange
	dates  models.DateRange
	all    bool
}

// Parse builds a FilterSpec and timeline granularity from values. Unknown
// dimension names are kept so evaluation can report them. The granularity
// is empty when values do not select one.
func Parse(values url.Values) (models.FilterSpec, engine.Granularity, error) {
	var granularity engine.Granularity
	if raw := strings.TrimSpace(values.Get(GranularityKey)); raw != "" {
		g, err := engine.ParseGranularity(raw)
		if err != nil {
			return nil, "", err
		}
		granularity = g
	}

	parts := make(map[string]*partial)
	get := func(dim string, kind models.ConstraintKind) (*partial, error) {
		p, ok := parts[dim]
		if !ok {
			p = &partial{kind: kind, rng: models.NumericRange{Min: math.Inf(-1), Max: math.Inf(1)}}
			parts[dim] = p
		}
		if p.kind != kind {
			return nil, fmt.Errorf("%w: %q mixes %s and %s selections", engine.ErrInvalidConstraint, dim, p.kind, kind)
		}
		return p, nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if slices.Contains(reserved, key) {
			continue
		}
		dim, b := splitKey(key)
		raw := strings.TrimSpace(values.Get(key))

		switch b {
		case noBound:
			p, err := get(dim, models.KindCategorical)
			if err != nil {
				return nil, "", err
			}
			for _, v := range values[key] {
				item := strings.TrimSpace(v)
				switch {
				case item == "":
				case strings.EqualFold(item, All):
					p.all = true
				default:
					p.values = append(p.values, item)
				}
			}
		case minBound, maxBound:
			p, err := get(dim, models.KindNumeric)
			if err != nil {
				return nil, "", err
			}
			if raw == "" {
				continue
			}
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(f) {
				return nil, "", fmt.Errorf("%w: %s=%q is not a number", engine.ErrInvalidConstraint, key, raw)
			}
			if b == minBound {
				p.rng.Min = f
			} else {
				p.rng.Max = f
			}
		case fromBound, toBound:
			p, err := get(dim, models.KindDate)
			if err != nil {
				return nil, "", err
			}
			if raw == "" {
				continue
			}
			t, err := time.Parse(models.DateLayout, raw)
			if err != nil {
				return nil, "", fmt.Errorf("%w: %s=%q is not a %s date", engine.ErrInvalidConstraint, key, raw, models.DateLayout)
			}
			if b == fromBound {
				p.dates.From = t
			} else {
				p.dates.To = t
			}
		}
	}

	spec := models.NewFilterSpec()
	for dim, p := range parts {
		switch p.kind {
		case models.KindCategorical:
			if p.all || len(p.values) == 0 {
				spec[dim] = models.OneOf()
			} else {
				spec[dim] = models.OneOf(p.values...)
			}
		case models.KindNumeric:
			spec[dim] = models.Between(p.rng.Min, p.rng.Max)
		case models.KindDate:
			spec[dim] = models.DateBetween(p.dates.From, p.dates.To)
		}
	}
	return spec, granularity, nil
}

// ParsePairs converts "key=value" arguments into url.Values.
func ParsePairs(pairs []string) (url.Values, error) {
	values := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("filter %q must look like key=value", pair)
		}
		values.Add(key, value)
	}
	return values, nil
}

// Encode renders spec back into query values accepted by Parse.
func Encode(spec models.FilterSpec, granularity engine.Granularity) url.Values {
	values := url.Values{}
	for _, dim := range spec.Dimensions() {
		c := spec[dim]
		if !c.Active() {
			continue
		}
		switch c.Kind {
		case models.KindCategorical:
			for _, v := range c.Values {
				values.Add(dim, v)
			}
		case models.KindNumeric:
			if !math.IsInf(c.Range.Min, 0) {
				values.Set(dim+"_min", strconv.FormatFloat(c.Range.Min, 'f', -1, 64))
			}
			if !math.IsInf(c.Range.Max, 0) {
				values.Set(dim+"_max", strconv.FormatFloat(c.Range.Max, 'f', -1, 64))
			}
		case models.KindDate:
			if !c.Dates.From.IsZero() {
				values.Set(dim+"_from", c.Dates.From.Format(models.DateLayout))
			}
			if !c.Dates.To.IsZero() {
				values.Set(dim+"_to", c.Dates.To.Format(models.DateLayout))
			}
		}
	}
	if granularity != "" && granularity != engine.Day {
		values.Set(GranularityKey, string(granularity))
	}
	return values
}
