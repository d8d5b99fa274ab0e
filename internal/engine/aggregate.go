package engine

import (
	"cmp"
	"slices"

	"freight-dashboard/internal/models"
)

type Aggregate string

const (
	Count Aggregate = "count"
	Sum   Aggregate = "sum"
	Mean  Aggregate = "mean"
)

type SortPolicy string

const (
	// ByValueDesc orders groups by descending value; ties keep the order in
	// which groups were first encountered.
	ByValueDesc SortPolicy = "value_desc"
	// ByKey orders groups by their key using Grouping.Compare.
	ByKey SortPolicy = "key"
)

// Grouping parameterizes GroupAndAggregate.
type Grouping[K comparable] struct {
	// Key extracts the group key. Returning false leaves the record out of
	// this grouping only.
	Key func(models.Record) (K, bool)
	// Measure is read by Sum and Mean. Missing values are skipped.
	Measure   func(models.Record) models.Float
	Aggregate Aggregate
	Sort      SortPolicy
	Compare   func(a, b K) int
}

// Bucket is one aggregated group. Count is the number of records in the
// group; Present is how many of them carried the measure.
type Bucket[K comparable] struct {
	Key     K
	Value   float64
	Count   int
	Present int
}

// GroupAndAggregate groups records by g.Key and aggregates each group.
// Only groups that received at least one record are returned.
func GroupAndAggregate[K comparable](records []models.Record, g Grouping[K]) []Bucket[K] {
	index := make(map[K]int)
	var buckets []Bucket[K]
	var sums []float64

	for _, r := range records {
		key, ok := g.Key(r)
		if !ok {
			continue
		}
		i, seen := index[key]
		if !seen {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, Bucket[K]{Key: key})
			sums = append(sums, 0)
		}
		buckets[i].Count++
		if g.Measure != nil {
			if v := g.Measure(r); v.Valid {
				buckets[i].Present++
				sums[i] += v.Value
			}
		}
	}

	for i := range buckets {
		switch g.Aggregate {
		case Sum:
			buckets[i].Value = sums[i]
		case Mean:
			if buckets[i].Present > 0 {
				buckets[i].Value = sums[i] / float64(buckets[i].Present)
			}
		default:
			buckets[i].Value = float64(buckets[i].Count)
		}
	}

	switch g.Sort {
	case ByValueDesc:
		slices.SortStableFunc(buckets, func(a, b Bucket[K]) int {
			return cmp.Compare(b.Value, a.Value)
		})
	case ByKey:
		if g.Compare != nil {
			slices.SortStableFunc(buckets, func(a, b Bucket[K]) int {
				return g.Compare(a.Key, b.Key)
			})
		}
	}
	return buckets
}

// MeanOf averages the present values of measure; 0 when none are present.
func MeanOf(records []models.Record, measure func(models.Record) models.Float) float64 {
	var sum float64
	n := 0
	for _, r := range records {
		if v := measure(r); v.Valid {
			sum += v.Value
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// SumOf adds the present values of measure.
func SumOf(records []models.Record, measure func(models.Record) models.Float) float64 {
	var sum float64
	for _, r := range records {
		if v := measure(r); v.Valid {
			sum += v.Value
		}
	}
	return sum
}
