package pprof

import (
	"math"
	"sort"

	"github.com/getsentry/pprofbridge/internal/stacksource"
)

const (
	// FlushTrailing emits the last run of samples like any other.
	FlushTrailing TrailingSample = iota
	// DropTrailing never emits the last run of samples, which is how the
	// first version of the bridge behaved. Kept for output compatibility.
	DropTrailing
)

type (
	TrailingSample int

	RawSample struct {
		StackIndex   stacksource.CallStackIndex
		Nanoseconds  int64
		TimeOffsetMS float64
	}

	// CumulativeSample is a run of adjacent samples sharing a stack.
	CumulativeSample struct {
		StackIndex  stacksource.CallStackIndex
		Nanoseconds int64
		Count       int64
	}
)

// NewRawSample converts a sample weight from milliseconds to nanoseconds.
func NewRawSample(s stacksource.Sample) RawSample {
	return RawSample{
		StackIndex:   s.StackIndex,
		Nanoseconds:  int64(math.Round(float64(s.Metric) * 1_000_000)),
		TimeOffsetMS: s.TimeRelativeMS,
	}
}

func NewCumulativeSample(s RawSample) CumulativeSample {
	return CumulativeSample{
		StackIndex:  s.StackIndex,
		Nanoseconds: s.Nanoseconds,
		Count:       1,
	}
}

// TryAdd returns c with s folded in if they share a stack, and c unchanged
// otherwise.
func (c CumulativeSample) TryAdd(s RawSample) (CumulativeSample, bool) {
	if s.StackIndex != c.StackIndex {
		return c, false
	}
	return CumulativeSample{
		StackIndex:  c.StackIndex,
		Nanoseconds: c.Nanoseconds + s.Nanoseconds,
		Count:       c.Count + 1,
	}, true
}

// Aggregate sorts samples by time and merges adjacent samples sharing a
// stack. Samples with the same stack separated by another stack are kept
// apart. samples is sorted in place.
func Aggregate(samples []RawSample, trailing TrailingSample) []CumulativeSample {
	if len(samples) == 0 {
		return nil
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].TimeOffsetMS < samples[j].TimeOffsetMS
	})

	var cumulativeSamples []CumulativeSample
	current := NewCumulativeSample(samples[0])
	for _, s := range samples[1:] {
		combined, ok := current.TryAdd(s)
		if ok {
			current = combined
			continue
		}
		cumulativeSamples = append(cumulativeSamples, current)
		current = NewCumulativeSample(s)
	}
	if trailing == FlushTrailing {
		cumulativeSamples = append(cumulativeSamples, current)
	}
	return cumulativeSamples
}
