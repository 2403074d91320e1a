package pprof

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/getsentry/pprofbridge/internal/stacksource"
)

type (
	Options struct {
		Trailing TrailingSample
	}

	// Stats describes a conversion run. It's not part of the encoded profile.
	Stats struct {
		RawSamples           int
		UnknownThreadSamples int
	}

	builder struct {
		source   stacksource.Source
		strings  *StringTable
		registry *Registry
	}
)

// Convert builds a profile out of all the samples of source. It checks ctx
// before building each sample and returns ctx's error, without a profile,
// when it's done.
func Convert(ctx context.Context, source stacksource.Source, opts Options) (*Profile, Stats, error) {
	strings := NewStringTable()
	b := builder{
		source:   source,
		strings:  strings,
		registry: NewRegistry(strings),
	}
	p := &Profile{
		PeriodType: ValueType{Type: strings.Intern(CPU), Unit: strings.Intern(Nanoseconds)},
		Period:     Period,
		SampleTypes: []ValueType{
			{Type: strings.Intern(Samples), Unit: strings.Intern(Count)},
			{Type: strings.Intern(CPU), Unit: strings.Intern(Nanoseconds)},
		},
	}

	var samples []RawSample
	source.ForEach(func(s stacksource.Sample) {
		samples = append(samples, NewRawSample(s))
	})

	stats := Stats{RawSamples: len(samples)}
	cumulativeSamples := Aggregate(samples, opts.Trailing)
	p.Samples = make([]Sample, 0, len(cumulativeSamples))
	for _, cs := range cumulativeSamples {
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("conversion aborted after %d samples: %w", len(p.Samples), err)
		}
		threadName := b.threadName(cs.StackIndex)
		if threadName == Unknown {
			stats.UnknownThreadSamples++
		}
		p.Samples = append(p.Samples, b.sample(cs, threadName))
	}

	if len(p.Samples) > 0 && stats.UnknownThreadSamples == len(p.Samples) {
		log.Warn().
			Int("samples", len(p.Samples)).
			Str("sentinel", ThreadsFrame).
			Msg("no sample has a thread frame, all samples are labeled as unknown")
	}

	p.Functions = b.registry.Functions()
	p.Locations = b.registry.Locations()
	p.StringTable = strings.Strings()
	return p, stats, nil
}

func (b *builder) sample(cs CumulativeSample, threadName string) Sample {
	var locationIDs []uint64
	for i := cs.StackIndex; i != stacksource.InvalidCallStack; i = b.source.CallerIndex(i) {
		frame := b.source.FrameIndex(i)
		if frame == stacksource.InvalidFrame {
			break
		}
		name := b.source.FrameName(frame)
		if name == CPUTime || name == UnmanagedCodeTime {
			continue
		}
		locationIDs = append(locationIDs, b.registry.Resolve(frame, name))
	}
	return Sample{
		LocationIDs: locationIDs,
		Labels: []Label{
			{Key: b.strings.Intern(Thread), Str: b.strings.Intern(threadName)},
		},
		Values: []int64{cs.Count, cs.Nanoseconds},
	}
}

// threadName returns the name of the frame right below ThreadsFrame in the
// chain, or Unknown if the chain doesn't reach one.
func (b *builder) threadName(i stacksource.CallStackIndex) string {
	previous := Unknown
	for ; i != stacksource.InvalidCallStack; i = b.source.CallerIndex(i) {
		frame := b.source.FrameIndex(i)
		if frame == stacksource.InvalidFrame {
			break
		}
		name := b.source.FrameName(frame)
		if name == ThreadsFrame {
			return previous
		}
		previous = name
	}
	return Unknown
}
