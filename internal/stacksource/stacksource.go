package stacksource

const (
	// InvalidCallStack is returned when walking past the root of a chain
	// or when a call stack index can't be resolved.
	InvalidCallStack CallStackIndex = -1
	// InvalidFrame is returned when a frame index can't be resolved.
	InvalidFrame FrameIndex = -1
)

type (
	// CallStackIndex identifies a position in a caller chain.
	CallStackIndex int
	// FrameIndex identifies a distinct frame. It's the identity used to
	// deduplicate functions and locations.
	FrameIndex int

	Sample struct {
		StackIndex CallStackIndex `json:"stack"`
		// Metric is the sample weight, in milliseconds.
		Metric         float32 `json:"metric"`
		TimeRelativeMS float64 `json:"time_ms"`
	}

	// Source is a read-only view over decoded call stack samples.
	Source interface {
		// ForEach calls visit once per sample, in the order the source
		// stores them. Samples are not guaranteed to be sorted by time.
		ForEach(visit func(Sample))
		FrameIndex(CallStackIndex) FrameIndex
		FrameName(FrameIndex) string
		// CallerIndex returns InvalidCallStack at the root of a chain.
		CallerIndex(CallStackIndex) CallStackIndex
	}
)
