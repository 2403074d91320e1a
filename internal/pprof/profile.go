// Package pprof converts decoded call stack samples into the pprof profile
// format (github.com/google/pprof/proto/profile.proto).
package pprof

const (
	Samples     = "samples"
	Count       = "count"
	CPU         = "cpu"
	Nanoseconds = "nanoseconds"
	Thread      = "thread"

	// Unknown is the thread label of samples whose chain doesn't go through
	// a ThreadsFrame.
	Unknown = "--UNKNOWN--"

	// CPUTime and UnmanagedCodeTime are synthetic leaf frames added by the
	// thread time computation. They are dropped from locations, otherwise
	// all the self time would be attributed to them instead of the method
	// actually running.
	CPUTime           = "CPU_TIME"
	UnmanagedCodeTime = "UNMANAGED_CODE_TIME"

	// ThreadsFrame groups threads. The frame right below it, towards the
	// leaf, names the thread.
	ThreadsFrame = "Threads"

	// Period is one second, in nanoseconds.
	Period int64 = 1_000_000_000
)

var wellKnownStrings = []string{
	Samples,
	Count,
	CPU,
	Nanoseconds,
	Thread,
	Unknown,
	CPUTime,
	UnmanagedCodeTime,
}

type (
	// ValueType describes a sample value. Both fields are string table ids.
	ValueType struct {
		Type int64
		Unit int64
	}

	Function struct {
		ID   uint64
		Name int64
	}

	Line struct {
		FunctionID uint64
	}

	Location struct {
		ID    uint64
		Lines []Line
	}

	Label struct {
		Key int64
		Str int64
	}

	Sample struct {
		// LocationIDs are ordered leaf first.
		LocationIDs []uint64
		// Values are ordered like Profile.SampleTypes.
		Values []int64
		Labels []Label
	}

	Profile struct {
		StringTable []string
		SampleTypes []ValueType
		PeriodType  ValueType
		Period      int64
		Functions   []Function
		Locations   []Location
		Samples     []Sample
	}
)
