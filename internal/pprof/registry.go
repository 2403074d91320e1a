package pprof

import "github.com/getsentry/pprofbridge/internal/stacksource"

// Registry assigns function and location ids to frames. A location is
// created for each function and shares its id.
type Registry struct {
	strings   *StringTable
	ids       map[stacksource.FrameIndex]uint64
	functions []Function
	locations []Location
}

func NewRegistry(strings *StringTable) *Registry {
	return &Registry{
		strings: strings,
		ids:     make(map[stacksource.FrameIndex]uint64),
	}
}

// Resolve returns the location id of frame. Frames are deduplicated by
// identity: two frames with the same name get distinct ids.
func (r *Registry) Resolve(frame stacksource.FrameIndex, name string) uint64 {
	if id, exists := r.ids[frame]; exists {
		return id
	}
	f := Function{
		ID:   uint64(len(r.functions)) + 1,
		Name: r.strings.Intern(name),
	}
	r.ids[frame] = f.ID
	r.functions = append(r.functions, f)
	r.locations = append(r.locations, Location{
		ID:    f.ID,
		Lines: []Line{{FunctionID: f.ID}},
	})
	return f.ID
}

func (r *Registry) Functions() []Function {
	return r.functions
}

func (r *Registry) Locations() []Location {
	return r.locations
}
