package stacksource

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/getsentry/pprofbridge/internal/errorutil"
)

type (
	Stack struct {
		Frame  FrameIndex     `json:"frame"`
		Caller CallStackIndex `json:"caller"`
	}

	// Document is a decoded trace held in memory. Stacks form a tree where
	// each stack points to its caller, and a caller always comes before
	// the stacks it calls.
	Document struct {
		Frames  []string `json:"frames"`
		Stacks  []Stack  `json:"stacks"`
		Samples []Sample `json:"samples"`

		frames map[string]FrameIndex
		stacks map[Stack]CallStackIndex
	}
)

// Decode reads a JSON document from r and validates it.
func Decode(r io.Reader) (*Document, error) {
	var d Document
	err := json.NewDecoder(r).Decode(&d)
	if err != nil {
		return nil, err
	}
	err = d.Validate()
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate makes sure every index points inside the document and that
// no chain loops back on itself.
func (d *Document) Validate() error {
	for i, s := range d.Stacks {
		if s.Frame < 0 || int(s.Frame) >= len(d.Frames) {
			return fmt.Errorf("%w: stack %d references unknown frame %d", errorutil.ErrDataIntegrity, i, s.Frame)
		}
		if s.Caller != InvalidCallStack && (s.Caller < 0 || int(s.Caller) >= i) {
			return fmt.Errorf("%w: stack %d has invalid caller %d", errorutil.ErrDataIntegrity, i, s.Caller)
		}
	}
	for i, s := range d.Samples {
		if s.StackIndex < 0 || int(s.StackIndex) >= len(d.Stacks) {
			return fmt.Errorf("%w: sample %d references unknown stack %d", errorutil.ErrDataIntegrity, i, s.StackIndex)
		}
	}
	return nil
}

func (d *Document) ForEach(visit func(Sample)) {
	for _, s := range d.Samples {
		visit(s)
	}
}

func (d *Document) FrameIndex(i CallStackIndex) FrameIndex {
	if i < 0 || int(i) >= len(d.Stacks) {
		return InvalidFrame
	}
	return d.Stacks[i].Frame
}

func (d *Document) FrameName(i FrameIndex) string {
	if i < 0 || int(i) >= len(d.Frames) {
		return ""
	}
	return d.Frames[i]
}

func (d *Document) CallerIndex(i CallStackIndex) CallStackIndex {
	if i < 0 || int(i) >= len(d.Stacks) {
		return InvalidCallStack
	}
	return d.Stacks[i].Caller
}

// AddStack registers a chain given leaf first and returns the index of
// its leaf. Frames and chain prefixes already present are reused.
func (d *Document) AddStack(leafFirst ...string) CallStackIndex {
	if d.frames == nil {
		d.frames = make(map[string]FrameIndex, len(d.Frames))
		for i, name := range d.Frames {
			d.frames[name] = FrameIndex(i)
		}
	}
	if d.stacks == nil {
		d.stacks = make(map[Stack]CallStackIndex, len(d.Stacks))
		for i, s := range d.Stacks {
			d.stacks[s] = CallStackIndex(i)
		}
	}
	caller := InvalidCallStack
	for i := len(leafFirst) - 1; i >= 0; i-- {
		name := leafFirst[i]
		frame, exists := d.frames[name]
		if !exists {
			frame = FrameIndex(len(d.Frames))
			d.Frames = append(d.Frames, name)
			d.frames[name] = frame
		}
		s := Stack{Frame: frame, Caller: caller}
		index, exists := d.stacks[s]
		if !exists {
			index = CallStackIndex(len(d.Stacks))
			d.Stacks = append(d.Stacks, s)
			d.stacks[s] = index
		}
		caller = index
	}
	return caller
}

// AddSample appends a sample weighing metricMS milliseconds.
func (d *Document) AddSample(stack CallStackIndex, metricMS float32, timeMS float64) {
	d.Samples = append(d.Samples, Sample{
		StackIndex:     stack,
		Metric:         metricMS,
		TimeRelativeMS: timeMS,
	})
}
