package stacksource

import (
	"errors"
	"strings"
	"testing"

	"github.com/getsentry/pprofbridge/internal/errorutil"
	"github.com/getsentry/pprofbridge/internal/testutil"
)

func TestAddStack(t *testing.T) {
	var d Document
	foo := d.AddStack("foo", "main")
	bar := d.AddStack("bar", "main")
	again := d.AddStack("foo", "main")

	if foo != again {
		t.Fatalf("expected the same stack index for the same chain, got %d and %d", foo, again)
	}
	if diff := testutil.Diff(d.Frames, []string{"main", "foo", "bar"}); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	if diff := testutil.Diff(d.Stacks, []Stack{
		{Frame: 0, Caller: InvalidCallStack},
		{Frame: 1, Caller: 0},
		{Frame: 2, Caller: 0},
	}); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	if bar != 2 {
		t.Fatalf("expected bar to be stack 2, got %d", bar)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("a built document should be valid: %v", err)
	}
}

func TestWalk(t *testing.T) {
	var d Document
	leaf := d.AddStack("foo", "main")

	var names []string
	for i := leaf; i != InvalidCallStack; i = d.CallerIndex(i) {
		names = append(names, d.FrameName(d.FrameIndex(i)))
	}
	if diff := testutil.Diff(names, []string{"foo", "main"}); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}

	if got := d.CallerIndex(42); got != InvalidCallStack {
		t.Fatalf("expected an invalid caller for an unknown stack, got %d", got)
	}
	if got := d.FrameIndex(-3); got != InvalidFrame {
		t.Fatalf("expected an invalid frame for an unknown stack, got %d", got)
	}
	if got := d.FrameName(InvalidFrame); got != "" {
		t.Fatalf("expected an empty name for an invalid frame, got %q", got)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:  "valid",
			input: `{"frames":["main","foo"],"stacks":[{"frame":0,"caller":-1},{"frame":1,"caller":0}],"samples":[{"stack":1,"metric":1.5,"time_ms":0.25}]}`,
		},
		{
			name:  "empty",
			input: `{}`,
		},
		{
			name:    "unknown frame",
			input:   `{"frames":["main"],"stacks":[{"frame":3,"caller":-1}]}`,
			wantErr: true,
		},
		{
			name:    "caller after callee",
			input:   `{"frames":["main"],"stacks":[{"frame":0,"caller":1},{"frame":0,"caller":-1}]}`,
			wantErr: true,
		},
		{
			name:    "self referencing stack",
			input:   `{"frames":["main"],"stacks":[{"frame":0,"caller":0}]}`,
			wantErr: true,
		},
		{
			name:    "unknown stack",
			input:   `{"frames":["main"],"stacks":[{"frame":0,"caller":-1}],"samples":[{"stack":5}]}`,
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d, err := Decode(strings.NewReader(test.input))
			if test.wantErr {
				if !errors.Is(err, errorutil.ErrDataIntegrity) {
					t.Fatalf("expected a data integrity error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("we should be able to decode the document: %v", err)
			}
			if d == nil {
				t.Fatal("expected a document")
			}
		})
	}
}

func TestDecodeSample(t *testing.T) {
	d, err := Decode(strings.NewReader(`{"frames":["main"],"stacks":[{"frame":0,"caller":-1}],"samples":[{"stack":0,"metric":1.5,"time_ms":0.25}]}`))
	if err != nil {
		t.Fatalf("we should be able to decode the document: %v", err)
	}
	var samples []Sample
	d.ForEach(func(s Sample) {
		samples = append(samples, s)
	})
	if diff := testutil.Diff(samples, []Sample{{StackIndex: 0, Metric: 1.5, TimeRelativeMS: 0.25}}); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}
