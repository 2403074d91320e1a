package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/getsentry/pprofbridge/internal/pprof"
)

var (
	// ErrFetch is returned when the agent can't provide a trace.
	ErrFetch = errors.New("trace fetch failed")
	// ErrDecode is returned when a trace can't be turned into samples.
	ErrDecode = errors.New("trace decode failed")
)

type Capturer struct {
	Fetcher *Fetcher
	Decoder Decoder
	Options pprof.Options
}

// Capture collects a CPU trace lasting d and converts it. The staged trace
// is removed whether the capture succeeds or not.
func (c *Capturer) Capture(ctx context.Context, d time.Duration) (*pprof.Profile, pprof.Stats, error) {
	artifact, err := c.Fetcher.Fetch(ctx, d)
	if err != nil {
		// The HTTP client flattens errors, the context keeps the cause
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, pprof.Stats{}, fmt.Errorf("%w: %w", ErrFetch, ctxErr)
		}
		return nil, pprof.Stats{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer func() {
		if err := artifact.Remove(); err != nil {
			log.Err(err).Str("key", artifact.Key).Msg("couldn't remove staged trace")
		}
	}()

	rc, err := artifact.Open(ctx)
	if err != nil {
		return nil, pprof.Stats{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	log.Info().Str("key", artifact.Key).Int64("size", artifact.Size).Msg("decoding trace")
	source, err := c.Decoder.Decode(ctx, rc)
	rc.Close()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, pprof.Stats{}, fmt.Errorf("%w: %w", ErrDecode, ctxErr)
		}
		return nil, pprof.Stats{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	log.Info().Msg("converting samples to pprof")
	return pprof.Convert(ctx, source, c.Options)
}
