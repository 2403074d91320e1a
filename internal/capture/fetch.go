package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gocloud.dev/blob"
)

type (
	// Fetcher collects CPU traces from a dotnet-monitor instance and stages
	// them in a bucket until they are decoded.
	Fetcher struct {
		agent   *url.URL
		client  *httpclient.Client
		staging *blob.Bucket
	}

	// Artifact is a trace staged in a bucket.
	Artifact struct {
		Key  string
		Size int64

		bucket *blob.Bucket
	}
)

func NewFetcher(agentURL string, staging *blob.Bucket, opts ...httpclient.Option) (*Fetcher, error) {
	if agentURL == "" {
		return nil, fmt.Errorf("agent URL must be set")
	}
	u, err := url.Parse(agentURL)
	if err != nil {
		return nil, fmt.Errorf("invalid agent URL: %w", err)
	}
	if staging == nil {
		return nil, fmt.Errorf("staging bucket must be set")
	}
	return &Fetcher{
		agent:   u,
		client:  httpclient.NewClient(opts...),
		staging: staging,
	}, nil
}

// TraceURL returns the URL to collect a CPU trace lasting d. The query of
// the configured agent URL is preserved.
func (f *Fetcher) TraceURL(d time.Duration) string {
	u := *f.agent
	q := u.Query()
	q.Add("durationSeconds", strconv.FormatInt(int64(d/time.Second), 10))
	q.Add("profile", "Cpu")
	u.RawQuery = q.Encode()
	u.Path = "/trace"
	return u.String()
}

// Fetch collects a trace lasting d and streams it to the staging bucket.
// The caller owns the returned artifact and has to remove it.
func (f *Fetcher) Fetch(ctx context.Context, d time.Duration) (*Artifact, error) {
	traceURL := f.TraceURL(d)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, traceURL, nil)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("url", traceURL).Dur("duration", d).Msg("collecting trace")

	resp, err := f.client.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 && resp.StatusCode <= 599 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("error while trying to collect a trace. http status: %d, message: %s", resp.StatusCode, body)
	}

	a := &Artifact{
		Key:    uuid.New().String() + "/profile.nettrace",
		bucket: f.staging,
	}
	log.Info().Str("key", a.Key).Msg("response received, streaming to the staging bucket")

	w, err := f.staging.NewWriter(ctx, a.Key, &blob.WriterOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return nil, err
	}
	a.Size, err = io.Copy(w, resp.Body)
	if err != nil {
		_ = w.Close()
		a.remove()
		return nil, err
	}
	err = w.Close()
	if err != nil {
		a.remove()
		return nil, err
	}
	return a, nil
}

func (a *Artifact) Open(ctx context.Context) (io.ReadCloser, error) {
	return a.bucket.NewReader(ctx, a.Key, nil)
}

// Remove deletes the artifact from the staging bucket. It uses its own
// context so it still runs when the request was canceled.
func (a *Artifact) Remove() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.bucket.Delete(ctx, a.Key)
}

func (a *Artifact) remove() {
	if err := a.Remove(); err != nil {
		log.Debug().Err(err).Str("key", a.Key).Msg("couldn't remove partial artifact")
	}
}
