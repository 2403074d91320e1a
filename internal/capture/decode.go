package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gojek/heimdall/v7/httpclient"

	"github.com/getsentry/pprofbridge/internal/stacksource"
)

type (
	// Decoder turns a raw trace into call stack samples.
	Decoder interface {
		Decode(ctx context.Context, trace io.Reader) (stacksource.Source, error)
	}

	// HTTPDecoder sends traces to a decoding service answering with a stack
	// document.
	HTTPDecoder struct {
		url    string
		client *httpclient.Client
	}

	// DocumentDecoder reads traces that already are stack documents.
	DocumentDecoder struct{}
)

func NewHTTPDecoder(decoderURL string, opts ...httpclient.Option) (*HTTPDecoder, error) {
	if decoderURL == "" {
		return nil, fmt.Errorf("decoder URL must be set")
	}
	return &HTTPDecoder{
		url:    decoderURL,
		client: httpclient.NewClient(opts...),
	}, nil
}

func (d *HTTPDecoder) Decode(ctx context.Context, trace io.Reader) (stacksource.Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, trace)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 && resp.StatusCode <= 599 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("error while trying to decode a trace. http status: %d, message: %s", resp.StatusCode, body)
	}
	return decodeDocument(resp.Body)
}

func (DocumentDecoder) Decode(_ context.Context, trace io.Reader) (stacksource.Source, error) {
	return decodeDocument(trace)
}

func decodeDocument(r io.Reader) (stacksource.Source, error) {
	d, err := stacksource.Decode(r)
	if err != nil {
		return nil, err
	}
	return d, nil
}
