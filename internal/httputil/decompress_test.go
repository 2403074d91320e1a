package httputil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
)

func TestDecompressPayload(t *testing.T) {
	payload := []byte(`{"frames":["main"]}`)
	var compressed bytes.Buffer
	bw := brotli.NewWriter(&compressed)
	_, _ = bw.Write(payload)
	if err := bw.Close(); err != nil {
		t.Fatalf("we should be able to compress: %v", err)
	}

	tests := []struct {
		name     string
		body     []byte
		encoding string
	}{
		{name: "brotli", body: compressed.Bytes(), encoding: "br"},
		{name: "identity", body: payload},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var received []byte
			handler := DecompressPayload(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				received, _ = io.ReadAll(r.Body)
			}))
			r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(test.body))
			if test.encoding != "" {
				r.Header.Set("Content-Encoding", test.encoding)
			}
			handler(httptest.NewRecorder(), r)
			if !bytes.Equal(received, payload) {
				t.Fatalf("expected %q, got %q", payload, received)
			}
		})
	}
}
