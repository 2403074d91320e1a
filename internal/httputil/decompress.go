package httputil

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
)

// DecompressPayload decodes brotli encoded request bodies so handlers can
// read stack documents uploaded compressed.
func DecompressPayload(next http.Handler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		if r.Header.Get("Content-Encoding") == "br" {
			r.Body = io.NopCloser(brotli.NewReader(r.Body))
			r.Header.Del("Content-Encoding")
			r.ContentLength = -1
		}

		next.ServeHTTP(w, r)
	})
}
