package api

import (
	"net/http"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/mohamedkhairy/strikeview/pkg/logger"
)

type zstdResponseWriter struct {
	http.ResponseWriter
	encoder *zstd.Encoder
}

func (w *zstdResponseWriter) Write(b []byte) (int, error) {
	return w.encoder.Write(b)
}

func (w *zstdResponseWriter) WriteHeader(code int) {
	// the compressed length differs from anything a handler set
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(code)
}

// ZstdMiddleware compresses responses for clients that send
// "Accept-Encoding: zstd". Websocket upgrades pass through untouched.
func ZstdMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "zstd") ||
				strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}

			encoder, err := zstd.NewWriter(w)
			if err != nil {
				respondWithError(w, http.StatusInternalServerError, "compression unavailable")
				return
			}
			defer func() {
				if err := encoder.Close(); err != nil {
					logger.Debug("Failed to flush zstd response", logger.ErrorField(err))
				}
			}()

			w.Header().Set("Content-Encoding", "zstd")
			w.Header().Add("Vary", "Accept-Encoding")

			next.ServeHTTP(&zstdResponseWriter{ResponseWriter: w, encoder: encoder}, r)
		})
	}
}
