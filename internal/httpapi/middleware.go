package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/market"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// authenticate resolves a bearer token into the request principal. Requests without
// an Authorization header continue as anonymous.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			respondError(w, http.StatusUnauthorized, "no bearer token")
			return
		}

		p, err := h.accounts.ParseToken(strings.TrimSpace(raw))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(market.WithPrincipal(r.Context(), p)))
	})
}
