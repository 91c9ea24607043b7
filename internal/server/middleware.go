package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"igfeed/pkg/logger"
	"igfeed/pkg/token"
)

// Messages of the token middleware
const (
	MessageMissingToken = "Missing Authorization Header"
	MessageInvalidToken = "Invalid token."
	MessageExpiredToken = "You must login again."
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

type contextKey int

const (
	requestIDKey contextKey = iota
	identityKey
)

// RequestID returns the id assigned to the request
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Identity returns the username carried by the request's token, if any
func Identity(ctx context.Context) string {
	id, _ := ctx.Value(identityKey).(string)
	return id
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.logger.ErrorWithFields("Handler panicked", map[string]interface{}{
				"request_id": RequestID(r.Context()),
				"panic":      rec,
				"stack":      string(debug.Stack()),
			})
			writeMessage(w, http.StatusInternalServerError, messageInternal)
		}()
		next.ServeHTTP(w, r)
	})
}

// observe writes the access log line and request metrics
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		logger.LogRequest(s.logger, RequestID(r.Context()), r.Method, r.URL.Path, status, elapsed)
		s.metrics.ObserveRequest(r.Method, route, status, elapsed)
	})
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			retryAfter := time.Second
			logger.LogRateLimit(s.logger, r.URL.Path, retryAfter)
			s.metrics.ObserveRateLimited()
			w.Header().Set("Retry-After", "1")
			writeMessage(w, http.StatusTooManyRequests, "Too many requests.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate validates the bearer token. With required unset a missing
// token passes through, but a bad one is still rejected.
func (s *Server) authenticate(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := token.FromHeader(r.Header.Get("Authorization"))
			if raw == "" {
				if required {
					writeMessage(w, http.StatusUnauthorized, MessageMissingToken)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			identity, err := s.tokens.Validate(raw)
			switch {
			case errors.Is(err, token.ErrExpired):
				writeMessage(w, http.StatusUnauthorized, MessageExpiredToken)
				return
			case err != nil:
				s.logger.WithError(err).WithField("request_id", RequestID(r.Context())).Debug("Rejected bearer token")
				writeMessage(w, http.StatusUnauthorized, MessageInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
		})
	}
}
