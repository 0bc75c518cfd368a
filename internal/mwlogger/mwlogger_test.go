package mwlogger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"
)

func TestNewMWLogger_RequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"propagated", "req-42"},
		{"generated", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fromCtx bool
			h := NewMWLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, fromCtx = r.Context().Value(loggerWithRequestID{}).(zlog.Zerolog)
				w.WriteHeader(http.StatusTeapot)
			}))

			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set(requestIDHeader, tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			require.True(t, fromCtx)
			require.Equal(t, http.StatusTeapot, w.Code)
			got := w.Header().Get(requestIDHeader)
			require.NotEmpty(t, got)
			if tt.header != "" {
				require.Equal(t, tt.header, got)
			}
		})
	}
}

func TestLoggerFromContext_Fallback(t *testing.T) {
	require.NotPanics(t, func() {
		logger := LoggerFromContext(context.Background())
		logger.Info().Msg("fallback logger")
	})
}
