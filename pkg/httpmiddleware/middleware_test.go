package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_Order(t *testing.T) {
	var calls []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Wrap(okHandler(), tag("outer"), tag("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner"}, calls)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	for _, bad := range []string{"", strings.Repeat("x", 129), "line\nbreak"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, bad)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Len(t, seen, 36, "generated uuid for %q", bad)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	}
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), InjectLogger(zap.New(core)), Recovery())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders/checkout", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "close", rec.Header().Get("Connection"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	require.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestRecovery_AbortHandler(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

func TestLogRequests(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Wrap(mux,
		RequestID(),
		InjectLogger(zap.New(core)),
		Instrument("storefront-api", noopTelemetry{}),
		LogRequests(),
	)

	for _, path := range []string{"/api/orders/42", "/livez", "/nowhere"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)

	first := entries[0].ContextMap()
	assert.Equal(t, "Request", entries[0].Message)
	assert.Equal(t, "/api/orders/{id}", first["route"])
	assert.Equal(t, "/api/orders/42", first["path"])
	assert.EqualValues(t, http.StatusOK, first["status"])
	assert.NotEmpty(t, first["request_id"])

	assert.Equal(t, "Probe", entries[1].Message)
	assert.Equal(t, zap.DebugLevel, entries[1].Level)

	third := entries[2].ContextMap()
	assert.Equal(t, "unmatched", third["route"])
	assert.EqualValues(t, http.StatusNotFound, third["status"])
}

func TestCORS(t *testing.T) {
	tests := map[string]struct {
		cfg        CORSConfig
		method     string
		origin     string
		preflight  bool
		wantOrigin string
		wantStatus int
		wantVary   bool
	}{
		"wildcard simple": {
			cfg: CORSConfig{}, method: http.MethodGet, origin: "https://shop.example.com",
			wantOrigin: "*", wantStatus: http.StatusOK,
		},
		"listed origin case-insensitive": {
			cfg:    CORSConfig{AllowOrigins: []string{"https://Shop.example.com"}},
			method: http.MethodGet, origin: "https://shop.EXAMPLE.com",
			wantOrigin: "https://Shop.example.com", wantStatus: http.StatusOK, wantVary: true,
		},
		"unlisted origin": {
			cfg:    CORSConfig{AllowOrigins: []string{"https://shop.example.com"}},
			method: http.MethodGet, origin: "https://evil.example.com",
			wantOrigin: "", wantStatus: http.StatusOK, wantVary: true,
		},
		"credentials echo origin": {
			cfg:    CORSConfig{AllowCredentials: true},
			method: http.MethodGet, origin: "https://shop.example.com",
			wantOrigin: "https://shop.example.com", wantStatus: http.StatusOK, wantVary: true,
		},
		"preflight": {
			cfg:    CORSConfig{MaxAge: 600},
			method: http.MethodOptions, origin: "https://shop.example.com", preflight: true,
			wantOrigin: "*", wantStatus: http.StatusNoContent, wantVary: true,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/cart", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
				req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
			}
			rec := httptest.NewRecorder()
			CORS(tt.cfg)(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantVary, len(rec.Header().Values("Vary")) > 0)
			if tt.preflight {
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
				assert.Equal(t, "Authorization, Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
				assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
			}
			if tt.wantOrigin != "" && !tt.preflight {
				assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), RequestIDHeader)
			}
		})
	}
}
