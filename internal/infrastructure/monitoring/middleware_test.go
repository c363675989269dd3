package monitoring

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/tracing/tracingtest"
)

type testEnv struct {
	router   *gin.Engine
	registry *Registry
	metrics  *HTTPMetrics
	tracer   *tracing.Tracer
	spans    *tracingtest.Recorder
}

func (e *testEnv) do(method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// flushSpans stops the tracer so every ended span reaches the recorder.
func (e *testEnv) flushSpans(t *testing.T) []*tracing.Span {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.tracer.Shutdown(ctx))
	return e.spans.Spans()
}

func registerRoutes(r *gin.Engine, tracer *tracing.Tracer) {
	r.GET("/healthz", func(c *gin.Context) {
		c.Header("X-Service", "api")
		c.JSON(http.StatusOK, gin.H{"message": "healthy"})
	})
	r.POST("/users", func(c *gin.Context) {
		if tracer != nil {
			_ = tracer.Trace(c.Request.Context(), "CreateUserUseCase", func(context.Context) error { return nil })
		}
		c.JSON(http.StatusOK, gin.H{"message": "healthy"})
	})
	r.GET("/bad", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "bad request"})
	})
	r.GET("/unavailable", func(c *gin.Context) {
		c.String(http.StatusServiceUnavailable, "try later")
	})
	r.GET("/moved", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/healthz")
	})
	r.GET("/switching", func(c *gin.Context) {
		c.Status(http.StatusSwitchingProtocols)
	})
	r.GET("/panic", func(*gin.Context) {
		panic("handler bug")
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg, metrics := newHTTPMetrics(t, 64)
	spans := tracingtest.NewRecorder()
	tracer := tracing.New("api", spans, zap.NewNop(), tracing.Options{FlushInterval: time.Hour})
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	router := gin.New()
	router.Use(gin.RecoveryWithWriter(io.Discard))
	router.Use(Middleware(metrics, tracer, zap.NewNop()))
	registerRoutes(router, tracer)
	router.GET("/metrics", Handler(reg))
	router.GET("/metrics/summary", SummaryHandler(metrics, tracer))

	return &testEnv{router: router, registry: reg, metrics: metrics, tracer: tracer, spans: spans}
}

func TestMiddlewareRecordsEachRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
		class  StatusClass
	}{
		{name: "ok", method: http.MethodGet, path: "/healthz", status: 200, class: ClassSuccess},
		{name: "post", method: http.MethodPost, path: "/users", status: 200, class: ClassSuccess},
		{name: "client error", method: http.MethodGet, path: "/bad", status: 400, class: ClassClientError},
		{name: "unknown route", method: http.MethodGet, path: "/unknown", status: 404, class: ClassClientError},
		{name: "server error", method: http.MethodGet, path: "/unavailable", status: 503, class: ClassServerError},
		{name: "handler panic", method: http.MethodGet, path: "/panic", status: 500, class: ClassServerError},
		{name: "redirect", method: http.MethodGet, path: "/moved", status: 302, class: ClassNone},
		{name: "informational", method: http.MethodGet, path: "/switching", status: 101, class: ClassNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			w := env.do(tt.method, tt.path, nil)
			if tt.status >= 200 {
				require.Equal(t, tt.status, w.Code)
			}

			m := env.metrics
			status := fmt.Sprint(tt.status)
			assert.Equal(t, float64(1), testutil.ToFloat64(m.total))

			want := map[StatusClass]int{ClassSuccess: 0, ClassClientError: 0, ClassServerError: 0}
			if tt.class != ClassNone {
				want[tt.class] = 1
			}
			assert.Equal(t, want[ClassSuccess], testutil.CollectAndCount(m.success))
			assert.Equal(t, want[ClassClientError], testutil.CollectAndCount(m.clientError))
			assert.Equal(t, want[ClassServerError], testutil.CollectAndCount(m.serverError))

			switch tt.class {
			case ClassSuccess:
				assert.Equal(t, float64(1), testutil.ToFloat64(m.success.WithLabelValues(tt.path, tt.method, status)))
			case ClassClientError:
				assert.Equal(t, float64(1), testutil.ToFloat64(m.clientError.WithLabelValues(tt.path, tt.method, status)))
			case ClassServerError:
				assert.Equal(t, float64(1), testutil.ToFloat64(m.serverError.WithLabelValues(tt.path, tt.method, status)))
			}

			assert.Equal(t, uint64(1), requestCount(t, env.registry, tt.path, tt.method, status))
		})
	}
}

func TestMiddlewareIsTransparent(t *testing.T) {
	gin.SetMode(gin.TestMode)

	plain := gin.New()
	registerRoutes(plain, nil)

	env := newTestEnv(t)

	for _, target := range []string{"/healthz", "/bad", "/moved", "/unavailable", "/nowhere"} {
		t.Run(target, func(t *testing.T) {
			header := http.Header{"Traceparent": {"00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}}

			want := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, target, nil)
			req.Header = header.Clone()
			plain.ServeHTTP(want, req)

			got := env.do(http.MethodGet, target, header)

			assert.Equal(t, want.Code, got.Code)
			assert.Equal(t, want.Header(), got.Header())
			assert.Equal(t, want.Body.String(), got.Body.String())
		})
	}
}

func TestMiddlewareConcurrentRequests(t *testing.T) {
	env := newTestEnv(t)

	const requests = 1000
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := env.do(http.MethodGet, "/healthz", nil)
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	wg.Wait()

	m := env.metrics
	assert.Equal(t, float64(requests), testutil.ToFloat64(m.total))
	assert.Equal(t, float64(requests), testutil.ToFloat64(m.success.WithLabelValues("/healthz", "GET", "200")))
	assert.Equal(t, uint64(requests), requestCount(t, env.registry, "/healthz", "GET", "200"))
	assert.Equal(t, uint64(requests), m.Summary().Requests)
}

func TestMiddlewareSpans(t *testing.T) {
	env := newTestEnv(t)

	header := http.Header{"Traceparent": {"00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}}
	w := env.do(http.MethodPost, "/users", header)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Traceparent"))

	env.do(http.MethodGet, "/healthz", nil)
	env.do(http.MethodGet, "/panic", nil)

	spans := env.flushSpans(t)
	require.Len(t, spans, 4)

	requestSpans := env.spans.ByName("HTTP POST")
	require.Len(t, requestSpans, 1)
	request := requestSpans[0]
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", request.TraceID.String())
	assert.Equal(t, "00f067aa0ba902b7", request.ParentID.String())
	assert.Equal(t, 200, request.StatusCode)
	for key, want := range map[string]string{"path": "/users", "method": "POST", "status": "200"} {
		got, ok := request.Attribute(key)
		require.True(t, ok, key)
		assert.Equal(t, want, got)
	}

	useCase := env.spans.ByName("CreateUserUseCase")
	require.Len(t, useCase, 1)
	assert.Equal(t, request.TraceID, useCase[0].TraceID)
	assert.Equal(t, request.SpanID, useCase[0].ParentID)

	gets := env.spans.ByName("HTTP GET")
	require.Len(t, gets, 2)
	for _, span := range gets {
		assert.True(t, span.IsRoot())
		if path, _ := span.Attribute("path"); path == "/panic" {
			assert.Equal(t, 500, span.StatusCode)
			assert.Error(t, span.Error)
		}
	}
}

func TestMiddlewareCancelledRequest(t *testing.T) {
	env := newTestEnv(t)
	env.router.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/slow", nil).WithContext(ctx)
	env.router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, float64(0), testutil.ToFloat64(env.metrics.total))

	spans := env.flushSpans(t)
	require.Len(t, spans, 1)
	cancelled, ok := spans[0].Attribute("cancelled")
	require.True(t, ok)
	assert.Equal(t, "true", cancelled)
}

func TestMiddlewareContainsInstrumentationFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.ErrorLevel)

	router := gin.New()
	// Zero HTTPMetrics has no vectors, so recording panics.
	router.Use(Middleware(&HTTPMetrics{}, nil, zap.New(core)))
	registerRoutes(router, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"healthy"}`, w.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("request instrumentation failed").Len())
}

func TestMiddlewareEndsSpanWhenRecordingFails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.ErrorLevel)

	spans := tracingtest.NewRecorder()
	tracer := tracing.New("api", spans, zap.NewNop(), tracing.Options{FlushInterval: time.Hour})

	router := gin.New()
	router.Use(Middleware(&HTTPMetrics{}, tracer, zap.New(core)))
	registerRoutes(router, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, logs.FilterMessage("request instrumentation failed").Len())

	require.NoError(t, tracer.Shutdown(context.Background()))
	ended := spans.ByName("HTTP GET")
	require.Len(t, ended, 1)
	assert.True(t, ended[0].Ended())
	status, ok := ended[0].Attribute("status")
	require.True(t, ok)
	assert.Equal(t, "200", status)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		env.do(http.MethodGet, "/healthz", nil)
	}
	env.do(http.MethodPost, "/users", nil)
	env.do(http.MethodGet, "/nowhere", nil)

	w := env.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; version=0.0.4; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, `http_requests_2xx_total{method="POST",path="/users",status="200"} 1`)
	assert.Contains(t, body, `http_requests_4xx_total{method="GET",path="/nowhere",status="404"} 1`)
	assert.Contains(t, body, "# TYPE http_requests_duration_seconds histogram")
	assert.Contains(t, body, `le="0.7"`)

	families := parseExposition(t, body)
	assert.Equal(t, float64(5), families[RequestsTotal].GetMetric()[0].GetCounter().GetValue())

	// Counts are cumulative across scrapes, and the first scrape is counted.
	families = parseExposition(t, env.do(http.MethodGet, "/metrics", nil).Body.String())
	assert.Equal(t, float64(6), families[RequestsTotal].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 1, strings.Count(render(env.registry), "# TYPE http_requests_total counter"))
}

func TestSummaryEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(http.MethodGet, "/healthz", nil)
	env.do(http.MethodGet, "/bad", nil)

	w := env.do(http.MethodGet, "/metrics/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `"requests_total":2`)
	assert.Contains(t, body, `"success_total":1`)
	assert.Contains(t, body, `"client_errors_total":1`)
	assert.Contains(t, body, `"samples":2`)
	assert.Contains(t, body, `"dropped_spans":0`)
}
