/*
Package monitoring provides request metrics and their Prometheus exposition.

# Overview

A Registry holds counters and histograms on a private Prometheus registry
and renders them in the text exposition format. HTTPMetrics declares the
fixed request metrics on a Registry, and Middleware records them for every
request served by gin while also opening the request span.

# Metrics

  - http_requests_total: every request
  - http_requests_2xx_total{path,method,status}
  - http_requests_4xx_total{path,method,status}
  - http_requests_5xx_total{path,method,status}
  - http_requests_duration_seconds{path,method,status}: histogram

1xx and 3xx responses are only counted in http_requests_total and the
duration histogram.

# Usage

	reg := monitoring.NewRegistry(monitoring.WithRuntimeCollectors())
	metrics, err := monitoring.NewHTTPMetrics(reg, 1024)
	if err != nil {
		return err
	}

	router.Use(monitoring.Middleware(metrics, tracer, logger))
	router.GET("/metrics", monitoring.Handler(reg))

Application code records its own metrics through the same registry:

	_ = reg.Register("user_repository_success_total", monitoring.KindCounter, "", []string{"action"})
	_ = reg.Increment("user_repository_success_total", monitoring.Labels{"action": "create"}, 1)
*/
package monitoring
