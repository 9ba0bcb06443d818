// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/googlecloudplatform/pfcached/cfg"
)

// ShutdownFn mirrors the teacher's common.ShutdownFn (common/telemetry.go).
type ShutdownFn func(ctx context.Context) error

// Bridge is the installed OTel MeterProvider plus the Prometheus registry
// it feeds and the HTTP handler that serves /metrics.
type Bridge struct {
	Provider *sdkmetric.MeterProvider
	Handle   Handle
	Handler  http.Handler
	Shutdown ShutdownFn
}

// NewPrometheusBridge wires an OTel MeterProvider to a dedicated
// Prometheus registry and installs it as the global MeterProvider, the
// same role the teacher's common/otel_metrics.go + its Prometheus
// exporter play together (the production file only sets up the OTel
// side; the Prometheus registration glue is new code, since no
// non-test source for it shipped in the retrieval pack).
func NewPrometheusBridge(mc cfg.MetricsConfig) (*Bridge, error) {
	if !mc.Enabled {
		return &Bridge{Handle: NewNoopHandle(), Shutdown: func(context.Context) error { return nil }}, nil
	}

	reg := prometheus.NewRegistry()
	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("telemetry: prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	handle, err := NewOTelHandle()
	if err != nil {
		return nil, fmt.Errorf("telemetry: instrument registration: %w", err)
	}

	return &Bridge{
		Provider: provider,
		Handle:   handle,
		Handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Shutdown: provider.Shutdown,
	}, nil
}
