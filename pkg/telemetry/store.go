/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	storeMetrics     *StoreMetrics
	storeMetricsOnce sync.Once
)

// StoreMetrics tracks data store operations. A nil *StoreMetrics records nothing.
type StoreMetrics struct {
	OperationTotal    *Counter
	OperationDuration *Histogram
}

func NewStoreMetrics(meter otelmetric.Meter) (*StoreMetrics, error) {
	operationTotal, err := NewCounter(meter, MetricOptions{
		Name: BuildMetricName("datastore_operation", MetricNameSuffixTotal),
		Description: "total number of data store operations, labelled by backend, operation and status. " +
			"error rate = status=error / all",
		Unit: "1",
	})
	if err != nil {
		return nil, err
	}

	operationDuration, err := NewHistogram(meter, MetricOptions{
		Name:        BuildMetricName("datastore_operation", MetricNameSuffixDuration),
		Description: "duration of data store operations including the full read-modify-write cycle",
		Unit:        "s",
	})
	if err != nil {
		return nil, err
	}

	return &StoreMetrics{
		OperationTotal:    operationTotal,
		OperationDuration: operationDuration,
	}, nil
}

// InitStoreMetrics creates the process-wide store metrics once
func InitStoreMetrics(meter otelmetric.Meter) error {
	var initErr error
	storeMetricsOnce.Do(func() {
		storeMetrics, initErr = NewStoreMetrics(meter)
	})
	return initErr
}

// GetStoreMetrics returns nil until InitStoreMetrics succeeded
func GetStoreMetrics() *StoreMetrics {
	return storeMetrics
}

// Observe records one operation that started at start and finished with err
func (m *StoreMetrics) Observe(ctx context.Context, backend, store, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		WithBackend(backend),
		WithStore(store),
		WithOperation(operation),
		WithStatus(StatusOf(err)),
	}
	m.OperationTotal.Inc(ctx, attrs...)
	m.OperationDuration.Record(ctx, time.Since(start).Seconds(), attrs...)
}
