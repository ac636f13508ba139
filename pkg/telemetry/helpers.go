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
	"go.opentelemetry.io/otel/attribute"
)

const (
	MetricNameSuffixTotal    = "_total"
	MetricNameSuffixDuration = "_duration_seconds"
)

const (
	AttrBackend   = "userpool_backend"
	AttrStore     = "userpool_store"
	AttrStatus    = "userpool_status"
	AttrOperation = "userpool_operation"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func BuildMetricName(baseName, suffix string) string {
	prefixedName := "userpool_" + baseName
	if suffix == "" {
		return prefixedName
	}
	return prefixedName + suffix
}

func WithBackend(backend string) attribute.KeyValue {
	return attribute.String(AttrBackend, backend)
}

func WithStore(name string) attribute.KeyValue {
	return attribute.String(AttrStore, name)
}

func WithStatus(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}

func WithOperation(operation string) attribute.KeyValue {
	return attribute.String(AttrOperation, operation)
}

// StatusOf maps an operation result onto StatusSuccess or StatusError
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
