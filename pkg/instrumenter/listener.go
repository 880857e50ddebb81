// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package instrumenter

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// OperationListener observes the lifecycle of every instrumented operation.
// Metrics recorders are the usual implementation.
type OperationListener interface {
	OnBeforeStart(parentContext context.Context, startTimestamp time.Time) context.Context
	OnBeforeEnd(ctx context.Context, startAttributes []attribute.KeyValue, startTimestamp time.Time) context.Context
	OnAfterStart(ctx context.Context, endTimestamp time.Time)
	OnAfterEnd(ctx context.Context, endAttributes []attribute.KeyValue, endTimestamp time.Time)
}

type ContextCustomizer[REQUEST any] interface {
	OnStart(ctx context.Context, request REQUEST, startAttributes []attribute.KeyValue) context.Context
}

type InstrumentEnabler interface {
	Enable() bool
}

type alwaysEnabled struct{}

func (alwaysEnabled) Enable() bool {
	return true
}
