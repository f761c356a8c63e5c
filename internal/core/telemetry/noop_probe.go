package telemetry

import (
	"context"
	"time"

	"github.com/jefferypippitt/essential-todo/internal/core/port"
)

var _ port.Telemetry = NoOpProbe{}

// NoOpProbe discards everything. Repositories and services fall back to it
// when no probe is supplied.
type NoOpProbe struct{}

func NewNoOpProbe() port.Telemetry {
	return NoOpProbe{}
}

type discardSpan struct{}

func (discardSpan) End()                                 {}
func (discardSpan) SetAttributes(map[string]interface{}) {}
func (discardSpan) SetStatus(string, string)             {}
func (discardSpan) RecordError(error)                    {}

func (NoOpProbe) StartRepositorySpan(ctx context.Context, _ string, _ string, _ map[string]interface{}) (context.Context, port.Span) {
	return ctx, discardSpan{}
}

func (NoOpProbe) StartServiceSpan(ctx context.Context, _ string, _ string, _ map[string]interface{}) (context.Context, port.Span) {
	return ctx, discardSpan{}
}

func (NoOpProbe) RecordRepositoryOperation(context.Context, string, string, time.Duration, error) {}

func (NoOpProbe) RecordRepositoryQuery(context.Context, string, string, string, []interface{}) {}

func (NoOpProbe) RecordServiceOperation(context.Context, string, string, time.Duration, error) {}

func (NoOpProbe) RecordBusinessEvent(context.Context, string, string, string, map[string]interface{}) {}

func (NoOpProbe) RecordError(context.Context, string, error, map[string]interface{}) {}
