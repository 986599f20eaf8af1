// Package service holds the poll's business operations on top of the storage repositories.
package service

import (
	"context"
	"errors"

	"github.com/ErronZrz/rank-poll/internal/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInvalidRanking = errors.New("invalid ranking")
	ErrInvalidItem    = errors.New("invalid item")
)

// PollResult is the instant-runoff outcome over items.
type PollResult = core.Result[core.Item]

// ResultCache stores the last computed PollResult. Get reports a miss as (nil, nil).
type ResultCache interface {
	Get(ctx context.Context) (*PollResult, error)
	Set(ctx context.Context, res *PollResult) error
	Invalidate(ctx context.Context) error
}

var tracer = otel.Tracer("github.com/ErronZrz/rank-poll/internal/service")

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
