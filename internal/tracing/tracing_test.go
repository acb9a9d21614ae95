package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpansAreRecorded(t *testing.T) {
	tracer := mocktracer.New()
	previous := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(tracer)
	defer opentracing.SetGlobalTracer(previous)

	span, ctx := StartUserSpan(context.Background(), "quota.decrement", "u1")
	child, _ := StartSpan(ctx, "db.consume_quota")
	SetTag(child, "remaining", 1)
	FinishSpan(child, nil)
	FinishSpan(span, errors.New("store unavailable"))

	finished := tracer.FinishedSpans()
	require.Len(t, finished, 2)

	assert.Equal(t, "db.consume_quota", finished[0].OperationName)
	assert.Equal(t, 1, finished[0].Tag("remaining"))
	assert.Nil(t, finished[0].Tag("error"))

	assert.Equal(t, "quota.decrement", finished[1].OperationName)
	assert.Equal(t, "u1", finished[1].Tag("user.id"))
	assert.Equal(t, "quota", finished[1].Tag("component"))
	assert.Equal(t, true, finished[1].Tag("error"))
	assert.Equal(t, finished[1].SpanContext.SpanID, finished[0].ParentID)
}

func TestStartUserSpanComponent(t *testing.T) {
	tracer := mocktracer.New()
	previous := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(tracer)
	defer opentracing.SetGlobalTracer(previous)

	span, _ := StartUserSpan(context.Background(), "coupon.redeem", "admin-1")
	FinishSpan(span, nil)
	span, _ = StartUserSpan(context.Background(), "bootstrap", "u2")
	FinishSpan(span, nil)

	finished := tracer.FinishedSpans()
	require.Len(t, finished, 2)
	assert.Equal(t, "coupon", finished[0].Tag("component"))
	assert.Equal(t, "admin-1", finished[0].Tag("user.id"))
	assert.Nil(t, finished[1].Tag("component"), "no component without a dotted name")
	assert.Equal(t, "u2", finished[1].Tag("user.id"))
}

func TestNilSpanHelpers(t *testing.T) {
	FinishSpan(nil, errors.New("ignored"))
	LogError(nil, errors.New("ignored"))
	SetTag(nil, "k", "v")
}
