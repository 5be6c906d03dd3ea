package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new span for a service operation.
//
//	ctx, span := telemetry.StartSpan(ctx, TracerAuth, "auth.Resolve",
//	    attribute.String(telemetry.AttrUserID, id.UserID),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records an error on the span and sets the span status to error.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named event to the span with optional attributes.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Tracer names
const (
	TracerAuth  = "gatehouse/auth"
	TracerIAM   = "gatehouse/services/iam"
	TracerAudit = "gatehouse/audit"
)

// Common attribute keys
const (
	AttrUserID   = "user.id"
	AttrRoleName = "user.role"

	AttrPermResource = "permission.resource"
	AttrPermAction   = "permission.action"
	AttrPermAllowed  = "permission.allowed"

	AttrAuditAction   = "audit.action"
	AttrAuditResource = "audit.resource"
)
