package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Dispatch span attributes
const (
	UserIDKey            = attribute.Key("user.id")
	RideIDKey            = attribute.Key("ride.id")
	DriverIDKey          = attribute.Key("driver.id")
	OfferAttemptKey      = attribute.Key("offer.attempt")
	SearchRadiusKey      = attribute.Key("search.radius_km")
	FareKey              = attribute.Key("fare.amount")
	LocationLatitudeKey  = attribute.Key("location.latitude")
	LocationLongitudeKey = attribute.Key("location.longitude")
)

// TraceOperation wraps a unit of business logic with an internal span and
// records its duration and outcome.
func TraceOperation(ctx context.Context, tracerName, operation string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, operation,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	span.SetAttributes(
		attribute.Int64("duration_ms", duration.Milliseconds()),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// RideAttributes builds the standard attribute set for ride operations.
// Zero ids are omitted.
func RideAttributes(rideID, riderID, driverID int64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if rideID != 0 {
		attrs = append(attrs, RideIDKey.Int64(rideID))
	}
	if riderID != 0 {
		attrs = append(attrs, UserIDKey.Int64(riderID))
	}
	if driverID != 0 {
		attrs = append(attrs, DriverIDKey.Int64(driverID))
	}
	return attrs
}

// LocationAttributes builds latitude/longitude attributes.
func LocationAttributes(latitude, longitude float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		LocationLatitudeKey.Float64(latitude),
		LocationLongitudeKey.Float64(longitude),
	}
}
