package models

import "context"

type trackingIDKey struct{}

// WithTrackingID returns ctx carrying the request tracking id
func WithTrackingID(ctx context.Context, trackingID string) context.Context {
	return context.WithValue(ctx, trackingIDKey{}, trackingID)
}

// TrackingID returns the request tracking id carried by ctx, or ""
func TrackingID(ctx context.Context) string {
	id, _ := ctx.Value(trackingIDKey{}).(string)
	return id
}
