package server

import "context"

// Gate decides whether a caller may start a search. Billing or quota
// systems plug in here; denial maps to a 402 before any event is sent.
type Gate interface {
	CanPerformSearch(ctx context.Context, userID, timeFilter string) error
}

// AllowAll admits every request.
type AllowAll struct{}

func (AllowAll) CanPerformSearch(ctx context.Context, userID, timeFilter string) error { return nil }
