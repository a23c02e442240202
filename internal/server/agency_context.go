package server

import "context"

type agencyCtxKey struct{}

func withAgency(ctx context.Context, agency string) context.Context {
	return context.WithValue(ctx, agencyCtxKey{}, agency)
}

func currentAgency(ctx context.Context) (string, bool) {
	a, ok := ctx.Value(agencyCtxKey{}).(string)
	return a, ok
}
