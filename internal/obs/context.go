package obs

import "context"

type routePatternCtxKey struct{}

// WithRoutePattern attaches the matched router pattern so later middleware
// can label metrics and spans without resolving the route again.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternCtxKey{}, pattern)
}

// RoutePatternFromContext returns the stored pattern, or "" when none is set.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	pattern, _ := ctx.Value(routePatternCtxKey{}).(string)
	return pattern
}
