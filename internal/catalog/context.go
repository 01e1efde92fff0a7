package catalog

import "context"

// ActionContext describes on whose behalf catalog actions are called
type ActionContext struct {
	User     string
	APIToken string
}

type actionContextKey struct{}

// WithActionContext attaches the action context to ctx
func WithActionContext(ctx context.Context, ac ActionContext) context.Context {
	return context.WithValue(ctx, actionContextKey{}, ac)
}

// ActionContextFrom returns the action context attached to ctx, or the zero
// value when there is none.
func ActionContextFrom(ctx context.Context) ActionContext {
	ac, _ := ctx.Value(actionContextKey{}).(ActionContext)
	return ac
}
