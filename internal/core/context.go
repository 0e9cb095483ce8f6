package core

import "context"

// Caller identifies who triggered a sync run, for the audit log.
type Caller struct {
	IP        string
	UserAgent string
}

type callerKey struct{}

// WithCaller attaches the triggering caller to ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored by WithCaller, or the zero Caller
// for runs started from the CLI.
func CallerFrom(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}
