package activity

import "context"

type clientSessionKey struct{}

// WithClientSession attaches the caller's client session id to ctx so that
// log entries written on its behalf can be traced back to the device.
func WithClientSession(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, clientSessionKey{}, id)
}

// ClientSessionFromContext returns the client session id, if present.
func ClientSessionFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientSessionKey{}).(string)
	return id, ok && id != ""
}
