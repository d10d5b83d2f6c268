package port

import "context"

// Identity supplies shopper identity transitions from the authentication
// collaborator. An empty id means signed out.
type Identity interface {
	// Watch emits the shopper id on every transition (sign-in, sign-out,
	// account switch). The channel is closed when ctx is cancelled.
	Watch(ctx context.Context) <-chan string
}
