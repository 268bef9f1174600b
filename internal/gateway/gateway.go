// Package gateway defines the interface for the transports that expose the
// tool server to an assistant.
package gateway

import "context"

// Gateway is one transport (stdio, streamable HTTP).
type Gateway interface {
	// Start serves until the transport exits or the context is canceled.
	// Returns an error only on failure.
	Start(ctx context.Context) error

	// Stop performs graceful shutdown. The context carries a deadline
	// for the grace period.
	Stop(ctx context.Context) error
}
