// Package connector defines how the ipass CLI reaches the relay daemon.
package connector

import (
	"context"
	"time"
)

// DefaultPort is the loopback UDP port the relay daemon listens on.
const DefaultPort = 27389

// DefaultTimeout bounds a single request/response round trip.
const DefaultTimeout = 10 * time.Second

// MaxDatagramLength caps the size of requests and responses that connectors must support.
const MaxDatagramLength = 65536

// Connector sends one request to the password manager and returns its reply.
//
//go:generate mockgen -destination=../../mocks/connector.go -package=mocks -mock_names=Connector=Connector . Connector
type Connector interface {
	// Exchange sends request and waits for exactly one reply.
	//
	// If ctx expires or the connector's own wait elapses first, Exchange returns an error wrapping
	// protocol.ErrTimeout. In that case the password manager may still have acted on the request.
	Exchange(ctx context.Context, request []byte) ([]byte, error)

	// Close releases the connector's socket. Repeated calls must be idempotent.
	Close() error
}
