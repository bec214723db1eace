// Package adapter is a small, retrying REST client used for one-off
// preflight calls against a relay auto-config deployment (the status
// check) — the long-lived event stream itself
// is handled by pkg/eventsource, which needs transport semantics this
// package deliberately does not provide (no response buffering, no
// fixed request/response cycle).
package adapter

import (
	"context"

	log "go.uber.org/zap"
)

// Adapter issues authenticated HTTP requests against a relay
// deployment, retrying transient failures with backoff. The surface is
// deliberately narrow: this package exists for the one-off preflight
// call in cmd/status.go, not as a general REST client.
type Adapter interface {
	Head(ctxt context.Context, path string, headers *map[string]string, logger *log.Logger) (Payload, error)
}

// Payload is a buffered HTTP response body, decodable as JSON or raw
// bytes.
type Payload interface {
	AsType(r interface{}) error
	AsObject() (map[string]interface{}, error)
	AsArray() ([]interface{}, error)
	AsBytes() []byte
	IsEmpty() bool
}
