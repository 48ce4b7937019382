// Package messaging carries the getConfig, processTab and ping messages
// between the background daemon and its clients over HTTP.
package messaging

import (
	"context"
	"errors"
	"fmt"
)

// Message names a request kind
type Message string

// Supported messages
const (
	GetConfig  Message = "getConfig"
	ProcessTab Message = "processTab"
	Ping       Message = "ping"
)

var (
	// ErrChannel means the receiving end could not be reached
	ErrChannel = errors.New("message channel unavailable")
	// ErrUnknownMessage is returned for requests with an unsupported message
	ErrUnknownMessage = errors.New("unknown message")
)

// Request is the envelope sent to the background
type Request struct {
	Message Message `json:"message"`
}

// PingResponse answers a ping
type PingResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// Handler answers requests. A nil result is sent as JSON null.
type Handler interface {
	Handle(ctx context.Context, req Request) (any, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, req Request) (any, error)

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// Unknown builds the error for an unsupported message
func Unknown(m Message) error {
	return fmt.Errorf("%w: %q", ErrUnknownMessage, m)
}
