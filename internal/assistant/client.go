// Package assistant bridges the chat backend to the language model. The
// store hands it a bounded history window; nothing here reads or writes
// session state.
package assistant

import (
	"context"

	"github.com/tmcfarlane/parley/internal/chat"
)

// Request is one question together with its bounded conversation context.
type Request struct {
	SessionID string
	Question  string
	History   []chat.PromptMessage
}

// Response is the final assembled answer after streaming completes.
type Response struct {
	Text string
}

// DeltaHandler receives streaming answer fragments as they arrive.
type DeltaHandler func(delta string) error

// Client produces assistant answers. Implementations must call onDelta in
// order and return the concatenated text.
type Client interface {
	StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error)
}
