package assistant

import (
	"context"
	"fmt"
	"strings"
)

// MockClient gives deterministic local replies when no model server is
// configured.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	text := buildMockReply(req)
	if onDelta != nil && text != "" {
		if err := onDelta(text); err != nil {
			return Response{}, err
		}
	}
	return Response{Text: text}, nil
}

func buildMockReply(req Request) string {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = "nothing yet"
	}
	if len(req.History) == 0 {
		return fmt.Sprintf("You asked: %s", question)
	}
	last := strings.TrimSpace(req.History[len(req.History)-1].Content)
	if last == "" {
		return fmt.Sprintf("You asked: %s", question)
	}
	return fmt.Sprintf("You asked: %s\nEarlier we discussed: %s", question, last)
}
