package assistant

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultSystemPrompt = `You are Parley, a concise chat assistant. Answer factually based on the conversation so far. Plain text only: no markdown formatting or hyperlink syntax, though full URLs are fine.`

// OllamaClient streams chat completions from an Ollama server's /api/chat
// endpoint (newline-delimited JSON).
type OllamaClient struct {
	baseURL      string
	model        string
	systemPrompt string
	client       *http.Client
}

type OllamaConfig struct {
	BaseURL      string
	Model        string
	SystemPrompt string
}

func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	return &OllamaClient{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatChunk struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error"`
}

// systemMessage folds the history transcript and the current time into the
// system prompt, mirroring how the prompt is assembled for the model.
func (c *OllamaClient) systemMessage(req Request) string {
	var b strings.Builder
	b.WriteString(c.systemPrompt)
	if len(req.History) > 0 {
		b.WriteString("\n\nConversation History:\n")
		for _, m := range req.History {
			b.WriteString(strings.ToUpper(m.Role))
			b.WriteString(": ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nThe time is ")
	b.WriteString(time.Now().UTC().Format("2006-01-02 15:04:05"))
	return b.String()
}

func (c *OllamaClient) StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	payload, err := json.Marshal(ollamaChatRequest{
		Model: c.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: c.systemMessage(req)},
			{Role: "user", Content: req.Question},
		},
		Stream: true,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("send chat request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Response{}, fmt.Errorf("ollama status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var full strings.Builder
	scanner := bufio.NewScanner(res.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return Response{}, fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return Response{}, fmt.Errorf("ollama: %s", chunk.Error)
		}
		if chunk.Message.Content != "" {
			full.WriteString(chunk.Message.Content)
			if onDelta != nil {
				if err := onDelta(chunk.Message.Content); err != nil {
					return Response{}, err
				}
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return Response{}, fmt.Errorf("read stream: %w", err)
	}

	return Response{Text: full.String()}, nil
}
