// Package analytics appends interaction records for offline analysis. The
// log is write-only from the application's point of view: nothing in the
// backend ever reads it back.
package analytics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Interaction is one question/answer exchange with its provenance.
type Interaction struct {
	ID                    string    `json:"id"`
	Timestamp             time.Time `json:"timestamp"`
	SessionID             string    `json:"session_id"`
	UserEmail             string    `json:"user_email"`
	IPAddress             string    `json:"ip_address"`
	DeviceInfo            string    `json:"device_info"`
	Question              string    `json:"question"`
	QuestionLength        int       `json:"question_length"`
	Answer                string    `json:"answer"`
	AnswerLength          int       `json:"answer_length"`
	GenerationTimeSeconds float64   `json:"generation_time_seconds"`
}

// Collector appends one JSON line per interaction to a single file.
type Collector struct {
	mu   sync.Mutex
	file *os.File
	log  *slog.Logger
}

func NewCollector(path string, log *slog.Logger) (*Collector, error) {
	if log == nil {
		log = slog.Default()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open analytics log %s: %w", path, err)
	}
	return &Collector{file: f, log: log}, nil
}

// Record appends one interaction. Failures are logged, not returned: the
// chat path must never fail because the analytics log did.
func (c *Collector) Record(sessionID, userEmail, ip, device, question, answer string, generation time.Duration) {
	if userEmail == "" {
		userEmail = "guest"
	}
	rec := Interaction{
		ID:                    uuid.NewString(),
		Timestamp:             time.Now().UTC(),
		SessionID:             sessionID,
		UserEmail:             userEmail,
		IPAddress:             ip,
		DeviceInfo:            device,
		Question:              question,
		QuestionLength:        len(question),
		Answer:                answer,
		AnswerLength:          len(answer),
		GenerationTimeSeconds: math.Round(generation.Seconds()*100) / 100,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		c.log.Error("failed to encode interaction", "error", err)
		return
	}
	line = append(line, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.file.Write(line); err != nil {
		c.log.Error("failed to append interaction", "error", err)
	}
}

func (c *Collector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file.Close()
}
