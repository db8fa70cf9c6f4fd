package analytics

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestRecordAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analytics.jsonl")
	c, err := NewCollector(path, slog.Default())
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}
	defer c.Close()

	c.Record("sess-1", "a@b.com", "127.0.0.1", "agent", "what time is it", "late", 1234*time.Millisecond)
	c.Record("sess-2", "", "127.0.0.1", "agent", "hi", "hello", 56*time.Millisecond)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var recs []Interaction
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Interaction
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		recs = append(recs, rec)
	}
	if len(recs) != 2 {
		t.Fatalf("log has %d records, want 2", len(recs))
	}

	first := recs[0]
	if first.SessionID != "sess-1" || first.UserEmail != "a@b.com" {
		t.Fatalf("first record = %+v", first)
	}
	if first.QuestionLength != len("what time is it") || first.AnswerLength != len("late") {
		t.Fatalf("lengths = %d/%d", first.QuestionLength, first.AnswerLength)
	}
	if first.GenerationTimeSeconds != 1.23 {
		t.Fatalf("GenerationTimeSeconds = %v, want 1.23", first.GenerationTimeSeconds)
	}
	if first.ID == "" || first.ID == recs[1].ID {
		t.Fatalf("interaction ids not unique: %q vs %q", first.ID, recs[1].ID)
	}

	if recs[1].UserEmail != "guest" {
		t.Fatalf("anonymous record email = %q, want guest", recs[1].UserEmail)
	}
}

func TestRecordConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analytics.jsonl")
	c, err := NewCollector(path, slog.Default())
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record("s", "", "ip", "dev", "q", "a", time.Second)
		}()
	}
	wg.Wait()

	f, _ := os.Open(path)
	defer f.Close()
	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Interaction
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("interleaved write corrupted a line: %v", err)
		}
		count++
	}
	if count != 20 {
		t.Fatalf("log has %d records, want 20", count)
	}
}
