package notify

import (
	"context"
	"strings"
	"testing"
)

func TestNotifyOnNilReceiverIsNoop(t *testing.T) {
	var tg *Telegram
	if err := tg.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("Notify() on nil receiver = %v, want nil", err)
	}
}

func TestNewTelegramWithoutCredentialsYieldsNilNotifier(t *testing.T) {
	tg, err := NewTelegram("", 0)
	if err != nil {
		t.Fatalf("NewTelegram() error = %v, want nil", err)
	}
	if tg != nil {
		t.Fatalf("NewTelegram() = %v, want nil without credentials", tg)
	}
}

func TestSplitOnLinesUnderLimitIsSingleChunk(t *testing.T) {
	chunks := splitOnLines("short message", 100)
	if len(chunks) != 1 || chunks[0] != "short message" {
		t.Fatalf("splitOnLines() = %v, want a single unsplit chunk", chunks)
	}
}

func TestSplitOnLinesRespectsLimitAndLineBoundaries(t *testing.T) {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = strings.Repeat("x", 20)
	}
	text := strings.Join(lines, "\n")

	chunks := splitOnLines(text, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected text longer than the limit to split into multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 50 {
			t.Fatalf("chunk %q exceeds limit 50", c)
		}
	}
	// Splitting must never break mid-line: rejoining recovers the original lines.
	var rejoined []string
	for _, c := range chunks {
		rejoined = append(rejoined, strings.Split(c, "\n")...)
	}
	if strings.Join(rejoined, "\n") != text {
		t.Fatalf("rejoined chunks do not reconstruct the original text")
	}
}
