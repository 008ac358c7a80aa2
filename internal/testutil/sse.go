package testutil

import (
	"bufio"
	"encoding/json"
	"strings"
	"testing"
)

// DataFrame is one parsed SSE data frame from the chat endpoint.
type DataFrame struct {
	Content string `json:"content"`
	Error   string `json:"error"`
}

// ParseDataFrames parses the chat endpoint's SSE-style stream of
//
//	data: {...}\n\n
//
// frames into structured payloads. Lines that are not data frames or
// blank separators fail the test.
func ParseDataFrames(t *testing.T, body string) []DataFrame {
	t.Helper()

	var frames []DataFrame
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			t.Fatalf("unexpected SSE line: %q", line)
		}

		var frame DataFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			t.Fatalf("malformed data frame %q: %v", payload, err)
		}
		frames = append(frames, frame)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanning SSE body: %v", err)
	}
	return frames
}

// JoinContent concatenates the content of all non-error frames.
func JoinContent(frames []DataFrame) string {
	var b strings.Builder
	for _, f := range frames {
		b.WriteString(f.Content)
	}
	return b.String()
}
