package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// ModelScript describes how the scripted provider answers a streaming
// completion request for one model.
type ModelScript struct {
	// StatusCode, when non-zero and not 200, fails the request with
	// that status before any stream output.
	StatusCode int

	// Chunks are streamed one delta per SSE data line.
	Chunks []string

	// Interrupt, when set, emits the chunks and then a malformed data
	// line instead of the [DONE] terminator, simulating a stream that
	// dies mid-response.
	Interrupt bool

	// OmitDone ends the stream cleanly but without the [DONE]
	// terminator.
	OmitDone bool
}

// ScriptedProvider is an httptest server speaking the OpenAI-compatible
// streaming chat completion protocol, scripted per model. It records
// the order in which models were requested so fallback behavior can be
// asserted exactly.
type ScriptedProvider struct {
	Server *httptest.Server

	mu          sync.Mutex
	scripts     map[string]ModelScript
	requests    []string
	authHeaders []string
}

// NewScriptedProvider starts a scripted provider. The server is shut
// down via t.Cleanup.
func NewScriptedProvider(t *testing.T, scripts map[string]ModelScript) *ScriptedProvider {
	t.Helper()

	p := &ScriptedProvider{scripts: scripts}
	p.Server = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.Server.Close)
	return p
}

// URL is the provider's base URL.
func (p *ScriptedProvider) URL() string {
	return p.Server.URL
}

// Requests returns the models requested so far, in order.
func (p *ScriptedProvider) Requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

// AuthHeaders returns the Authorization header of each request, in
// request order (empty string when absent).
func (p *ScriptedProvider) AuthHeaders() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.authHeaders...)
}

func (p *ScriptedProvider) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/chat/completions" {
		http.NotFound(w, r)
		return
	}

	var req struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	p.requests = append(p.requests, req.Model)
	p.authHeaders = append(p.authHeaders, r.Header.Get("Authorization"))
	script, ok := p.scripts[req.Model]
	p.mu.Unlock()

	if !ok {
		http.Error(w, "unknown model", http.StatusNotFound)
		return
	}
	if script.StatusCode != 0 && script.StatusCode != http.StatusOK {
		http.Error(w, "scripted failure", script.StatusCode)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	for _, chunk := range script.Chunks {
		payload, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"delta": map[string]string{"content": chunk}},
			},
		})
		fmt.Fprintf(w, "data: %s\n\n", payload)
	}

	switch {
	case script.Interrupt:
		fmt.Fprint(w, "data: {truncated\n\n")
	case script.OmitDone:
	default:
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}
