package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longtime/assistant/internal/assistant"
	"github.com/longtime/assistant/internal/cache"
	"github.com/longtime/assistant/internal/completion"
	"github.com/longtime/assistant/internal/faq"
	"github.com/longtime/assistant/internal/log"
	"github.com/longtime/assistant/internal/session"
	"github.com/longtime/assistant/internal/testutil"
)

const (
	fixtureInstructions = "You are a support assistant."
	fixtureContext      = "## FAQ\n\nQ: How do I install the app?\nA: Download it from the releases page.\n"
	fixtureMaxMessage   = 64
)

// apiFixture wires real components behind the HTTP handler: a parsed
// FAQ index, a disk-backed response cache, and a scripted completion
// provider.
type apiFixture struct {
	server   *httptest.Server
	provider *testutil.ScriptedProvider
	cache    *cache.Cache
	sessions *session.Store
	embedder *testutil.StubEmbedder
}

func newAPIFixture(t *testing.T, scripts map[string]testutil.ModelScript) *apiFixture {
	t.Helper()

	embedder := testutil.NewStubEmbedder()

	index := faq.NewIndex(faq.Parse(fixtureContext), embedder, faq.DefaultThreshold, log.NewNop())

	responseCache, err := cache.New(t.TempDir(), embedder, log.NewNop())
	require.NoError(t, err)

	provider := testutil.NewScriptedProvider(t, scripts)
	models := make([]string, 0, len(scripts))
	for model := range scripts {
		models = append(models, model)
	}
	completer := completion.NewClient([]completion.Provider{
		{Name: "scripted", BaseURL: provider.URL(), Models: models},
	}, log.NewNop())

	sessions := session.NewStore(log.NewNop())
	service := assistant.New(index, responseCache, completer, sessions,
		fixtureInstructions, fixtureContext, log.NewNop())

	srv := NewServer(ServerConfig{
		Assistant:     service,
		Cache:         responseCache,
		Sessions:      sessions,
		Readiness:     embedder.Ready,
		Logger:        log.NewNop(),
		MaxMessageLen: fixtureMaxMessage,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &apiFixture{
		server:   ts,
		provider: provider,
		cache:    responseCache,
		sessions: sessions,
		embedder: embedder,
	}
}

func (f *apiFixture) postChat(t *testing.T, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	resp, err := http.Post(f.server.URL+"/chat", "application/json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestChatStreamsCompletion(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, map[string]testutil.ModelScript{
		"model-a": {Chunks: []string{"streamed ", "answer"}},
	})

	resp := f.postChat(t, ChatRequest{Message: "What payment methods are supported?", SessionID: "s1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := testutil.ParseDataFrames(t, readBody(t, resp))
	require.Len(t, frames, 2)
	assert.Equal(t, "streamed answer", testutil.JoinContent(frames))

	assert.Equal(t, []string{"model-a"}, f.provider.Requests())
	assert.Equal(t, 2, f.sessions.Len("s1"))
}

func TestChatFAQHitSkipsProviders(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, map[string]testutil.ModelScript{
		"model-a": {Chunks: []string{"should not be used"}},
	})

	resp := f.postChat(t, ChatRequest{Message: "How do I install the app?", SessionID: "s1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	frames := testutil.ParseDataFrames(t, readBody(t, resp))
	require.Len(t, frames, 1)
	assert.Equal(t, "Download it from the releases page.", frames[0].Content)
	assert.Empty(t, f.provider.Requests())
}

func TestChatCacheHitSkipsProviders(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, map[string]testutil.ModelScript{
		"model-a": {Chunks: []string{"generated once"}},
	})

	first := f.postChat(t, ChatRequest{Message: "What payment methods are supported?", SessionID: "s1"})
	frames := testutil.ParseDataFrames(t, readBody(t, first))
	assert.Equal(t, "generated once", testutil.JoinContent(frames))
	f.cache.Flush()

	// Same question from a fresh session replays the cached answer.
	second := f.postChat(t, ChatRequest{Message: "What payment methods are supported?", SessionID: "s2"})
	frames = testutil.ParseDataFrames(t, readBody(t, second))
	assert.Equal(t, "generated once", testutil.JoinContent(frames))

	assert.Equal(t, []string{"model-a"}, f.provider.Requests(), "the provider is hit only once")
}

func TestChatAllModelsFailed(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, map[string]testutil.ModelScript{
		"model-a": {StatusCode: http.StatusBadGateway},
	})

	resp := f.postChat(t, ChatRequest{Message: "What payment methods are supported?", SessionID: "s1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode, "failures after headers surface as an error frame")

	frames := testutil.ParseDataFrames(t, readBody(t, resp))
	require.Len(t, frames, 1)
	assert.Equal(t, "All models failed", frames[0].Error)

	assert.Zero(t, f.sessions.Len("s1"), "a failed turn must not grow the history")
}

func TestChatValidation(t *testing.T) {
	t.Parallel()

	longMessage := make([]byte, fixtureMaxMessage+1)
	for i := range longMessage {
		longMessage[i] = 'a'
	}

	tests := []struct {
		name     string
		body     any
		wantCode string
	}{
		{
			name:     "malformed JSON",
			body:     "{not json",
			wantCode: "invalid_request",
		},
		{
			name:     "missing session_id",
			body:     ChatRequest{Message: "hello"},
			wantCode: "missing_session_id",
		},
		{
			name:     "missing message",
			body:     ChatRequest{SessionID: "s1"},
			wantCode: "missing_message",
		},
		{
			name:     "oversized message",
			body:     ChatRequest{Message: string(longMessage), SessionID: "s1"},
			wantCode: "message_too_long",
		},
	}

	f := newAPIFixture(t, map[string]testutil.ModelScript{
		"model-a": {Chunks: []string{"unused"}},
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.postChat(t, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var errResp ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
			assert.Equal(t, tt.wantCode, errResp.Error)
		})
	}

	assert.Empty(t, f.provider.Requests(), "invalid requests never reach a provider")
}

func TestChatMessageLimitCountsCharacters(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, map[string]testutil.ModelScript{
		"model-a": {Chunks: []string{"ответ"}},
	})

	// Each Cyrillic character is two UTF-8 bytes; a message at the
	// character limit is twice the limit in bytes and must still pass.
	atLimit := strings.Repeat("я", fixtureMaxMessage)
	resp := f.postChat(t, ChatRequest{Message: atLimit, SessionID: "s1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	overLimit := strings.Repeat("я", fixtureMaxMessage+1)
	resp = f.postChat(t, ChatRequest{Message: overLimit, SessionID: "s1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "message_too_long", errResp.Error)
}

func TestChatMethodNotAllowed(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, map[string]testutil.ModelScript{
		"model-a": {Chunks: []string{"unused"}},
	})

	resp, err := http.Get(f.server.URL + "/chat")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
