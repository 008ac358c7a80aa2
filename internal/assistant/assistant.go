// Package assistant wires the chat pipeline together: session history,
// FAQ matching, the semantic response cache, and the multi-provider
// completion fallback.
//
// One chat turn flows through three tiers, cheapest first:
//
//	history ──► FAQ match ──► cache lookup ──► completion chain
//
// A FAQ or cache hit returns the stored answer without touching any
// completion provider. A fresh completion updates the history and is
// written into the cache asynchronously. If every provider fails the
// history is left unmodified so a retry is consistent.
package assistant

import (
	"context"
	"fmt"

	"github.com/longtime/assistant/internal/completion"
	"github.com/longtime/assistant/internal/faq"
	"github.com/longtime/assistant/internal/log"
	"github.com/longtime/assistant/internal/session"
)

// Completer is the completion capability the service consumes.
type Completer interface {
	StreamCompletion(ctx context.Context, messages []completion.Message, onChunk func(text string)) (string, error)
}

// ResponseCache is the cache capability the service consumes.
type ResponseCache interface {
	Lookup(ctx context.Context, question, instructions, contextDoc string, history []session.Turn) (string, bool)
	Store(question, response, instructions, contextDoc string, history []session.Turn)
}

// Service handles chat turns. It is constructed once at startup and
// injected into the HTTP handlers; there is no module-level state.
type Service struct {
	faq       *faq.Index
	cache     ResponseCache
	completer Completer
	sessions  *session.Store
	logger    log.Logger

	instructions string
	contextDoc   string
	systemPrompt string
}

// New creates the assistant service. instructions and contextDoc are
// the system instructions and the background context document; the
// context document is also the source of the FAQ index.
func New(faqIndex *faq.Index, cache ResponseCache, completer Completer, sessions *session.Store, instructions, contextDoc string, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		faq:          faqIndex,
		cache:        cache,
		completer:    completer,
		sessions:     sessions,
		logger:       logger,
		instructions: instructions,
		contextDoc:   contextDoc,
		systemPrompt: instructions + "\n\n## Context\n\n" + contextDoc,
	}
}

// Respond handles one chat turn, invoking onChunk for each piece of
// the answer as it becomes available. It returns an error only when
// every completion provider failed (and nothing cheaper hit); in that
// case the session history is unchanged and the caller surfaces a
// single terminal error to the user.
func (s *Service) Respond(ctx context.Context, sessionID, message string, onChunk func(text string)) error {
	history := s.sessions.History(sessionID)

	// Tier 1: FAQ. A hit replays the curated answer verbatim.
	if entry, ok := s.faq.Match(ctx, message); ok {
		onChunk(entry.Answer)
		s.sessions.Append(sessionID,
			session.Turn{Role: session.RoleUser, Content: message},
			session.Turn{Role: session.RoleAssistant, Content: entry.Answer},
		)
		return nil
	}

	// Tier 2: semantic response cache.
	if response, ok := s.cache.Lookup(ctx, message, s.instructions, s.contextDoc, history); ok {
		onChunk(response)
		s.sessions.Append(sessionID,
			session.Turn{Role: session.RoleUser, Content: message},
			session.Turn{Role: session.RoleAssistant, Content: response},
		)
		return nil
	}

	// Tier 3: stream a fresh completion.
	messages := s.buildMessages(history, message)
	response, err := s.completer.StreamCompletion(ctx, messages, onChunk)
	if err != nil {
		return fmt.Errorf("generating response: %w", err)
	}

	s.sessions.Append(sessionID,
		session.Turn{Role: session.RoleUser, Content: message},
		session.Turn{Role: session.RoleAssistant, Content: response},
	)

	// The new pair enters the cache off the request path; the lookup
	// key snapshots the history as it was before this turn.
	s.cache.Store(message, response, s.instructions, s.contextDoc, history)
	return nil
}

// buildMessages assembles the provider request: system prompt, prior
// history, then the current message.
func (s *Service) buildMessages(history []session.Turn, message string) []completion.Message {
	messages := make([]completion.Message, 0, len(history)+2)
	messages = append(messages, completion.Message{Role: "system", Content: s.systemPrompt})
	for _, t := range history {
		messages = append(messages, completion.Message{Role: t.Role, Content: t.Content})
	}
	return append(messages, completion.Message{Role: "user", Content: message})
}
