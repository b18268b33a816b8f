package services

import (
	"context"
	"fmt"

	"github.com/itish2003/therapybot/logging"
	"github.com/itish2003/therapybot/models"
)

// RAGService answers chat messages from retrieved context and keeps each
// session's turn log.
type RAGService interface {
	Respond(ctx context.Context, sessionID, message string) (string, error)
	History(sessionID string) []models.Turn
	Ready() bool
}

// ragServiceImpl holds the handles built once at startup. A nil retriever or
// generator means startup could not build it, and Respond reports ErrNotReady.
type ragServiceImpl struct {
	retriever Retriever
	generator Generator
	history   *HistoryStore
}

// NewRAGService is a constructor function that creates a new instance of
// ragServiceImpl. retriever and generator may be nil when startup could not
// build them; a nil history gets a store with the default limit.
func NewRAGService(retriever Retriever, generator Generator, history *HistoryStore) RAGService {
	if history == nil {
		history = NewHistoryStore(DefaultHistoryLimit)
	}
	return &ragServiceImpl{
		retriever: retriever,
		generator: generator,
		history:   history,
	}
}

// Ready reports whether both the retriever and the generator were built.
func (r *ragServiceImpl) Ready() bool {
	return r.retriever != nil && r.generator != nil
}

// Respond runs retrieve, assemble, generate and extract for one message, then
// records the exchange in the session log.
func (r *ragServiceImpl) Respond(ctx context.Context, sessionID, message string) (string, error) {
	if message == "" {
		return "", ErrEmptyMessage
	}
	logger := logging.Component("rag").With().Str("session_id", sessionID).Logger()
	if !r.Ready() {
		logger.Error().Msg("rag pipeline not initialized")
		return "", ErrNotReady
	}

	logger.Info().Str("input", message).Msg("chat request")

	chunks, err := r.retriever.Retrieve(ctx, message)
	if err != nil {
		return "", fmt.Errorf("could not retrieve context: %w", err)
	}

	prompt := BuildPrompt(chunks, message)

	reply, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("could not generate response: %w", err)
	}
	answer := reply.Text()
	logger.Debug().Int("context_chunks", len(chunks)).Str("answer", answer).Msg("chat reply")

	r.history.Append(sessionID,
		models.Turn{Role: models.RoleUser, Text: message},
		models.Turn{Role: models.RoleBot, Text: answer},
	)
	logger.Debug().Int("history_turns", r.history.Len(sessionID)).Msg("history updated")
	return answer, nil
}

func (r *ragServiceImpl) History(sessionID string) []models.Turn {
	return r.history.Get(sessionID)
}
