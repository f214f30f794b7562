package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"emprenix/internal/models"
)

var ErrChatInactive = errors.New("chat is not active")

// Chain is a conversational pipeline owned by one session.
type Chain interface {
	Query(ctx context.Context, question string) (*models.PromptResponse, error)
	History(ctx context.Context) ([]models.Message, error)
	Close(ctx context.Context) error
}

// Builder creates a fresh chain with empty memory.
type Builder func(ctx context.Context) (Chain, error)

// Session holds the per-visitor state: chat visibility and the pipeline that
// exists only while the chat is visible.
type Session struct {
	ID string

	mu          sync.Mutex
	chatVisible bool
	chain       Chain

	// unix nanoseconds; read without mu so expiry checks never wait on a chat call
	lastSeen atomic.Int64
}

func New(id string) *Session {
	s := &Session{ID: id}
	s.touchAt(time.Now())
	return s
}

func (s *Session) ChatVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatVisible
}

// Toggle flips chat visibility. Showing the chat builds a new pipeline,
// hiding it discards the current one. If the build fails the chat stays hidden.
func (s *Session) Toggle(ctx context.Context, build Builder) (bool, error) {
	s.touchAt(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chatVisible {
		s.chatVisible = false
		return false, s.closeChain(ctx)
	}

	chain, err := build(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to build chat pipeline: %w", err)
	}
	s.chain = chain
	s.chatVisible = true
	log.Debug().Str("session", s.ID).Msg("Chat activated")
	return true, nil
}

// Ask sends question to the active pipeline and returns its answer.
func (s *Session) Ask(ctx context.Context, question string) (*models.PromptResponse, error) {
	s.touchAt(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.chatVisible || s.chain == nil {
		return nil, ErrChatInactive
	}
	return s.chain.Query(ctx, question)
}

// History returns the conversation of the active pipeline, or nil when the
// chat is hidden.
func (s *Session) History(ctx context.Context) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.chatVisible || s.chain == nil {
		return nil, nil
	}
	return s.chain.History(ctx)
}

// Close hides the chat and discards its pipeline.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatVisible = false
	return s.closeChain(ctx)
}

func (s *Session) closeChain(ctx context.Context) error {
	if s.chain == nil {
		return nil
	}
	chain := s.chain
	s.chain = nil
	if err := chain.Close(ctx); err != nil {
		return fmt.Errorf("failed to discard chat pipeline: %w", err)
	}
	log.Debug().Str("session", s.ID).Msg("Chat discarded")
	return nil
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return time.Duration(now.UnixNano() - s.lastSeen.Load())
}

func (s *Session) touchAt(t time.Time) {
	s.lastSeen.Store(t.UnixNano())
}
