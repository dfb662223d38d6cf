package service

import (
	"captains-log/pkg/capture"
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionManager tracks the live recording sessions of the server. Each
// session records from a client fed stream device.
type SessionManager interface {
	Create(ctx context.Context) *Session
	Get(id string) (*Session, error)
	Remove(ctx context.Context, id string) error
	Close()
}

type sessionManager struct {
	ctx      context.Context
	pipeline AnnotationPipeline
	opts     SessionOptions

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager ties every session it creates to ctx.
func NewSessionManager(ctx context.Context, pipeline AnnotationPipeline, opts SessionOptions) SessionManager {
	return &sessionManager{
		ctx:      ctx,
		pipeline: pipeline,
		opts:     opts,
		sessions: map[string]*Session{},
	}
}

func (m *sessionManager) Create(ctx context.Context) *Session {
	id := uuid.NewString()
	s := NewSession(m.ctx, id, capture.NewStreamDevice(), m.pipeline, m.opts)
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	zerolog.Ctx(ctx).Info().Str("session_id", id).Msg("recording session created")
	return s
}

func (m *sessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionUnknown
	}
	return s, nil
}

func (m *sessionManager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionUnknown
	}
	s.Close()
	zerolog.Ctx(ctx).Info().Str("session_id", id).Msg("recording session closed")
	return nil
}

func (m *sessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
