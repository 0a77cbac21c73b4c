package agent

import (
	"context"
	"errors"
	"time"

	"github.com/tbxark/intakeagent/step"
	"github.com/tbxark/intakeagent/types"
)

// Session is the persisted part of one intake conversation besides its history.
type Session struct {
	ID        string          `json:"id"`
	Cursor    step.Cursor     `json:"cursor"`
	Form      types.FormState `json:"form"`
	Submitted bool            `json:"submitted"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (s *Session) clone() *Session {
	cp := *s
	cp.Form = s.Form.Clone()
	return &cp
}

// StateReadWriter provides read/write access to sessions using context for routing.
type StateReadWriter interface {
	InitState(ctx context.Context) *Session
	Read(ctx context.Context) (*Session, error)
	Write(ctx context.Context, state *Session) error
	Remove(ctx context.Context) error
	List(ctx context.Context) ([]string, error)
}

type stateKeyContext struct{}

// WithStateKey sets the session id used to route state and history storage.
func WithStateKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, stateKeyContext{}, key)
}

// StateKeyFromContext gets the routing key from the context.
func StateKeyFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(stateKeyContext{})
	if value == nil {
		return "", false
	}
	key, ok := value.(string)
	return key, ok
}

type StateStore struct {
	store Store[*Session]
	now   func() time.Time
}

func NewStateStore(core Cache[*Session]) *StateStore {
	return &StateStore{
		store: NewStore(core, "agent:session", StateKeyFromContext),
		now:   time.Now,
	}
}

func NewMemoryStateStore() *StateStore {
	return NewStateStore(NewMemoryCache[*Session]())
}

func (s *StateStore) InitState(ctx context.Context) *Session {
	id, _ := StateKeyFromContext(ctx)
	now := s.now()
	return &Session{
		ID:        id,
		Form:      types.FormState{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Read returns types.ErrSessionNotFound for an unknown session.
func (s *StateStore) Read(ctx context.Context) (*Session, error) {
	state, ok, err := s.store.Get(ctx)
	if errors.Is(err, errMissingKey) {
		return nil, types.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if !ok || state == nil {
		return nil, types.ErrSessionNotFound
	}
	state = state.clone()
	if state.Form == nil {
		state.Form = types.FormState{}
	}
	return state, nil
}

// Write stores a copy of state, so later changes to state are not visible to readers
// until written again.
func (s *StateStore) Write(ctx context.Context, state *Session) error {
	state.UpdatedAt = s.now()
	return s.store.Set(ctx, state.clone())
}

func (s *StateStore) Remove(ctx context.Context) error {
	return s.store.Del(ctx)
}

func (s *StateStore) List(ctx context.Context) ([]string, error) {
	return s.store.Keys(ctx)
}

var _ StateReadWriter = (*StateStore)(nil)
