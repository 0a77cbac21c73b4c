package agent

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

type HistoryReadWriter interface {
	Load(ctx context.Context) ([]*schema.Message, error)
	Save(ctx context.Context, history []*schema.Message) error
	Clear(ctx context.Context) error

	// Append loads history, appends msgs, then saves.
	Append(ctx context.Context, msgs ...*schema.Message) ([]*schema.Message, error)
}

// HistoryStore persists the whole conversation of a session. History is never trimmed
// here; chat.WithContextLimit bounds what is sent to the model instead.
type HistoryStore struct {
	store Store[[]*schema.Message]
}

func NewHistoryStore(core Cache[[]*schema.Message]) *HistoryStore {
	return &HistoryStore{
		store: NewStore(core, "agent:history", StateKeyFromContext),
	}
}

func NewMemoryHistoryStore() *HistoryStore {
	return NewHistoryStore(NewMemoryCache[[]*schema.Message]())
}

func (s *HistoryStore) Load(ctx context.Context) ([]*schema.Message, error) {
	hist, ok, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return hist, nil
}

// Save stores history after dropping nil entries and empty assistant messages.
func (s *HistoryStore) Save(ctx context.Context, history []*schema.Message) error {
	_, err := s.save(ctx, history)
	return err
}

func (s *HistoryStore) save(ctx context.Context, history []*schema.Message) ([]*schema.Message, error) {
	history = normalizeHistory(history)
	return history, s.store.Set(ctx, history)
}

func (s *HistoryStore) Clear(ctx context.Context) error {
	return s.store.Del(ctx)
}

func (s *HistoryStore) Append(ctx context.Context, msgs ...*schema.Message) ([]*schema.Message, error) {
	hist, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*schema.Message, 0, len(hist)+len(msgs))
	out = append(out, hist...)
	out = append(out, msgs...)
	return s.save(ctx, out)
}

// normalizeHistory drops nil entries and assistant messages left empty by an aborted turn.
func normalizeHistory(history []*schema.Message) []*schema.Message {
	if len(history) == 0 {
		return history
	}
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		if m == nil {
			continue
		}
		if m.Role == schema.Assistant && m.Content == "" && len(m.ToolCalls) == 0 {
			continue
		}
		out = append(out, m)
	}
	return out
}

var _ HistoryReadWriter = (*HistoryStore)(nil)
