package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/tbxark/intakeagent/command"
	"github.com/tbxark/intakeagent/dialogue"
	"github.com/tbxark/intakeagent/patch"
	"github.com/tbxark/intakeagent/step"
	"github.com/tbxark/intakeagent/types"
)

// DefaultGreeting opens every session. The single "%s" is the brand name.
const DefaultGreeting = "Hello! I'm your %s Agent. I'll help you define your task requirements. Let's start with your Business Profile. What is the name of your company and what industry are you in?"

const (
	submittedNotice = "Thanks! Your task has been submitted."
	cancelledNotice = "Task intake cancelled."
)

// IntakeFlow owns the sessions: it loads a conversation, runs one controller operation
// on it and stores the result. A session runs at most one operation at a time.
type IntakeFlow struct {
	controller *dialogue.Controller
	steps      *step.Schema
	states     StateReadWriter
	history    HistoryReadWriter
	manager    FormManager
	commands   command.Parser
	greeting   string

	locks  sync.Map
	phases sync.Map
}

type FlowOption func(*IntakeFlow)

func WithStateStore(states StateReadWriter) FlowOption {
	return func(f *IntakeFlow) {
		f.states = states
	}
}

func WithHistoryStore(history HistoryReadWriter) FlowOption {
	return func(f *IntakeFlow) {
		f.history = history
	}
}

func WithFormManager(manager FormManager) FlowOption {
	return func(f *IntakeFlow) {
		f.manager = manager
	}
}

func WithCommandParser(parser command.Parser) FlowOption {
	return func(f *IntakeFlow) {
		f.commands = parser
	}
}

// WithGreeting replaces the opening assistant message. Empty disables it.
func WithGreeting(greeting string) FlowOption {
	return func(f *IntakeFlow) {
		f.greeting = greeting
	}
}

func NewIntakeFlow(controller *dialogue.Controller, opts ...FlowOption) (*IntakeFlow, error) {
	if controller == nil {
		return nil, fmt.Errorf("dialogue controller is required")
	}
	f := &IntakeFlow{
		controller: controller,
		steps:      controller.Schema(),
		greeting:   fmt.Sprintf(DefaultGreeting, "PivotHire"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.states == nil {
		f.states = NewMemoryStateStore()
	}
	if f.history == nil {
		f.history = NewMemoryHistoryStore()
	}
	if f.manager == nil {
		f.manager = LogFormManager{}
	}
	if f.commands == nil {
		f.commands = command.NewLocalCommandParser()
	}
	return f, nil
}

func (f *IntakeFlow) Schema() *step.Schema {
	return f.steps
}

// Start creates a session and greets the user.
func (f *IntakeFlow) Start(ctx context.Context) (*Snapshot, error) {
	id := uuid.NewString()
	ctx = WithStateKey(ctx, id)
	state := f.states.InitState(ctx)
	if err := f.states.Write(ctx, state); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	var history []*schema.Message
	if f.greeting != "" {
		var err error
		history, err = f.history.Append(ctx, schema.AssistantMessage(f.greeting, nil))
		if err != nil {
			return nil, fmt.Errorf("save greeting: %w", err)
		}
	}
	slog.Info("Session started", "session", id)
	return f.snapshot(state, history, f.greeting), nil
}

func (f *IntakeFlow) Sessions(ctx context.Context) ([]string, error) {
	return f.states.List(ctx)
}

func (f *IntakeFlow) Snapshot(ctx context.Context, id string) (*Snapshot, error) {
	ctx = WithStateKey(ctx, id)
	state, history, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	return f.snapshot(state, history, ""), nil
}

// Send handles one user input. Navigation commands are executed locally, everything
// else is a model turn.
func (f *IntakeFlow) Send(ctx context.Context, id, text string, sink dialogue.Sink) (*Snapshot, error) {
	cmd, err := f.commands.ParseCommand(ctx, text)
	if err != nil {
		slog.Warn("Command parsing failed", "session", id, "error", err)
		cmd = command.None
	}
	switch cmd {
	case command.Back:
		return f.Back(ctx, id, sink)
	case command.Next:
		return f.Next(ctx, id, sink)
	case command.Submit:
		return f.Submit(ctx, id)
	case command.Cancel:
		return f.Cancel(ctx, id)
	case command.Summary:
		return f.Summary(ctx, id)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty message")
	}
	return f.turn(ctx, id, sink, func(ctx context.Context, conv dialogue.Conversation, sink dialogue.Sink) (dialogue.Conversation, error) {
		return f.controller.Send(ctx, conv, text, sink)
	})
}

// Next is the manual "Next Step" action.
func (f *IntakeFlow) Next(ctx context.Context, id string, sink dialogue.Sink) (*Snapshot, error) {
	return f.turn(ctx, id, sink, f.controller.Advance)
}

func (f *IntakeFlow) Back(ctx context.Context, id string, sink dialogue.Sink) (*Snapshot, error) {
	return f.turn(ctx, id, sink, func(ctx context.Context, conv dialogue.Conversation, sink dialogue.Sink) (dialogue.Conversation, error) {
		return f.controller.Retreat(conv, sink), nil
	})
}

// Edit writes field values typed directly into the form. Before the review step only
// the current step's fields are open; on review every field is.
func (f *IntakeFlow) Edit(ctx context.Context, id string, fields map[string]string) (*Snapshot, error) {
	args := make(map[string]any, len(fields))
	for k, v := range fields {
		if !f.steps.HasField(k) {
			return nil, fmt.Errorf("%w: %q", types.ErrUnknownField, k)
		}
		args[k] = v
	}
	return f.turn(ctx, id, nil, func(ctx context.Context, conv dialogue.Conversation, sink dialogue.Sink) (dialogue.Conversation, error) {
		if locked := f.lockedFields(conv.Cursor, fields); len(locked) > 0 {
			return conv, fmt.Errorf("%w: %s not editable on %q", types.ErrFieldLocked, strings.Join(locked, ", "), f.steps.Name(conv.Cursor))
		}
		form, _, err := patch.Merge(conv.Form, args, f.steps.HasField)
		if err != nil {
			return conv, err
		}
		conv.Form = form
		return conv, nil
	})
}

func (f *IntakeFlow) lockedFields(cursor step.Cursor, fields map[string]string) []string {
	if f.steps.IsReview(cursor) {
		return nil
	}
	open := f.steps.Step(cursor).RequiredFields
	var locked []string
	for k := range fields {
		if !slices.Contains(open, k) {
			locked = append(locked, k)
		}
	}
	slices.Sort(locked)
	return locked
}

func (f *IntakeFlow) Summary(ctx context.Context, id string) (*Snapshot, error) {
	snap, err := f.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	snap.Message = f.steps.Summary(snap.Form, snap.Cursor)
	return snap, nil
}

// Submit hands the task to the FormManager. Only allowed on the review step with every
// required field filled.
func (f *IntakeFlow) Submit(ctx context.Context, id string) (*Snapshot, error) {
	unlock, err := f.lock(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx = WithStateKey(ctx, id)
	state, _, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	if state.Submitted {
		return nil, types.ErrAlreadySubmitted
	}
	if !f.steps.IsReview(state.Cursor) {
		return nil, types.ErrNotOnReview
	}
	if missing := f.missingFields(state.Form); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrFormIncomplete, strings.Join(missing, ", "))
	}
	task, err := step.TaskInfoFromForm(state.Form)
	if err != nil {
		return nil, err
	}
	if err := f.manager.Submit(ctx, id, task); err != nil {
		return nil, fmt.Errorf("submit task: %w", err)
	}
	state.Submitted = true
	if err := f.states.Write(ctx, state); err != nil {
		return nil, err
	}
	history, err := f.history.Append(ctx, schema.AssistantMessage(submittedNotice, nil))
	if err != nil {
		return nil, err
	}
	return f.snapshot(state, history, submittedNotice), nil
}

// Cancel reports the unfinished task to the FormManager and forgets the session.
func (f *IntakeFlow) Cancel(ctx context.Context, id string) (*Snapshot, error) {
	unlock, err := f.lock(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx = WithStateKey(ctx, id)
	state, _, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	if !state.Submitted {
		if err := f.manager.Cancel(ctx, id, state.Form); err != nil {
			return nil, fmt.Errorf("cancel task: %w", err)
		}
	}
	if err := errors.Join(f.states.Remove(ctx), f.history.Clear(ctx)); err != nil {
		return nil, err
	}
	f.phases.Delete(id)
	f.locks.Delete(id)
	slog.Info("Session closed", "session", id, "submitted", state.Submitted)
	return f.snapshot(state, nil, cancelledNotice), nil
}

type operation func(ctx context.Context, conv dialogue.Conversation, sink dialogue.Sink) (dialogue.Conversation, error)

func (f *IntakeFlow) turn(ctx context.Context, id string, sink dialogue.Sink, op operation) (*Snapshot, error) {
	unlock, err := f.lock(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx = WithStateKey(ctx, id)
	state, history, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	if state.Submitted {
		return nil, types.ErrAlreadySubmitted
	}

	conv := dialogue.Conversation{
		History: history,
		Form:    state.Form,
		Cursor:  f.steps.Clamp(state.Cursor),
	}
	next, runErr := op(ctx, conv, f.trackPhase(id, sink))

	// keep what the turn applied even if the request went away
	saveCtx := context.WithoutCancel(ctx)
	state.Form = next.Form
	state.Cursor = next.Cursor
	if err := f.states.Write(saveCtx, state); err != nil {
		return nil, errors.Join(runErr, fmt.Errorf("save session: %w", err))
	}
	if err := f.history.Save(saveCtx, next.History); err != nil {
		return nil, errors.Join(runErr, fmt.Errorf("save history: %w", err))
	}
	if runErr != nil {
		return nil, runErr
	}
	return f.snapshot(state, next.History, ""), nil
}

func (f *IntakeFlow) lock(id string) (func(), error) {
	v, _ := f.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	if !mu.TryLock() {
		return nil, fmt.Errorf("session %s: %w", id, types.ErrSessionBusy)
	}
	return mu.Unlock, nil
}

func (f *IntakeFlow) trackPhase(id string, sink dialogue.Sink) dialogue.Sink {
	return func(e dialogue.Event) {
		if e.Kind == dialogue.EventPhase {
			f.phases.Store(id, e.Phase)
		}
		if sink != nil {
			sink(e)
		}
	}
}

func (f *IntakeFlow) phaseOf(id string) types.Phase {
	if v, ok := f.phases.Load(id); ok {
		return v.(types.Phase)
	}
	return types.PhaseIdle
}

func (f *IntakeFlow) load(ctx context.Context) (*Session, []*schema.Message, error) {
	state, err := f.states.Read(ctx)
	if err != nil {
		return nil, nil, err
	}
	history, err := f.history.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load history: %w", err)
	}
	return state, history, nil
}

func (f *IntakeFlow) missingFields(form types.FormState) []string {
	var missing []string
	for _, def := range f.steps.Steps() {
		missing = append(missing, f.steps.MissingFields(def.Name, form)...)
	}
	return missing
}

func (f *IntakeFlow) snapshot(state *Session, history []*schema.Message, message string) *Snapshot {
	cursor := f.steps.Clamp(state.Cursor)
	name := f.steps.Name(cursor)
	steps := make([]string, 0, f.steps.Len())
	for _, def := range f.steps.Steps() {
		steps = append(steps, def.Name)
	}
	if message == "" {
		message = lastAssistantText(history)
	}
	return &Snapshot{
		ID:        state.ID,
		Phase:     f.phaseOf(state.ID),
		Step:      name,
		Cursor:    cursor,
		Steps:     steps,
		IsReview:  f.steps.IsReview(cursor),
		Form:      state.Form.Clone(),
		Missing:   f.steps.MissingFields(name, state.Form),
		Submitted: state.Submitted,
		History:   history,
		Message:   message,
	}
}

func lastAssistantText(history []*schema.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m != nil && m.Role == schema.Assistant && m.Content != "" {
			return m.Content
		}
	}
	return ""
}
