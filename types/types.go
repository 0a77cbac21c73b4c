package types

import "strings"

// Phase is the dialogue controller state for one session.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseStreaming            Phase = "streaming"
	PhaseApplyingTools        Phase = "applying_tools"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
)

type FieldInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// FormState maps a field name to the value collected so far. Missing keys read as blank.
type FormState map[string]string

func (f FormState) Get(name string) string {
	if f == nil {
		return ""
	}
	return f[name]
}

func (f FormState) IsBlank(name string) bool {
	return strings.TrimSpace(f.Get(name)) == ""
}

func (f FormState) Clone() FormState {
	out := make(FormState, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Subset returns the values of names, blank for the unset ones.
func (f FormState) Subset(names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = f.Get(name)
	}
	return out
}
