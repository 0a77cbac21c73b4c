package patch

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/tbxark/intakeagent/types"
)

// Merge applies args to form as an RFC 7396 merge patch restricted to string values:
// listed keys overwrite, unlisted keys are untouched. Keys rejected by allow and values
// that are null, arrays or objects are skipped; numbers and booleans are stored as text.
// It returns the new state and the values that were written.
func Merge(form types.FormState, args map[string]any, allow func(string) bool) (types.FormState, map[string]string, error) {
	applied := Sanitize(args, allow)
	if len(applied) == 0 {
		return form.Clone(), applied, nil
	}

	current := form
	if current == nil {
		current = types.FormState{}
	}
	currentJSON, err := sonic.Marshal(current)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal current state: %w", err)
	}
	patchJSON, err := sonic.Marshal(applied)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal merge patch: %w", err)
	}
	modifiedJSON, err := jsonpatch.MergePatch(currentJSON, patchJSON)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to apply merge patch: %w", err)
	}
	result := types.FormState{}
	if err := sonic.Unmarshal(modifiedJSON, &result); err != nil {
		return nil, nil, fmt.Errorf("merge produced a non string form: %w", err)
	}
	return result, applied, nil
}

// Sanitize keeps the scalar entries of args whose key passes allow.
func Sanitize(args map[string]any, allow func(string) bool) map[string]string {
	out := make(map[string]string, len(args))
	for key, raw := range args {
		if allow != nil && !allow(key) {
			continue
		}
		switch v := raw.(type) {
		case string:
			out[key] = v
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case int64:
			out[key] = strconv.FormatInt(v, 10)
		case bool:
			out[key] = strconv.FormatBool(v)
		}
	}
	return out
}

// Changed lists the keys whose value differs between before and after, sorted.
func Changed(before, after types.FormState) ([]string, error) {
	if before == nil {
		before = types.FormState{}
	}
	if after == nil {
		after = types.FormState{}
	}
	beforeJSON, err := sonic.Marshal(before)
	if err != nil {
		return nil, fmt.Errorf("marshal previous state: %w", err)
	}
	afterJSON, err := sonic.Marshal(after)
	if err != nil {
		return nil, fmt.Errorf("marshal next state: %w", err)
	}
	diff, err := jsonpatch.CreateMergePatch(beforeJSON, afterJSON)
	if err != nil {
		return nil, fmt.Errorf("create merge patch: %w", err)
	}
	var changes map[string]any
	if err := sonic.Unmarshal(diff, &changes); err != nil {
		return nil, fmt.Errorf("decode merge patch: %w", err)
	}
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
