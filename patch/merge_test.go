package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/intakeagent/types"
)

func allowAll(string) bool { return true }

func TestMergeOverwritesOnlyListedKeys(t *testing.T) {
	states := []types.FormState{
		nil,
		{},
		{"businessName": "Old Co"},
		{"businessName": "Old Co", "industry": "retail", "budget": "100"},
	}
	argsList := []map[string]any{
		{},
		{"businessName": "Acme Inc"},
		{"businessName": "Acme Inc", "industry": "fintech"},
		{"budget": ""},
	}
	for _, s := range states {
		for _, args := range argsList {
			next, applied, err := Merge(s, args, allowAll)
			require.NoError(t, err)
			for k, v := range args {
				assert.Equal(t, v, next[k], "listed key %s", k)
				assert.Equal(t, v, applied[k])
			}
			for k, v := range s {
				if _, listed := args[k]; !listed {
					assert.Equal(t, v, next[k], "unlisted key %s", k)
				}
			}
		}
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	base := types.FormState{"industry": "retail", "timeline": "2 months"}
	args := map[string]any{"businessName": "Acme Inc", "industry": "fintech"}
	once, _, err := Merge(base, args, allowAll)
	require.NoError(t, err)
	twice, _, err := Merge(once, args, allowAll)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	base := types.FormState{"industry": "retail"}
	_, _, err := Merge(base, map[string]any{"industry": "fintech"}, allowAll)
	require.NoError(t, err)
	assert.Equal(t, "retail", base["industry"])
}

func TestMergeSkipsDisallowedAndNonScalar(t *testing.T) {
	allow := func(k string) bool { return k != "secret" }
	next, applied, err := Merge(types.FormState{"budget": "1"}, map[string]any{
		"secret":     "x",
		"budget":     nil,
		"techStack":  []any{"Go"},
		"timeline":   map[string]any{"weeks": 3},
		"talentType": "Senior",
	}, allow)
	require.NoError(t, err)
	assert.Equal(t, types.FormState{"budget": "1", "talentType": "Senior"}, next)
	assert.Equal(t, map[string]string{"talentType": "Senior"}, applied)
}

func TestSanitizeStringifiesScalars(t *testing.T) {
	out := Sanitize(map[string]any{"budget": float64(5000), "remote": true, "rate": 12.5}, nil)
	assert.Equal(t, map[string]string{"budget": "5000", "remote": "true", "rate": "12.5"}, out)
}

func TestChanged(t *testing.T) {
	keys, err := Changed(types.FormState{"a": "1", "b": "2"}, types.FormState{"a": "1", "b": "3", "c": "4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, keys)

	keys, err = Changed(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
