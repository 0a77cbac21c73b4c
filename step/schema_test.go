package step

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/intakeagent/types"
)

func TestDefaultSchemaLayout(t *testing.T) {
	s := DefaultSchema()
	require.Equal(t, 6, s.Len())
	assert.Equal(t, "Business Profile", s.Name(0))
	assert.Equal(t, "Review", s.Name(s.Last()))
	assert.True(t, s.IsReview(5))
	assert.False(t, s.IsReview(4))
	assert.Equal(t, []string{
		"businessName", "industry", "projectTitle", "projectDescription",
		"budget", "timeline", "techStack", "talentType",
	}, s.FieldNames())

	f, ok := s.Field("businessName")
	require.True(t, ok)
	assert.Equal(t, "Company Name", f.DisplayName)
}

func TestRequiredFieldsFor(t *testing.T) {
	s := DefaultSchema()
	assert.Equal(t, []string{"businessName", "industry"}, s.RequiredFieldsFor("Business Profile"))
	assert.Empty(t, s.RequiredFieldsFor("Review"))
	assert.Empty(t, s.RequiredFieldsFor("No Such Step"))
	assert.NotNil(t, s.RequiredFieldsFor("No Such Step"))
}

func TestMissingFieldsKeepsSchemaOrder(t *testing.T) {
	s := DefaultSchema()
	form := types.FormState{"industry": "fintech", "projectDescription": "  "}
	assert.Equal(t, []string{"businessName"}, s.MissingFields("Business Profile", form))
	assert.Equal(t, []string{"projectTitle", "projectDescription"}, s.MissingFields("Project Info", form))
	assert.Empty(t, s.MissingFields("Unknown", form))
}

func TestMissingFieldsEmptyIffComplete(t *testing.T) {
	s := DefaultSchema()
	forms := []types.FormState{
		{},
		{"businessName": "Acme"},
		{"businessName": "Acme", "industry": ""},
		{"businessName": "Acme", "industry": "fintech"},
		{"businessName": "Acme", "industry": "fintech", "budget": "5000"},
	}
	for _, def := range s.Steps() {
		for _, form := range forms {
			complete := true
			for _, name := range s.RequiredFieldsFor(def.Name) {
				if form.IsBlank(name) {
					complete = false
				}
			}
			assert.Equal(t, complete, len(s.MissingFields(def.Name, form)) == 0, "step %s form %v", def.Name, form)
		}
	}
}

func TestCursorStaysInBounds(t *testing.T) {
	s := DefaultSchema()
	c := Cursor(0)
	for i := 0; i < s.Len()+3; i++ {
		next, err := s.Advance(c)
		if c == s.Last() {
			assert.ErrorIs(t, err, types.ErrStepBoundary)
		}
		c = next
		assert.True(t, c >= 0 && c <= s.Last())
	}
	assert.Equal(t, s.Last(), c)

	c = 0
	for i := 0; i < 3; i++ {
		var err error
		c, err = s.Retreat(c)
		assert.ErrorIs(t, err, types.ErrStepBoundary)
		assert.Equal(t, Cursor(0), c)
	}
	assert.Equal(t, s.Last(), s.Clamp(99))
	assert.Equal(t, Cursor(0), s.Clamp(-4))
}

func TestNewSchemaRejectsUnknownField(t *testing.T) {
	_, err := NewSchema([]types.FieldInfo{{Name: "a"}}, Definition{Name: "One", RequiredFields: []string{"b"}})
	require.Error(t, err)
	_, err = NewSchema(nil)
	require.Error(t, err)
	_, err = NewSchema([]types.FieldInfo{{Name: "a"}}, Definition{Name: "One"}, Definition{Name: "One"})
	require.Error(t, err)
}

func TestSummaryShowsStepsUpToCursor(t *testing.T) {
	s := DefaultSchema()
	form := types.FormState{"businessName": "Acme Inc", "industry": "fintech"}
	out := s.Summary(form, 0)
	assert.Contains(t, out, "1. Business Profile")
	assert.NotContains(t, out, "Project Info")

	review := s.Summary(form, s.Last())
	assert.Contains(t, review, "5. Talent Preference")
	assert.Contains(t, review, "Acme Inc")
}

func TestTaskInfoRoundTrip(t *testing.T) {
	form := types.FormState{"businessName": "Acme Inc", "budget": "5000"}
	info, err := TaskInfoFromForm(form)
	require.NoError(t, err)
	assert.Equal(t, "Acme Inc", info.BusinessName)
	assert.Equal(t, "5000", info.Budget)
	assert.Equal(t, form, info.Form())
}

func TestJSONSchemaHasProperties(t *testing.T) {
	raw, err := JSONSchema[TaskInfo]("Task", "Task intake form")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"businessName"`)
	assert.Contains(t, string(raw), `"Task intake form"`)
}

func TestIndexOf(t *testing.T) {
	s := DefaultSchema()
	c, ok := s.IndexOf("Budget & Timeline")
	require.True(t, ok)
	assert.Equal(t, "Budget & Timeline", s.Name(c))

	c, ok = s.IndexOf("Review")
	require.True(t, ok)
	assert.Equal(t, s.Last(), c)

	_, ok = s.IndexOf("review")
	assert.False(t, ok)
}
