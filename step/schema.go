package step

import (
	"fmt"
	"strings"

	"github.com/tbxark/intakeagent/types"
)

// Definition is one stage of the intake wizard.
type Definition struct {
	Name           string   `json:"name"`
	RequiredFields []string `json:"required_fields"`
}

// Cursor indexes the current step.
type Cursor int

// Schema is the ordered, immutable list of steps together with the field catalog
// the steps draw from.
type Schema struct {
	steps  []Definition
	fields []types.FieldInfo
	byName map[string]int
	field  map[string]types.FieldInfo
}

func NewSchema(fields []types.FieldInfo, steps ...Definition) (*Schema, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("schema needs at least one step")
	}
	s := &Schema{
		steps:  make([]Definition, 0, len(steps)),
		fields: append([]types.FieldInfo(nil), fields...),
		byName: make(map[string]int, len(steps)),
		field:  make(map[string]types.FieldInfo, len(fields)),
	}
	for _, f := range fields {
		if _, dup := s.field[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		s.field[f.Name] = f
	}
	for i, def := range steps {
		if _, dup := s.byName[def.Name]; dup {
			return nil, fmt.Errorf("duplicate step %q", def.Name)
		}
		for _, name := range def.RequiredFields {
			if _, ok := s.field[name]; !ok {
				return nil, fmt.Errorf("step %q requires unknown field %q", def.Name, name)
			}
		}
		s.byName[def.Name] = i
		s.steps = append(s.steps, Definition{
			Name:           def.Name,
			RequiredFields: append([]string(nil), def.RequiredFields...),
		})
	}
	return s, nil
}

func MustNewSchema(fields []types.FieldInfo, steps ...Definition) *Schema {
	s, err := NewSchema(fields, steps...)
	if err != nil {
		panic(err)
	}
	return s
}

// DefaultSchema is the task posting wizard: five data steps followed by Review.
func DefaultSchema() *Schema {
	fields, err := FieldCatalog[TaskInfo]()
	if err != nil {
		panic(err)
	}
	return MustNewSchema(fields,
		Definition{Name: "Business Profile", RequiredFields: []string{"businessName", "industry"}},
		Definition{Name: "Project Info", RequiredFields: []string{"projectTitle", "projectDescription"}},
		Definition{Name: "Budget & Timeline", RequiredFields: []string{"budget", "timeline"}},
		Definition{Name: "Tech Stack", RequiredFields: []string{"techStack"}},
		Definition{Name: "Talent Preference", RequiredFields: []string{"talentType"}},
		Definition{Name: "Review"},
	)
}

func (s *Schema) Len() int { return len(s.steps) }

func (s *Schema) Last() Cursor { return Cursor(len(s.steps) - 1) }

func (s *Schema) Steps() []Definition {
	return append([]Definition(nil), s.steps...)
}

func (s *Schema) Fields() []types.FieldInfo {
	return append([]types.FieldInfo(nil), s.fields...)
}

func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

func (s *Schema) HasField(name string) bool {
	_, ok := s.field[name]
	return ok
}

func (s *Schema) Field(name string) (types.FieldInfo, bool) {
	f, ok := s.field[name]
	return f, ok
}

// Clamp pulls c back into [0, Len-1].
func (s *Schema) Clamp(c Cursor) Cursor {
	if c < 0 {
		return 0
	}
	if c > s.Last() {
		return s.Last()
	}
	return c
}

func (s *Schema) Step(c Cursor) Definition {
	return s.steps[s.Clamp(c)]
}

func (s *Schema) Name(c Cursor) string {
	return s.Step(c).Name
}

func (s *Schema) IndexOf(name string) (Cursor, bool) {
	i, ok := s.byName[name]
	return Cursor(i), ok
}

func (s *Schema) IsReview(c Cursor) bool {
	return c == s.Last()
}

// RequiredFieldsFor returns the fields stepName needs, empty for an unknown step.
func (s *Schema) RequiredFieldsFor(stepName string) []string {
	i, ok := s.byName[stepName]
	if !ok {
		return []string{}
	}
	return append([]string{}, s.steps[i].RequiredFields...)
}

func (s *Schema) RequiredFieldInfos(stepName string) []types.FieldInfo {
	names := s.RequiredFieldsFor(stepName)
	out := make([]types.FieldInfo, 0, len(names))
	for _, name := range names {
		f := s.field[name]
		f.Required = true
		out = append(out, f)
	}
	return out
}

// MissingFields returns the required fields of stepName that are blank in form,
// in schema order.
func (s *Schema) MissingFields(stepName string, form types.FormState) []string {
	missing := []string{}
	for _, name := range s.RequiredFieldsFor(stepName) {
		if form.IsBlank(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Complete reports whether every data step has its required fields.
func (s *Schema) Complete(form types.FormState) bool {
	for _, def := range s.steps {
		if len(s.MissingFields(def.Name, form)) > 0 {
			return false
		}
	}
	return true
}

func (s *Schema) Advance(c Cursor) (Cursor, error) {
	c = s.Clamp(c)
	if c >= s.Last() {
		return c, types.ErrStepBoundary
	}
	return c + 1, nil
}

func (s *Schema) Retreat(c Cursor) (Cursor, error) {
	c = s.Clamp(c)
	if c <= 0 {
		return c, types.ErrStepBoundary
	}
	return c - 1, nil
}

// Summary renders the task summary: every step up to the cursor, or all of them on review.
func (s *Schema) Summary(form types.FormState, c Cursor) string {
	c = s.Clamp(c)
	var sections []string
	for i, def := range s.steps {
		if Cursor(i) > c && !s.IsReview(c) {
			break
		}
		title := fmt.Sprintf("%d. %s", i+1, def.Name)
		if table := types.FormatFieldTable(title, s.RequiredFieldInfos(def.Name), form); table != "" {
			sections = append(sections, table)
		}
	}
	return strings.Join(sections, "\n")
}
