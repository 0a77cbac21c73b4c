package step

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/eino-contrib/jsonschema"
	"github.com/tbxark/intakeagent/types"
)

// TaskInfo is the typed view of the intake form. Its json names are the FormState keys,
// its jsonschema titles are the labels shown next to each value.
type TaskInfo struct {
	BusinessName       string `json:"businessName,omitempty" jsonschema:"title=Company Name,description=Name of the company posting the task"`
	Industry           string `json:"industry,omitempty" jsonschema:"title=Industry,description=Industry the business operates in"`
	ProjectTitle       string `json:"projectTitle,omitempty" jsonschema:"title=Project Title,description=Short title of the project"`
	ProjectDescription string `json:"projectDescription,omitempty" jsonschema:"title=Description,description=Brief description of the work to be done"`
	Budget             string `json:"budget,omitempty" jsonschema:"title=Budget ($),description=Budget for the task in US dollars"`
	Timeline           string `json:"timeline,omitempty" jsonschema:"title=Timeline,description=Expected delivery timeline"`
	TechStack          string `json:"techStack,omitempty" jsonschema:"title=Technologies,description=Technologies the work requires"`
	TalentType         string `json:"talentType,omitempty" jsonschema:"title=Talent Type,description=Preferred seniority or agency versus freelancer"`
}

func reflectSchema[T any]() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	var zero T
	return r.Reflect(&zero)
}

// FieldCatalog lists the top-level properties of T in declaration order.
func FieldCatalog[T any]() ([]types.FieldInfo, error) {
	s := reflectSchema[T]()
	if s == nil || s.Properties == nil {
		return nil, fmt.Errorf("no properties found for %T", *new(T))
	}
	fields := make([]types.FieldInfo, 0, s.Properties.Len())
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		display := pair.Value.Title
		if display == "" {
			display = pair.Key
		}
		fields = append(fields, types.FieldInfo{
			Name:        pair.Key,
			DisplayName: display,
			Description: pair.Value.Description,
		})
	}
	return fields, nil
}

// JSONSchema returns the JSON schema document of T.
func JSONSchema[T any](title, description string) (json.RawMessage, error) {
	s := reflectSchema[T]()
	s.Title = title
	s.Description = description
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON schema: %w", err)
	}
	return raw, nil
}

func TaskInfoFromForm(form types.FormState) (TaskInfo, error) {
	var info TaskInfo
	raw, err := sonic.Marshal(form)
	if err != nil {
		return info, fmt.Errorf("marshal form state: %w", err)
	}
	if err := sonic.Unmarshal(raw, &info); err != nil {
		return info, fmt.Errorf("decode task info: %w", err)
	}
	return info, nil
}

func (t TaskInfo) Form() types.FormState {
	form := types.FormState{}
	raw, err := sonic.Marshal(t)
	if err != nil {
		return form
	}
	_ = sonic.Unmarshal(raw, &form)
	return form
}
