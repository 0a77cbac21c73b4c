package chat

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/tbxark/intakeagent/step"
	"github.com/tbxark/intakeagent/types"
)

// DefaultIntroTemplate opens the system prompt. The single "%s" is the brand name.
const DefaultIntroTemplate = `You are a helpful assistant for "%s", a platform that helps businesses define their task requirements.
Your goal is to guide the user through defining their task requirements step-by-step.`

// DefaultInstructions are appended after the step context.
const DefaultInstructions = `INSTRUCTIONS:
1. **NO GUESSING**: Do not infer missing fields. For example, do not guess the industry from the company name. You MUST ask the user.
2. Focus ONLY on gathering information for the CURRENT STEP.
3. If there are MISSING FIELDS, ask for them one by one or together. DO NOT move to the next step.
4. When the user provides information, ALWAYS use the 'updateTaskInfo' tool.
5. AFTER calling the tool, confirm the update with the user.
6. CRITICAL: Do NOT call the 'completeStep' tool unless ALL required fields for this step are non-empty and the user has confirmed they are correct.
7. Only when the user says "Yes" or confirms the full data for this step, call 'completeStep'.
8. **SILENT TOOL CALLS**: When calling a tool (updateTaskInfo or completeStep), DO NOT generate any text explanation. ONLY generate the tool call. You will provide the confirmation in the next turn.

NEGATIVE CONSTRAINTS:
- NEVER GUESS OR INFER INFORMATION.
- If the user only gives a company name, ONLY set businessName. Leave industry EMPTY.
- Do not validate or normalize data unless obviously wrong.
- Do not make up information. Only use what the user provides.
If the user has provided all information, ask if they want to review or submit.`

// PromptBuilder renders the system prompt for one completion call.
type PromptBuilder func(req *Request) (string, error)

type promptOptions struct {
	brand         string
	introTemplate string
	instructions  string
}

type PromptOption func(*promptOptions)

// WithBrand sets the platform name used by the intro template.
func WithBrand(brand string) PromptOption {
	return func(o *promptOptions) {
		o.brand = brand
	}
}

// WithIntroTemplate overrides the intro. If it contains "%s", it is formatted with the brand.
func WithIntroTemplate(tpl string) PromptOption {
	return func(o *promptOptions) {
		o.introTemplate = tpl
	}
}

func WithInstructions(instructions string) PromptOption {
	return func(o *promptOptions) {
		o.instructions = instructions
	}
}

func NewPromptBuilder(s *step.Schema, opts ...PromptOption) PromptBuilder {
	options := promptOptions{
		brand:         "PivotHire",
		introTemplate: DefaultIntroTemplate,
		instructions:  DefaultInstructions,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	intro := options.introTemplate
	if strings.Contains(intro, "%s") {
		intro = fmt.Sprintf(intro, options.brand)
	}
	steps := formatStepList(s)

	return func(req *Request) (string, error) {
		stepName := req.StepName
		if stepName == "" {
			stepName = "Unknown"
		}
		required := s.RequiredFieldsFor(req.StepName)
		state, err := formatOrderedJSON(required, req.Form)
		if err != nil {
			return "", fmt.Errorf("format step state: %w", err)
		}
		missing := "None - Step looks complete"
		if m := s.MissingFields(req.StepName, req.Form); len(m) > 0 {
			missing = strings.Join(m, ", ")
		}

		sections := []string{
			intro,
			"The steps are:\n" + steps,
			fmt.Sprintf("CURRENT STEP: %q\nREQUIRED FIELDS FOR THIS STEP: %s", stepName, strings.Join(required, ", ")),
			"CURRENT FORM STATE (For this step):\n" + state,
			"MISSING FIELDS: " + missing,
		}
		if options.instructions != "" {
			sections = append(sections, options.instructions)
		}
		return strings.Join(sections, "\n\n"), nil
	}
}

func formatStepList(s *step.Schema) string {
	var sb strings.Builder
	for i, def := range s.Steps() {
		fmt.Fprintf(&sb, "%d. %s", i+1, def.Name)
		if infos := s.RequiredFieldInfos(def.Name); len(infos) > 0 {
			names := make([]string, len(infos))
			for j, f := range infos {
				names[j] = f.DisplayName
			}
			fmt.Fprintf(&sb, " (%s)", strings.Join(names, ", "))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatOrderedJSON renders the named fields as an indented object, keeping the given order.
func formatOrderedJSON(names []string, form types.FormState) (string, error) {
	if len(names) == 0 {
		return "{}", nil
	}
	var sb strings.Builder
	sb.WriteString("{\n")
	for i, name := range names {
		key, err := sonic.MarshalString(name)
		if err != nil {
			return "", err
		}
		value, err := sonic.MarshalString(form.Get(name))
		if err != nil {
			return "", err
		}
		sb.WriteString("  ")
		sb.WriteString(key)
		sb.WriteString(": ")
		sb.WriteString(value)
		if i < len(names)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String(), nil
}
