package chat

import (
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/step"
)

const (
	UpdateTaskInfoTool = "updateTaskInfo"
	CompleteStepTool   = "completeStep"

	updateTaskInfoDescription = "Update the task information form with details provided by the user. ONLY set fields that the user has EXPLICITLY provided. Do not guess or infer values."
	completeStepDescription   = "Call this when the user has confirmed the information for the current step and is ready to move to the next step."
)

// Tools declares updateTaskInfo, with one optional string property per form field,
// and completeStep, which takes no arguments.
func Tools(s *step.Schema) []*schema.ToolInfo {
	params := make(map[string]*schema.ParameterInfo, len(s.Fields()))
	for _, f := range s.Fields() {
		params[f.Name] = &schema.ParameterInfo{
			Type: schema.String,
			Desc: f.Description,
		}
	}
	return []*schema.ToolInfo{
		{
			Name:        UpdateTaskInfoTool,
			Desc:        updateTaskInfoDescription,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		},
		{
			Name:        CompleteStepTool,
			Desc:        completeStepDescription,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
	}
}
