package command

import "context"

// Command is a navigation request recognized in user input before it reaches the model.
type Command string

const (
	Back    Command = "back"
	Next    Command = "next"
	Submit  Command = "submit"
	Cancel  Command = "cancel"
	Summary Command = "summary"
	None    Command = "none"
)

type Parser interface {
	ParseCommand(ctx context.Context, input string) (Command, error)
}
