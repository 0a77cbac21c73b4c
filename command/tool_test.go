package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/intakeagent/chat/chattest"
)

func TestToolCommandParser(t *testing.T) {
	fake := chattest.NewModel(
		chattest.Call("c1", parseCommandToolName, `{"command":"back"}`),
		chattest.Call("c2", parseCommandToolName, `{"command":"none"}`),
		chattest.Call("c3", parseCommandToolName, `{"command":"dance"}`),
	)
	parser, err := NewToolCommandParser(fake, "")
	require.NoError(t, err)
	ctx := context.Background()

	cmd, err := parser.ParseCommand(ctx, "can we go back a step?")
	require.NoError(t, err)
	assert.Equal(t, Back, cmd)
	assert.Contains(t, fake.Input(0)[0].Content, parseCommandToolName)

	cmd, err = parser.ParseCommand(ctx, "yes that's right")
	require.NoError(t, err)
	assert.Equal(t, None, cmd)

	cmd, err = parser.ParseCommand(ctx, "let's dance")
	assert.Error(t, err)
	assert.Equal(t, None, cmd)
}

func TestFailbackSkipsModelForSlashCommands(t *testing.T) {
	fake := chattest.NewModel(chattest.Turn{OpenErr: errors.New("offline")})
	toolParser, err := NewToolCommandParser(fake, "")
	require.NoError(t, err)
	parser := NewFailbackCommandParser(NewLocalCommandParser(), toolParser)

	cmd, err := parser.ParseCommand(context.Background(), "/next")
	require.NoError(t, err)
	assert.Equal(t, Next, cmd)
	assert.Equal(t, 0, fake.Calls())

	cmd, err = parser.ParseCommand(context.Background(), "we sell shoes")
	assert.Error(t, err)
	assert.Equal(t, None, cmd)
	assert.Equal(t, 1, fake.Calls())
}
