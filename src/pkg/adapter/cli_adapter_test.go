package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfoliotree/app/src/pkg/data"
	"portfoliotree/app/src/pkg/model"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"node add - Projects", []string{"node", "add", "-", "Projects"}},
		{`node add - "Open source work"`, []string{"node", "add", "-", "Open source work"}},
		{`node add 1 'It''s' x`, []string{"node", "add", "1", "Its", "x"}},
		{`node add 1 "say \"hi\"" desc:"a b"`, []string{"node", "add", "1", `say "hi"`, "desc:a b"}},
		{`path\ with\ spaces`, []string{"path with spaces"}},
		{`empty "" arg`, []string{"empty", "", "arg"}},
		{"  spaced \t out  ", []string{"spaced", "out"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := SplitArgs(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := SplitArgs(`node add "unterminated`)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	_, err = SplitArgs(`trailing\`)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand(`Portfolio ADD "My CV"`)
	require.NoError(t, err)
	assert.Equal(t, model.Command{Scope: "portfolio", Operation: "add", Args: []string{"My CV"}}, cmd)

	cmd, err = ParseCommand("help")
	require.NoError(t, err)
	assert.Equal(t, "help", cmd.Scope)
	assert.Empty(t, cmd.Operation)
	assert.Empty(t, cmd.Args)

	_, err = ParseCommand("   ")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestCLIAdapter_ProcessInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, err := NewCLIAdapter(env.am, env.logger)
	require.NoError(t, err)
	require.NoError(t, a.AdapterStart(ctx))

	id, err := a.SessionAdd()
	require.NoError(t, err)
	assert.Equal(t, " @  > ", a.PromptGet(id))

	for _, line := range []string{
		"user add alice secret",
		"user login alice secret",
		`portfolio add "My CV" "Things I made" public`,
		`node add - "Open source"`,
		`node add 1 "Tree tool" type:project "tags:go,cli"`,
	} {
		_, err := a.ProcessInput(ctx, id, line)
		require.NoError(t, err, line)
	}
	assert.Equal(t, "alice @ My CV > ", a.PromptGet(id))

	result, err := a.ProcessInput(ctx, id, "portfolio view")
	require.NoError(t, err)
	view := result.(*data.View)
	require.Len(t, view.Outline, 2)
	assert.Equal(t, "Tree tool", view.Outline[1].Node.Title)
	assert.Equal(t, []string{"go", "cli"}, view.Outline[1].Node.Tags)

	_, err = a.ProcessInput(ctx, "unknown", "portfolio list")
	assert.ErrorIs(t, err, model.ErrNotFound)

	a.SessionDelete(id)
	assert.Equal(t, "> ", a.PromptGet(id))
	require.NoError(t, a.AdapterStop(ctx))
}
