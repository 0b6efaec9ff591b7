package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoTool struct{}

func (echoTool) Info() Declaration {
	return Declaration{Name: "echo", Description: "echoes its input"}
}

func (echoTool) Run(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		S string `json:"s"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, &Error{Code: "BAD_ARGS", Message: err.Error(), Category: CategoryInputError}
	}
	return json.Marshal(in.S)
}

func TestTool_Run(t *testing.T) {
	var tl Tool = echoTool{}
	out, err := tl.Run(context.Background(), json.RawMessage(`{"s":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, `"hi"`, string(out))
}

func TestTool_Run_Error(t *testing.T) {
	var tl Tool = echoTool{}
	_, err := tl.Run(context.Background(), json.RawMessage(`not-json`))
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, CategoryInputError, terr.Category)
}

func TestError_Error(t *testing.T) {
	e := &Error{Code: "X", Message: "boom"}
	assert.Equal(t, "[X] boom", e.Error())
}
