package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorJSONKeepsTypeAndHelp(t *testing.T) {
	in := &Error{Type: Missing, Help: "no such pipeline", Err: errors.New("pipeline \"x\" not found")}
	bytes, err := json.Marshal(in)
	require.NoError(t, err)

	var out Error
	require.NoError(t, json.Unmarshal(bytes, &out))
	assert.Equal(t, in.Type, out.Type)
	assert.Equal(t, in.Help, out.Help)
	assert.Equal(t, in.Err.Error(), out.Err.Error())
	assert.True(t, IsMissing(&out))
}

func TestCauseStopsAtAPIError(t *testing.T) {
	apiErr := UserError("pipeline %q is already running", "develop")
	wrapped := pkgerrors.Wrap(apiErr, "running pipeline")
	assert.Equal(t, apiErr, pkgerrors.Cause(wrapped))
	assert.True(t, IsUser(apiErr))
	assert.False(t, IsMissing(apiErr))
}

func TestCoverAllErrorIsServerType(t *testing.T) {
	e := CoverAllError(errors.New("boom"))
	assert.Equal(t, Server, e.Type)
	assert.Contains(t, e.Help, "boom")
}

func TestTypeFollowsTheChain(t *testing.T) {
	missing := MissingError("no deployment %q", "api")
	wrapped := fmt.Errorf("restarting: %w", pkgerrors.Wrap(missing, "calling restartDeployment"))
	assert.True(t, IsMissing(wrapped))
	assert.Equal(t, Missing, TypeOf(wrapped))
	assert.Equal(t, Type(""), TypeOf(errors.New("plain")))
	assert.Equal(t, Type(""), TypeOf(nil))
}

func TestUnmarshalHelpOnly(t *testing.T) {
	var out Error
	require.NoError(t, json.Unmarshal([]byte(`{"type":"user","help":"pipeline is busy"}`), &out))
	assert.True(t, IsUser(&out))
	assert.Equal(t, "pipeline is busy", out.Error())
}
