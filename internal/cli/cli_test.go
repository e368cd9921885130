package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with the given arguments and captures its output.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp
}

func TestValidate_Text(t *testing.T) {
	out, _, err := execute(t, "validate", filepath.Join("testdata", "decl.cue"))
	require.NoError(t, err)
	assert.Contains(t, out, "2 service(s) valid")
}

func TestValidate_JSON(t *testing.T) {
	out, _, err := execute(t, "validate", "--format", "json", filepath.Join("testdata", "decl.cue"))
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.ElementsMatch(t, []any{"counter", "kvstore"}, data["services"])
}

func TestValidate_InvalidDeclaration(t *testing.T) {
	out, _, err := execute(t, "validate", filepath.Join("testdata", "invalid.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E001]")
}

func TestValidate_MissingFile(t *testing.T) {
	_, _, err := execute(t, "validate", filepath.Join("testdata", "nope.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestInvalidFormatFlag(t *testing.T) {
	_, _, err := execute(t, "validate", "--format", "xml", filepath.Join("testdata", "decl.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestEmit_Text(t *testing.T) {
	out, _, err := execute(t, "emit", filepath.Join("testdata", "decl.cue"))
	require.NoError(t, err)
	assert.Contains(t, out, "pure implementations")
	assert.Contains(t, out, "client API")
	assert.Contains(t, out, "counter")
	assert.Contains(t, out, "kvstore")
}

func TestEmit_ServiceFilter(t *testing.T) {
	out, _, err := execute(t, "emit", "--service", "counter", filepath.Join("testdata", "decl.cue"))
	require.NoError(t, err)
	assert.Contains(t, out, "counter")
	assert.NotContains(t, out, "kvstore")
}

func TestEmit_UnknownService(t *testing.T) {
	_, _, err := execute(t, "emit", "--service", "ghost", filepath.Join("testdata", "decl.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCall_CounterText(t *testing.T) {
	out, _, err := execute(t, "call", "counter", "fib", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "55")
}

func TestCall_InlineMode(t *testing.T) {
	out, _, err := execute(t, "call", "--mode", "inline", "counter", "fib", "12")
	require.NoError(t, err)
	assert.Contains(t, out, "144")
}

func TestCall_PooledMode(t *testing.T) {
	out, _, err := execute(t, "call", "--mode", "pooled", "counter", "fib", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "55")
}

func TestCall_JSON(t *testing.T) {
	out, _, err := execute(t, "call", "--format", "json", "kvstore", "put", "answer", "42")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "kvstore", data["service"])
	assert.Equal(t, "put", data["function"])
	assert.Equal(t, float64(42), data["value"])
}

func TestCall_UnknownService(t *testing.T) {
	_, _, err := execute(t, "call", "ghost", "fib", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCall_CallFailure(t *testing.T) {
	out, _, err := execute(t, "call", "counter", "fib", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}

func TestCallThenTrace(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trace.db")

	_, _, err := execute(t, "call", "--trace", db, "counter", "fib", "10")
	require.NoError(t, err)

	out, _, err := execute(t, "trace", db)
	require.NoError(t, err)
	assert.Contains(t, out, "fib")
	assert.Contains(t, out, "1 call(s), 0 error(s)")
}

func TestTrace_ServiceFilter(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trace.db")
	_, _, err := execute(t, "call", "--trace", db, "counter", "fib", "5")
	require.NoError(t, err)

	out, _, err := execute(t, "trace", "--service", "ghost", db)
	require.NoError(t, err)
	assert.Contains(t, out, "0 call(s), 0 error(s)")
}

func TestTrace_MissingDatabase(t *testing.T) {
	_, _, err := execute(t, "trace", filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestParseArg(t *testing.T) {
	assert.Equal(t, float64(42), parseArg("42"))
	assert.Equal(t, "answer", parseArg("answer"))
	assert.Equal(t, true, parseArg("true"))
	assert.Equal(t, []any{float64(1), float64(2)}, parseArg("[1,2]"))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "x", nil)))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
}
