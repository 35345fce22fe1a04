package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSON(t *testing.T) {
	tests := []struct {
		name       string
		write      func(f *OutputFormatter) error
		wantStatus string
		wantCode   string
	}{
		{
			name:       "success",
			write:      func(f *OutputFormatter) error { return f.Success(map[string]int{"joins": 1}) },
			wantStatus: "ok",
		},
		{
			name:       "error",
			write:      func(f *OutputFormatter) error { return f.Error("INVALID_INCLUDE", "bad include", nil) },
			wantStatus: "error",
			wantCode:   "INVALID_INCLUDE",
		},
		{
			name:       "error with details",
			write:      func(f *OutputFormatter) error { return f.Error("E112", "unknown property", []string{"BlogId"}) },
			wantStatus: "error",
			wantCode:   "E112",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			require.NoError(t, tt.write(&OutputFormatter{Format: "json", Writer: buf}))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			if tt.wantCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			} else {
				assert.Nil(t, resp.Error)
				assert.NotNil(t, resp.Data)
			}
		})
	}
}

func TestOutputFormatter_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Success("Model valid"))
	require.NoError(t, f.Error("E005", "model directory not found", map[string]string{"dir": "x"}))

	out := buf.String()
	assert.Contains(t, out, "Model valid")
	assert.Contains(t, out, "Error [E005]: model directory not found")
	assert.NotContains(t, out, "Details:")

	buf.Reset()
	f.Verbose = true
	require.NoError(t, f.Error("E005", "model directory not found", map[string]string{"dir": "x"}))
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	err := f.Fail(ExitCommandError, "E003", "no CUE files found")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, buf.String(), "Error [E003]")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			diag := &bytes.Buffer{}
			f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: tt.verbose}

			f.VerboseLog("Loading %s", "blog.cue")

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Contains(t, diag.String(), "Loading blog.cue")
			} else {
				assert.Empty(t, diag.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"exit error", NewExitError(ExitCommandError, "bad path"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("run: %w", NewExitError(ExitFailure, "failed")), ExitFailure},
		{"plain error", errors.New("boom"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestWrapExitError(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapExitError(ExitCommandError, "opening database", cause)

	assert.Equal(t, "opening database: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}
