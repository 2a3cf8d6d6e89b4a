package main

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"gigradar/services/gigradar/internal/errors"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestOutputError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		contains string
	}{
		{
			name:     "missing credentials",
			err:      errors.CredentialsMissing("headers.json not found", nil),
			wantCode: 2,
			contains: "CREDENTIALS_DIR",
		},
		{
			name:     "wrapped domain error keeps its type",
			err:      fmt.Errorf("could not build graph: %w", errors.AuthExpired("session rejected", nil)),
			wantCode: 1,
			contains: "[AUTH_EXPIRED]",
		},
		{
			name:     "plain error",
			err:      fmt.Errorf("boom"),
			wantCode: 1,
			contains: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := outputError(tt.err)
			ec, ok := out.(cli.ExitCoder)
			require.True(t, ok)
			require.Equal(t, tt.wantCode, ec.ExitCode())
			require.Contains(t, out.Error(), tt.contains)
		})
	}
}

func TestCommandsRequireArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "search", args: []string{"gigradar", "search"}, want: "search requires a query"},
		{name: "details", args: []string{"gigradar", "details"}, want: "details requires a job id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := newCLIApp(&out).RunContext(context.Background(), tt.args)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
			require.Empty(t, out.String())
		})
	}
}

func TestOutputJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, outputJSON(&out, map[string]int{"count": 2}))
	require.Equal(t, "{\n  \"count\": 2\n}\n", out.String())
}
