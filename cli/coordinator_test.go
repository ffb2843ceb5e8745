package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/absmach/fedcoord/cli"
	"github.com/absmach/fedcoord/pkg/sdk"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSDK struct {
	mock.Mock
}

func (m *mockSDK) Model() (sdk.Model, error) {
	args := m.Called()
	return args.Get(0).(sdk.Model), args.Error(1)
}

func (m *mockSDK) SetHyperparams(params map[string]any) (map[string]any, error) {
	args := m.Called(params)
	return args.Get(0).(map[string]any), args.Error(1)
}

func (m *mockSDK) PendingUpdates() (sdk.Pending, error) {
	args := m.Called()
	return args.Get(0).(sdk.Pending), args.Error(1)
}

func (m *mockSDK) DiscardUpdates(version uint64) (int, error) {
	args := m.Called(version)
	return args.Int(0), args.Error(1)
}

func (m *mockSDK) Sessions() (sdk.SessionPage, error) {
	args := m.Called()
	return args.Get(0).(sdk.SessionPage), args.Error(1)
}

func (m *mockSDK) Telemetry(offset, limit uint64) (sdk.TelemetryPage, error) {
	args := m.Called(offset, limit)
	return args.Get(0).(sdk.TelemetryPage), args.Error(1)
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())

	return stdout.String(), stderr.String()
}

func TestHyperparamsSet(t *testing.T) {
	tomlPath := filepath.Join(t.TempDir(), "fedcoord.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("[hyperparams]\nepochs = 2\n"), 0o600))

	cases := []struct {
		desc   string
		args   []string
		params map[string]any
		stdout string
		stderr string
	}{
		{
			desc:   "inline json",
			args:   []string{"set", `{"lr":0.5}`},
			params: map[string]any{"lr": 0.5},
			stdout: "lr",
		},
		{
			desc:   "toml file",
			args:   []string{"set", "--file", tomlPath},
			params: map[string]any{"epochs": int64(2)},
			stdout: "epochs",
		},
		{
			desc:   "invalid json",
			args:   []string{"set", `{"lr":`},
			stderr: "error",
		},
		{
			desc:   "missing argument",
			args:   []string{"set"},
			stdout: "usage",
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			m := new(mockSDK)
			m.On("SetHyperparams", tc.params).Return(tc.params, nil)
			cli.SetSDK(m)

			stdout, stderr := run(t, cli.NewHyperparamsCmd(), tc.args...)
			if tc.stdout != "" {
				assert.Contains(t, stdout, tc.stdout)
			}
			if tc.stderr != "" {
				assert.Contains(t, stderr, tc.stderr)
				m.AssertNotCalled(t, "SetHyperparams", mock.Anything)
			}
		})
	}
}

func TestUpdatesDiscard(t *testing.T) {
	cases := []struct {
		desc   string
		args   []string
		stdout string
		stderr string
	}{
		{desc: "valid version", args: []string{"discard", "4"}, stdout: "discarded"},
		{desc: "invalid version", args: []string{"discard", "four"}, stderr: "error"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			m := new(mockSDK)
			m.On("DiscardUpdates", uint64(4)).Return(2, nil)
			cli.SetSDK(m)

			stdout, stderr := run(t, cli.NewUpdatesCmd(), tc.args...)
			if tc.stdout != "" {
				assert.Contains(t, stdout, tc.stdout)
				m.AssertCalled(t, "DiscardUpdates", uint64(4))
			}
			if tc.stderr != "" {
				assert.Contains(t, stderr, tc.stderr)
			}
		})
	}
}

func TestTelemetryPaging(t *testing.T) {
	m := new(mockSDK)
	m.On("Telemetry", uint64(5), uint64(20)).Return(sdk.TelemetryPage{Total: 7}, nil)
	cli.SetSDK(m)

	stdout, _ := run(t, cli.NewTelemetryCmd(), "--offset", "5", "--limit", "20")
	assert.Contains(t, stdout, "total")
	m.AssertExpectations(t)
}
