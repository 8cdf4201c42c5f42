package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasnim.dev/cloud-gatekeeper/internal/orchestrator"
	"tasnim.dev/cloud-gatekeeper/internal/provision"
	"tasnim.dev/cloud-gatekeeper/internal/resolver"
)

func testOptions(t *testing.T) *Options {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GATEKEEPER_DB_PATH", "")
	t.Setenv("GATEKEEPER_LOG_LEVEL", "error")
	return &Options{
		ConfigPath: filepath.Join(dir, "missing.yaml"),
		DBPath:     filepath.Join(dir, "gatekeeper.db"),
	}
}

func execute(t *testing.T, opts *Options, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "cloud-gatekeeper", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(sub)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUsersAddAndList(t *testing.T) {
	opts := testOptions(t)

	out, err := execute(t, opts, NewUsersCmd(opts), "users", "add", "A1", "--username", "admin", "--email", "admin@example.com", "--admin")
	require.NoError(t, err)
	assert.Contains(t, out, "admin@example.com")

	_, err = execute(t, opts, NewUsersCmd(opts), "users", "add", "U1", "--username", "alice")
	require.NoError(t, err)

	out, err = execute(t, opts, NewUsersCmd(opts), "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "A1")
	assert.Contains(t, out, "alice")
}

func TestUsersAdd_RequiresUsername(t *testing.T) {
	opts := testOptions(t)

	_, err := execute(t, opts, NewUsersCmd(opts), "users", "add", "U1")
	assert.Error(t, err)
}

func TestPending(t *testing.T) {
	opts := testOptions(t)
	_, err := execute(t, opts, NewUsersCmd(opts), "users", "add", "A1", "--username", "admin", "--admin")
	require.NoError(t, err)
	_, err = execute(t, opts, NewUsersCmd(opts), "users", "add", "U1", "--username", "alice")
	require.NoError(t, err)

	ctx := context.Background()
	a, err := opts.openStore(ctx)
	require.NoError(t, err)
	req, err := a.orchestrator.Intake(ctx, "U1", "need project analytics with s3:GetObject")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	out, err := execute(t, opts, NewPendingCmd(opts), "pending", "--as", "A1")
	require.NoError(t, err)
	assert.Contains(t, out, req.ID)
	assert.Contains(t, out, "analytics")

	_, err = execute(t, opts, NewPendingCmd(opts), "pending", "--as", "U1")
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrNotAuthorized)
}

func TestUnprovisioned_Empty(t *testing.T) {
	opts := testOptions(t)
	_, err := execute(t, opts, NewUsersCmd(opts), "users", "add", "A1", "--username", "admin", "--admin")
	require.NoError(t, err)

	out, err := execute(t, opts, NewUnprovisionedCmd(opts), "unprovisioned", "--as", "A1")
	require.NoError(t, err)
	assert.Contains(t, out, "Every approved request has been provisioned.")
}

func TestDefaultPermissions(t *testing.T) {
	got := defaultPermissions(map[string][]string{"storage": {"s3:GetObject"}})

	assert.Equal(t, []string{"s3:GetObject"}, got[resolver.KindStorage])
	assert.Equal(t, provision.DefaultPermissions[resolver.KindCompute], got[resolver.KindCompute])
	assert.Len(t, provision.DefaultPermissions[resolver.KindStorage], 2)
}
