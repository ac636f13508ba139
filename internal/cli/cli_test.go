package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redhat-data-and-ai/userpool/pkg/config"
	"github.com/redhat-data-and-ai/userpool/pkg/store"
	"github.com/redhat-data-and-ai/userpool/pkg/userpool"
)

func writeConfig(t *testing.T, backend string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`
store:
  backend: %s
  data_dir: %s
pool:
  username_attributes: [email]
app:
  log:
    level: error
`, backend, dataDir)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path, dataDir
}

func seed(t *testing.T, dataDir string, users ...userpool.User) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	p, err := userpool.New(context.Background(), userpool.Options{
		UsernameAttributes: []userpool.UsernameAttribute{userpool.AttributeEmail},
	}, store.NewFileFactory(dataDir))
	require.NoError(t, err)
	for _, u := range users {
		require.NoError(t, p.SaveUser(context.Background(), u))
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "userpool", cmd.Use)

	for _, path := range [][]string{{"serve"}, {"users"}, {"users", "get"}, {"users", "list"}, {"users", "delete"}} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestUsersGet(t *testing.T) {
	cfgPath, dataDir := writeConfig(t, store.BackendFile)
	seed(t, dataDir, userpool.User{
		Username:   "jane",
		UserStatus: userpool.UserStatusConfirmed,
		Attributes: []userpool.Attribute{{Name: "email", Value: "jane@example.com"}},
		Enabled:    true,
	})

	t.Run("json by alias", func(t *testing.T) {
		out, err := execute(t, "--config", cfgPath, "users", "get", "jane@example.com")
		require.NoError(t, err)

		var u userpool.User
		require.NoError(t, json.Unmarshal([]byte(out), &u))
		assert.Equal(t, "jane", u.Username)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := execute(t, "--config", cfgPath, "users", "get", "jane", "-o", "yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "Username: jane")
		assert.Contains(t, out, "UserStatus: CONFIRMED")
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := execute(t, "--config", cfgPath, "users", "get", "nobody")
		assert.EqualError(t, err, `user "nobody" not found`)
	})

	t.Run("invalid output", func(t *testing.T) {
		_, err := execute(t, "--config", cfgPath, "users", "get", "jane", "-o", "xml")
		assert.ErrorContains(t, err, "invalid output")
	})
}

func TestUsersListAndDelete(t *testing.T) {
	cfgPath, dataDir := writeConfig(t, store.BackendFile)
	seed(t, dataDir, userpool.User{Username: "b"}, userpool.User{Username: "a"})

	out, err := execute(t, "--config", cfgPath, "users", "list")
	require.NoError(t, err)
	var users []userpool.User
	require.NoError(t, json.Unmarshal([]byte(out), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "a", users[0].Username)

	out, err = execute(t, "--config", cfgPath, "users", "delete", "a")
	require.NoError(t, err)
	assert.Equal(t, "deleted a\n", out)

	out, err = execute(t, "--config", cfgPath, "users", "list")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &users))
	assert.Len(t, users, 1)
}

func TestNewDataStoreFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("file backend creates the data dir", func(t *testing.T) {
		dataDir := filepath.Join(t.TempDir(), "nested", "data")
		cfg := &config.AppConfig{Store: config.StoreConfig{Backend: store.BackendFile, DataDir: dataDir}}

		create, closeFn, err := newDataStoreFactory(ctx, cfg)
		require.NoError(t, err)
		defer func() { _ = closeFn() }()

		ds, err := create(ctx, "local", nil)
		require.NoError(t, err)
		assert.Equal(t, "local", ds.Name())
		assert.FileExists(t, filepath.Join(dataDir, "local.json"))
	})

	t.Run("cache backend", func(t *testing.T) {
		cfg := &config.AppConfig{Store: config.StoreConfig{Backend: store.BackendCache}}

		create, closeFn, err := newDataStoreFactory(ctx, cfg)
		require.NoError(t, err)
		defer func() { _ = closeFn() }()

		_, err = create(ctx, "local", nil)
		assert.NoError(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := &config.AppConfig{Store: config.StoreConfig{Backend: "tape"}}
		_, _, err := newDataStoreFactory(ctx, cfg)
		assert.Error(t, err)
	})
}

func TestOpenPool_InvalidAttributes(t *testing.T) {
	cfg := &config.AppConfig{
		Store: config.StoreConfig{Backend: store.BackendCache},
		Pool:  config.PoolConfig{ID: "local", UsernameAttributes: []string{"nickname"}},
	}
	_, _, err := openPool(context.Background(), cfg)
	assert.ErrorIs(t, err, userpool.ErrInvalidOptions)
}
