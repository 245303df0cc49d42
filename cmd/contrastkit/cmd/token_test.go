package cmd_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contrastkit/contrastkit/cmd/contrastkit/cmd"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := cmd.NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func TestToken_MintAndVerify(t *testing.T) {
	cfg := writeConfig(t, "session:\n  secret: cli-secret\n")

	out, err := run(t, "--config", cfg, "token", "mint", "--user-id", "u1", "--email", "ada@example.com", "--site-id", "abc")
	require.NoError(t, err)

	var minted struct {
		SessionToken string `json:"sessionToken"`
		Exp          int64  `json:"exp"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &minted))
	assert.NotEmpty(t, minted.SessionToken)
	assert.InDelta(t, time.Now().Add(24*time.Hour).Unix(), minted.Exp, 2)

	out, err = run(t, "--config", cfg, "token", "verify", minted.SessionToken)
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "u1"`)
	assert.Contains(t, out, `"siteId": "abc"`)
}

func TestToken_VerifyWrongSecret(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t, "session:\n  secret: one\n"), "token", "mint", "--user-id", "u1")
	require.NoError(t, err)

	var minted struct {
		SessionToken string `json:"sessionToken"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &minted))

	_, err = run(t, "--config", writeConfig(t, "session:\n  secret: two\n"), "token", "verify", minted.SessionToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid signature")
}

func TestToken_MintRequiresUser(t *testing.T) {
	_, err := run(t, "--config", writeConfig(t, "session:\n  secret: s\n"), "token", "mint")

	assert.EqualError(t, err, "--user-id is required")
}
