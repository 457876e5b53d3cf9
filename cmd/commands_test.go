package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI 执行一次根命令，返回 stdout
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func cliEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "gateway.db"))
	t.Setenv("ROTATION_BACKEND", "sqlite")
	t.Setenv("LOG_LEVEL", "error")
}

func TestCLI_OptionsSetAndGet(t *testing.T) {
	cliEnv(t)

	out, err := runCLI(t, "options", "set", "straico_api_keys", `[" sk-straico-12345678 ", ""]`)
	require.NoError(t, err)
	assert.Contains(t, out, "saved")

	out, err = runCLI(t, "options", "get", "straico_api_keys")
	require.NoError(t, err)
	assert.Contains(t, out, "sk-***5678")
	assert.NotContains(t, out, "12345678")

	_, err = runCLI(t, "options", "get", "missing_option")
	assert.Error(t, err)

	_, err = runCLI(t, "options", "set", "review_provider", `"gemini"`)
	assert.Error(t, err)
}

func TestCLI_ReviewAndRotation(t *testing.T) {
	cliEnv(t)
	ts := httptest.NewServer(straicoOK("CLI review ok"))
	defer ts.Close()
	t.Setenv("STRAICO_ENDPOINTS", ts.URL)

	for _, args := range [][]string{
		{"options", "set", "review_provider", `"straico"`},
		{"options", "set", "straico_model", `"m"`},
		{"options", "set", "straico_api_keys", `["k0","k1"]`},
	} {
		_, err := runCLI(t, args...)
		require.NoError(t, err)
	}

	out, err := runCLI(t, "review", "--question", "q", "--answer", "a")
	require.NoError(t, err)
	assert.Equal(t, "CLI review ok\n", out)

	out, err = runCLI(t, "rotation", "show")
	require.NoError(t, err)
	assert.Regexp(t, `straico\s+1`, out)

	_, err = runCLI(t, "rotation", "reset", "straico")
	require.NoError(t, err)
	out, err = runCLI(t, "rotation", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "No rotation state recorded")

	_, err = runCLI(t, "review", "--question", "q")
	assert.Error(t, err)
}

func TestCLI_ReviewFailureShowsSafeMessage(t *testing.T) {
	cliEnv(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()
	t.Setenv("STRAICO_ENDPOINTS", ts.URL)

	_, err := runCLI(t, "options", "set", "straico_model", `"m"`)
	require.NoError(t, err)
	_, err = runCLI(t, "options", "set", "straico_api_keys", `"k0"`)
	require.NoError(t, err)

	_, err = runCLI(t, "review", "--question", "q", "--answer", "a", "--provider", "straico")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Your message request failed."))
	assert.Contains(t, err.Error(), "status=403")
}

func TestCLI_KeysEncrypt(t *testing.T) {
	cliEnv(t)

	_, err := runCLI(t, "keys", "encrypt", "sk-x")
	assert.Error(t, err)

	t.Setenv("SECRET_KEY", "0123456789abcdef")
	out, err := runCLI(t, "keys", "encrypt", "sk-x")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "enc:"))
}

func TestCLI_GatewayToken(t *testing.T) {
	cliEnv(t)

	out, err := runCLI(t, "gateway", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "disabled")

	out, err = runCLI(t, "gateway", "set-token", "gw-cli-token-1234")
	require.NoError(t, err)
	assert.Contains(t, out, "saved")

	out, err = runCLI(t, "gateway", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "gw-***1234")
	assert.NotContains(t, out, "gw-cli-token-1234")

	_, err = runCLI(t, "gateway", "set-token", "")
	require.NoError(t, err)
	out, err = runCLI(t, "gateway", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "disabled")
}
