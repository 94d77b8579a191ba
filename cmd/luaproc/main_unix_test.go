//go:build linux || darwin

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type result struct {
	code   int
	err    error
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	t.Setenv("LUAPROC_CONFIG", "")

	var stdout, stderr bytes.Buffer
	code, err := Run(context.Background(), append([]string{"luaproc"}, args...), strings.NewReader(stdin), &stdout, &stderr)
	return result{code: code, err: err, stdout: stdout.String(), stderr: stderr.String()}
}

func TestExecCommand(t *testing.T) {
	res := runCLI(t, "", "exec", "/bin/sh", "-c", "printf out; printf err >&2; exit 3")
	require.NoError(t, res.err)

	assert.Equal(t, 3, res.code)
	assert.Equal(t, "out", res.stdout)
	assert.Contains(t, res.stderr, "err")
}

func TestExecCommandJSON(t *testing.T) {
	res := runCLI(t, "", "exec", "--json", "/bin/sh", "-c", `printf '"quoted"\n'; printf warn >&2`)
	require.NoError(t, res.err)
	require.True(t, gjson.Valid(res.stdout), res.stdout)

	assert.Equal(t, "\"quoted\"\n", gjson.Get(res.stdout, "stdout").String())
	assert.Equal(t, "warn", gjson.Get(res.stdout, "stderr").String())
	assert.Equal(t, int64(0), gjson.Get(res.stdout, "exitCode").Int())
	assert.Equal(t, 0, res.code)
}

func TestExecCommandWorkingDirectory(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	res := runCLI(t, "", "exec", "--cwd", dir, "pwd")
	require.NoError(t, res.err)
	assert.Equal(t, dir+"\n", res.stdout)
}

func TestExecCommandSpawnFailure(t *testing.T) {
	res := runCLI(t, "", "exec", "--json", "luaproc-definitely-missing-command")
	require.NoError(t, res.err)

	assert.Equal(t, 127, res.code)
	assert.NotEmpty(t, gjson.Get(res.stdout, "error").String())

	res = runCLI(t, "", "exec", "luaproc-definitely-missing-command")
	assert.Error(t, res.err)
	assert.Equal(t, 127, res.code)
}

func TestRunCommand(t *testing.T) {
	script := filepath.Join(t.TempDir(), "main.lua")
	require.NoError(t, os.WriteFile(script, []byte(`
local r = Process.exec("/bin/sh", {"-c", "printf " .. arg[1]})
if r.stdout ~= "hello" then error("unexpected output " .. r.stdout) end
Process.exit(tonumber(arg[2]))
`), 0o600))

	res := runCLI(t, "", "run", script, "hello", "7")
	require.NoError(t, res.err)
	assert.Equal(t, 7, res.code)
}

func TestRunCommandScriptError(t *testing.T) {
	script := filepath.Join(t.TempDir(), "bad.lua")
	require.NoError(t, os.WriteFile(script, []byte(`error("boom")`), 0o600))

	res := runCLI(t, "", "run", script)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "boom")
	assert.Equal(t, 1, res.code)
}

func TestRunCommandConfigCapabilities(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "main.lua")
	require.NoError(t, os.WriteFile(script, []byte(`if Process ~= nil then error("Process is exposed") end`), 0o600))
	cfg := filepath.Join(dir, "luaproc.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("script:\n  capabilities: []\n"), 0o600))

	res := runCLI(t, "", "--config", cfg, "run", script)
	require.NoError(t, res.err)
	assert.Equal(t, 0, res.code)
}

func TestInvalidConfig(t *testing.T) {
	res := runCLI(t, "", "--config", filepath.Join(t.TempDir(), "missing.toml"), "exec", "true")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid configuration")
	assert.Equal(t, 1, res.code)
}

func TestDebugLogsGoToStderr(t *testing.T) {
	res := runCLI(t, "", "--debug", "--log-format", "json", "exec", "true")
	require.NoError(t, res.err)

	assert.Empty(t, res.stdout)
	line, _, _ := strings.Cut(res.stderr, "\n")
	require.True(t, gjson.Valid(line), line)
	assert.Equal(t, "debug", gjson.Get(line, "level").String())
	assert.Equal(t, "dev", gjson.Get(line, "version").String())
}

func TestPtyCommand(t *testing.T) {
	res := runCLI(t, "hello\n", "pty", "/bin/sh", "-c", "read x; echo got:$x; exit 5")
	if res.code == 127 {
		t.Skipf("pty unavailable: %v", res.err)
	}
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "got:hello")
	assert.Equal(t, 5, res.code)
}

func TestSignalInterruptsRun(t *testing.T) {
	t.Setenv("LUAPROC_CONFIG", "")
	script := filepath.Join(t.TempDir(), "spin.lua")
	require.NoError(t, os.WriteFile(script, []byte(`while true do end`), 0o600))

	var stdout, stderr bytes.Buffer
	rootCmd, app := newApp([]string{"luaproc", "run", script}, strings.NewReader(""), &stdout, &stderr)

	signals := make(chan os.Signal, 1)
	time.AfterFunc(100*time.Millisecond, func() { signals <- syscall.SIGTERM })

	code, err := execute(context.Background(), rootCmd, app, signals)

	var interrupted *InterruptedError
	require.ErrorAs(t, err, &interrupted)
	assert.Equal(t, syscall.SIGTERM, interrupted.Signal)
	assert.Equal(t, 128+int(syscall.SIGTERM), code)
}
