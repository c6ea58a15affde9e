package cmd

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"

	expect "github.com/Netflix/go-expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const (
	keyDown  = "\x1b[B"
	keyEnter = "\r"
	keyEsc   = "\x1b"
)

// buildRinglist compiles the ringlist binary into a temp directory.
func buildRinglist(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	root := filepath.Join(filepath.Dir(file), "..", "..")

	bin := filepath.Join(t.TempDir(), "ringlist")
	build := exec.Command("go", "build", "-o", bin, "./cmd/ringlist")
	build.Dir = root
	build.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := build.CombinedOutput()
	require.NoError(t, err, "go build failed:\n%s", out)
	return bin
}

// startBrowser runs `ringlist browse` with a pseudo-terminal as its
// controlling terminal. The result printed on stdout lands in the buffer.
func startBrowser(t *testing.T, bin string, args ...string) (*expect.Console, *exec.Cmd, *bytes.Buffer) {
	t.Helper()

	console, err := expect.NewConsole(expect.WithDefaultTimeout(5 * time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { console.Close() })

	ws := &unix.Winsize{Row: 24, Col: 80}
	require.NoError(t, unix.IoctlSetWinsize(int(console.Tty().Fd()), unix.TIOCSWINSZ, ws)) //nolint:gosec // G115: fd fits in int

	var stdout bytes.Buffer
	cmd := exec.Command(bin, append([]string{"browse", "--local"}, args...)...) //nolint:gosec // G204: test binary
	cmd.Stdin = console.Tty()
	cmd.Stdout = &stdout
	cmd.Stderr = console.Tty()
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true, Ctty: 0}
	require.NoError(t, cmd.Start())
	t.Cleanup(func() { _ = cmd.Process.Kill() })

	return console, cmd, &stdout
}

func waitExit(t *testing.T, cmd *exec.Cmd) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("browser did not exit")
		return nil
	}
}

func TestBrowse_SelectThirdItem(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping terminal test in short mode")
	}
	setupEnv(t)
	_, err := run(t, "", "seed", "--count", "25")
	require.NoError(t, err)
	bin := buildRinglist(t)

	console, cmd, stdout := startBrowser(t, bin)

	_, err = console.ExpectString("1/25")
	require.NoError(t, err)

	_, err = console.Send(keyDown)
	require.NoError(t, err)
	_, err = console.ExpectString("2/25")
	require.NoError(t, err)
	_, err = console.Send(keyDown)
	require.NoError(t, err)
	_, err = console.ExpectString("3/25")
	require.NoError(t, err)

	_, err = console.Send(keyEnter)
	require.NoError(t, err)

	require.NoError(t, waitExit(t, cmd))
	assert.Equal(t, "item 03\n", stdout.String())
}

func TestBrowse_Cancel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping terminal test in short mode")
	}
	setupEnv(t)
	_, err := run(t, "", "seed", "--count", "5")
	require.NoError(t, err)
	bin := buildRinglist(t)

	console, cmd, stdout := startBrowser(t, bin, "--query", "item 4")

	_, err = console.ExpectString("1/1")
	require.NoError(t, err)
	_, err = console.Send(keyEsc)
	require.NoError(t, err)

	err = waitExit(t, cmd)
	require.Error(t, err)
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Empty(t, strings.TrimSpace(stdout.String()))
}
