// Package process launches the nREPL server as a child process and owns its
// output streams. The command is an opaque string run under the platform
// shell, so pipes and shell syntax work the same way they would in a
// terminal.
package process

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/zhubert/replink/logger"
)

// stopGracePeriod is how long Stop waits for the child to exit after a kill
// before giving up on the reap.
const stopGracePeriod = 2 * time.Second

// CommandError reports that the OS could not start the command.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("failed to start %q: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Handle owns a running child process and its accumulated output.
// The streams are drained continuously by background goroutines so the child
// never blocks on a full pipe; callers read point-in-time snapshots.
type Handle struct {
	cmd     *exec.Cmd
	command string
	log     *slog.Logger

	mu       sync.Mutex
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	exited   bool
	exitCode int

	// waitDone is closed once cmd.Wait() has returned. The monitor goroutine
	// is the sole caller of cmd.Wait(); Stop() coordinates through this
	// channel instead of calling Wait() itself.
	waitDone chan struct{}

	drainWG sync.WaitGroup
}

// shellCommand wraps an opaque command string in the platform shell.
func shellCommand(command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.Command("cmd", "/C", command)
	}
	return exec.Command("sh", "-c", command)
}

// Launch starts the command in dir (empty means inherit the current
// directory) and begins draining its output. The returned Handle is owned by
// the caller, who must eventually call Stop unless the process exits on its
// own.
func Launch(command, dir string) (*Handle, error) {
	log := logger.WithComponent("process")

	cmd := shellCommand(command)
	cmd.Dir = dir

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &CommandError{Command: command, Err: err}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		stdoutPipe.Close()
		return nil, &CommandError{Command: command, Err: err}
	}

	if err := cmd.Start(); err != nil {
		stdoutPipe.Close()
		stderrPipe.Close()
		log.Error("failed to start process", "command", command, "error", err)
		return nil, &CommandError{Command: command, Err: err}
	}

	h := &Handle{
		cmd:      cmd,
		command:  command,
		log:      log,
		waitDone: make(chan struct{}),
	}

	log.Info("process started", "pid", cmd.Process.Pid, "command", command)

	h.drainWG.Add(2)
	go h.drain(stdoutPipe, &h.stdout)
	go h.drain(stderrPipe, &h.stderr)
	go h.monitor()

	return h, nil
}

// drain copies a stream into buf until EOF, appending under the handle lock
// so Snapshot can read concurrently.
func (h *Handle) drain(r io.Reader, buf *bytes.Buffer) {
	defer h.drainWG.Done()

	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			h.mu.Lock()
			buf.Write(chunk[:n])
			h.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// monitor reaps the child. cmd.Wait() must not run before the pipes are
// fully drained, so it waits on the drain goroutines first.
func (h *Handle) monitor() {
	h.drainWG.Wait()
	err := h.cmd.Wait()

	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	h.mu.Lock()
	h.exited = true
	h.exitCode = code
	h.mu.Unlock()
	close(h.waitDone)

	h.log.Debug("process exited", "pid", h.cmd.Process.Pid, "code", code)
}

// Pid returns the child's process id.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Snapshot returns the output accumulated so far on each stream.
func (h *Handle) Snapshot() (stdout, stderr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stdout.String(), h.stderr.String()
}

// Exited reports whether the child has exited, and with what code.
// The code is meaningless while the first return is false.
func (h *Handle) Exited() (bool, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exited, h.exitCode
}

// Stop kills the child if it is still running and waits briefly for the
// reap. Best-effort: errors are logged, not returned. Safe to call more
// than once.
func (h *Handle) Stop() {
	select {
	case <-h.waitDone:
		return
	default:
	}

	h.log.Debug("stopping process", "pid", h.cmd.Process.Pid)
	if err := h.cmd.Process.Kill(); err != nil {
		h.log.Debug("kill failed (may have already exited)", "error", err)
	}

	select {
	case <-h.waitDone:
	case <-time.After(stopGracePeriod):
		h.log.Warn("process did not exit after kill", "pid", h.cmd.Process.Pid)
	}
}
