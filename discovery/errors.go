package discovery

import (
	"fmt"
	"time"
)

// Port bounds accepted on every discovery path. Anything below 1024 is a
// privileged port no nREPL server would announce; anything above 65535 is
// not a port.
const (
	MinPort = 1024
	MaxPort = 65535
)

// ScanTimeoutError reports that no valid port appeared in the child's output
// before the deadline. Carries the full accumulated output for diagnostics.
type ScanTimeoutError struct {
	Timeout time.Duration
	Stdout  string
	Stderr  string
}

func (e *ScanTimeoutError) Error() string {
	return fmt.Sprintf("no nREPL port found in output after %s (stdout: %q, stderr: %q)", e.Timeout, e.Stdout, e.Stderr)
}

// ProcessExitedError reports that the child exited before announcing a port.
type ProcessExitedError struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ProcessExitedError) Error() string {
	return fmt.Sprintf("server process exited with code %d before announcing a port (stdout: %q, stderr: %q)", e.ExitCode, e.Stdout, e.Stderr)
}

// PortFileNotFoundError reports a missing sentinel file.
type PortFileNotFoundError struct {
	Path string
}

func (e *PortFileNotFoundError) Error() string {
	return fmt.Sprintf("port file %s does not exist", e.Path)
}

// PortParseError reports sentinel file content that is not an integer.
type PortParseError struct {
	Path    string
	Content string
}

func (e *PortParseError) Error() string {
	return fmt.Sprintf("port file %s does not contain a port number: %q", e.Path, e.Content)
}

// PortRangeError reports a parsed port outside the valid range.
type PortRangeError struct {
	Path string
	Port int
}

func (e *PortRangeError) Error() string {
	return fmt.Sprintf("port file %s contains out-of-range port %d (valid: %d-%d)", e.Path, e.Port, MinPort, MaxPort)
}

// PortFileTimeoutError reports that the sentinel file never became fresh and
// readable before the deadline.
type PortFileTimeoutError struct {
	Path    string
	Timeout time.Duration
}

func (e *PortFileTimeoutError) Error() string {
	return fmt.Sprintf("port file %s did not appear within %s", e.Path, e.Timeout)
}

// NoPortConfiguredError reports that neither an explicit port nor any
// discovery strategy was configured.
type NoPortConfiguredError struct{}

func (e *NoPortConfiguredError) Error() string {
	return "no port specified and no discovery strategy configured (set port, start_command with parse_stdout or port_file, or port_file alone)"
}
