package discovery

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zhubert/replink/logger"
)

// pollInterval is how often the poller re-checks the sentinel file.
const pollInterval = 500 * time.Millisecond

// PortFileProvider supplies the sentinel file path. It is injected at
// coordinator construction so tests and non-standard layouts can redirect it.
type PortFileProvider func() string

// DefaultPortFile returns the conventional sentinel location,
// <working-directory>/.nrepl-port.
func DefaultPortFile() string {
	wd, err := os.Getwd()
	if err != nil {
		return ".nrepl-port"
	}
	return filepath.Join(wd, ".nrepl-port")
}

// ReadPortFile reads and validates a sentinel file: the whole trimmed
// content must be a base-10 port in [MinPort, MaxPort].
func ReadPortFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, &PortFileNotFoundError{Path: path}
		}
		return 0, err
	}

	content := strings.TrimSpace(string(data))
	port, err := strconv.Atoi(content)
	if err != nil {
		return 0, &PortParseError{Path: path, Content: content}
	}
	if port < MinPort || port > MaxPort {
		return 0, &PortRangeError{Path: path, Port: port}
	}
	return port, nil
}

// PollPortFile waits for the sentinel file to exist, be fresh, and hold a
// valid port. Freshness means the file's mtime is at or after since — a file
// left over from a previous server run is ignored until the current run
// rewrites it. Pass the zero time to accept any existing file.
//
// A read or parse failure while polling counts as "not ready yet" (the
// server may be mid-write), not as a hard error; only the deadline ends the
// wait.
func PollPortFile(path string, timeout time.Duration, since time.Time) (int, error) {
	log := logger.WithComponent("discovery")
	deadline := time.Now().Add(timeout)

	// Filesystem mtimes can be coarser than the wall clock (1s granularity
	// on some filesystems), so round the anchor down to the whole second.
	if !since.IsZero() {
		since = since.Truncate(time.Second)
	}

	for {
		if info, err := os.Stat(path); err == nil {
			fresh := since.IsZero() || !info.ModTime().Before(since)
			if fresh {
				port, err := ReadPortFile(path)
				if err == nil {
					log.Info("port file ready", "path", path, "port", port)
					return port, nil
				}
				log.Debug("port file not readable yet, retrying", "path", path, "error", err)
			} else {
				log.Debug("ignoring stale port file", "path", path, "mtime", info.ModTime(), "since", since)
			}
		}

		if time.Now().After(deadline) {
			log.Warn("timed out waiting for port file", "path", path, "timeout", timeout)
			return 0, &PortFileTimeoutError{Path: path, Timeout: timeout}
		}

		time.Sleep(pollInterval)
	}
}
