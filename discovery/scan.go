package discovery

import (
	"regexp"
	"strconv"
	"time"

	"github.com/zhubert/replink/logger"
)

// scanInterval is how often the scanner re-reads the child's output.
const scanInterval = 100 * time.Millisecond

// Port announcement patterns, in priority order. Different servers phrase the
// announcement differently ("nREPL server started on port 7888", "Started
// nREPL on port 55123", a bare "=> :port 42001"), so matching degrades from
// most to least specific. The trailing non-digit guard keeps a 4-5 digit
// window from matching inside a longer number.
var (
	nreplPortPattern = regexp.MustCompile(`(?i)nrepl.*?port\D*?(\d{4,5})(?:\D|$)`)
	portPattern      = regexp.MustCompile(`(?i)port\D*?(\d{4,5})(?:\D|$)`)
	nreplPattern     = regexp.MustCompile(`(?i)nrepl\D*?(\d{4,5})(?:\D|$)`)
	anyNumberPattern = regexp.MustCompile(`(?:^|\D)(\d{4,5})(?:\D|$)`)
)

// Process is the view of a launched child the scanner needs. *process.Handle
// satisfies it.
type Process interface {
	// Snapshot returns the output accumulated so far on each stream.
	Snapshot() (stdout, stderr string)
	// Exited reports whether the child has exited, and with what code.
	Exited() (exited bool, code int)
}

// ExtractPort applies the announcement patterns to stdout and, failing
// those, falls back to the last plausible number anywhere in the combined
// output. Returns 0, false when nothing in range is found.
func ExtractPort(stdout, combined string) (int, bool) {
	for _, pat := range []*regexp.Regexp{nreplPortPattern, portPattern, nreplPattern} {
		for _, m := range pat.FindAllStringSubmatch(stdout, -1) {
			if port, ok := validPort(m[1]); ok {
				return port, true
			}
		}
	}

	// Fallback: last in-range 4-5 digit number in everything we have seen.
	last := 0
	for _, m := range anyNumberPattern.FindAllStringSubmatch(combined, -1) {
		if port, ok := validPort(m[1]); ok {
			last = port
		}
	}
	return last, last != 0
}

func validPort(s string) (int, bool) {
	port, err := strconv.Atoi(s)
	if err != nil || port < MinPort || port > MaxPort {
		return 0, false
	}
	return port, true
}

// ScanPort watches the child's output until it announces a port, the child
// exits, or the timeout elapses. The child keeps running on success; the
// caller owns its lifetime either way.
func ScanPort(p Process, timeout time.Duration) (int, error) {
	log := logger.WithComponent("discovery")
	deadline := time.Now().Add(timeout)

	for {
		stdout, stderr := p.Snapshot()
		if port, ok := ExtractPort(stdout, stdout+"\n"+stderr); ok {
			log.Info("port found in output", "port", port)
			return port, nil
		}

		// The handle only reports exited after both streams are fully
		// drained, so a port announced in the dying breath was already
		// visible to the extraction above.
		if exited, code := p.Exited(); exited {
			log.Warn("server process exited before announcing a port", "code", code)
			return 0, &ProcessExitedError{ExitCode: code, Stdout: stdout, Stderr: stderr}
		}

		if time.Now().After(deadline) {
			log.Warn("timed out scanning for port", "timeout", timeout)
			return 0, &ScanTimeoutError{Timeout: timeout, Stdout: stdout, Stderr: stderr}
		}

		time.Sleep(scanInterval)
	}
}
