// Package discovery locates the TCP port of an nREPL server, optionally
// launching the server first. Three independent channels are supported —
// an explicit port, the server's stdout announcement, and the .nrepl-port
// sentinel file — chosen in a strict priority order.
package discovery

import (
	"os"
	"time"

	"github.com/zhubert/replink/logger"
	"github.com/zhubert/replink/process"
)

// Launcher starts the server command. Injected so coordinator tests can
// observe or fake launches; defaults to process.Launch.
type Launcher func(command, dir string) (*process.Handle, error)

// Options selects a discovery strategy. Strategy priority:
//
//  1. Port set → use it, no side effects.
//  2. StartCommand + UsePortFile → coordinated: delete stale sentinel,
//     launch, poll for a file written after launch.
//  3. StartCommand + ParseStdout → launch, scan output.
//  4. UsePortFile alone → poll an externally managed server's sentinel.
//  5. StartCommand alone → launch blind; the caller must know the port.
//  6. Nothing set → NoPortConfiguredError.
type Options struct {
	Port         int
	StartCommand string
	ParseStdout  bool
	UsePortFile  bool

	// Dir is the working directory for the launched server.
	Dir string

	// Timeout bounds the whole discovery wait (scan or poll).
	Timeout time.Duration

	// PortFile overrides the sentinel location. Nil means DefaultPortFile.
	PortFile PortFileProvider

	// Launch overrides how the server command is started. Nil means
	// process.Launch.
	Launch Launcher
}

// Result is a successful discovery. Handle is non-nil when a server process
// was launched; the caller owns it and must Stop it on shutdown. Port is 0
// only for strategy 5 (launch without discovery).
type Result struct {
	Port   int
	Handle *process.Handle
}

// Discover runs the selected strategy. In coordinated mode a failure after
// launch stops the child best-effort before the error is returned, so no
// orphan is left behind.
func Discover(opts Options) (*Result, error) {
	log := logger.WithComponent("discovery")

	portFile := opts.PortFile
	if portFile == nil {
		portFile = DefaultPortFile
	}
	launch := opts.Launch
	if launch == nil {
		launch = process.Launch
	}

	switch {
	case opts.Port != 0:
		log.Debug("using explicit port", "port", opts.Port)
		return &Result{Port: opts.Port}, nil

	case opts.StartCommand != "" && opts.UsePortFile:
		// Coordinated mode. The delete must precede the launch, and the
		// freshness anchor must precede the poll — otherwise a file from a
		// previous run could be mistaken for this one's.
		path := portFile()
		if err := os.Remove(path); err == nil {
			log.Info("removed stale port file", "path", path)
		} else if !os.IsNotExist(err) {
			log.Warn("could not remove stale port file", "path", path, "error", err)
		}

		launchTime := time.Now()
		h, err := launch(opts.StartCommand, opts.Dir)
		if err != nil {
			return nil, err
		}

		port, err := PollPortFile(path, opts.Timeout, launchTime)
		if err != nil {
			h.Stop()
			return nil, err
		}
		return &Result{Port: port, Handle: h}, nil

	case opts.StartCommand != "" && opts.ParseStdout:
		h, err := launch(opts.StartCommand, opts.Dir)
		if err != nil {
			return nil, err
		}

		port, err := ScanPort(h, opts.Timeout)
		if err != nil {
			h.Stop()
			return nil, err
		}
		return &Result{Port: port, Handle: h}, nil

	case opts.UsePortFile:
		// External server: any existing valid file is acceptable.
		port, err := PollPortFile(portFile(), opts.Timeout, time.Time{})
		if err != nil {
			return nil, err
		}
		return &Result{Port: port}, nil

	case opts.StartCommand != "":
		// Launch with no discovery channel. Legacy setups pass a fixed
		// port separately; without one the connection setup fails later
		// with NoPortConfiguredError.
		log.Debug("launching without port discovery", "command", opts.StartCommand)
		h, err := launch(opts.StartCommand, opts.Dir)
		if err != nil {
			return nil, err
		}
		return &Result{Handle: h}, nil

	default:
		return nil, &NoPortConfiguredError{}
	}
}
