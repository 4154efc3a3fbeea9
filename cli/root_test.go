package cli

import (
	"path/filepath"
	"testing"

	"github.com/zhubert/replink/config"
)

func setupCLI(t *testing.T, c *config.Config) {
	t.Helper()
	prevCfg, prevPort, prevHost := cfg, flagPort, flagHost
	t.Cleanup(func() { cfg, flagPort, flagHost = prevCfg, prevPort, prevHost })
	cfg = c
	flagPort = 0
	flagHost = ""
}

func TestDiscoveryOptionsFromConfig(t *testing.T) {
	setupCLI(t, &config.Config{
		StartCommand:    "lein repl :headless",
		PortFile:        true,
		Project:         "/tmp/proj",
		StartTimeoutSec: 30,
	})

	opts := discoveryOptions()
	if opts.StartCommand != "lein repl :headless" {
		t.Errorf("StartCommand = %q", opts.StartCommand)
	}
	if !opts.UsePortFile {
		t.Error("UsePortFile = false, want true")
	}
	if opts.Dir != "/tmp/proj" {
		t.Errorf("Dir = %q, want /tmp/proj", opts.Dir)
	}
	if opts.Timeout.Seconds() != 30 {
		t.Errorf("Timeout = %s, want 30s", opts.Timeout)
	}
	if got := opts.PortFile(); got != filepath.Join("/tmp/proj", ".nrepl-port") {
		t.Errorf("PortFile() = %q", got)
	}
}

func TestDiscoveryOptionsPortFlagWins(t *testing.T) {
	setupCLI(t, &config.Config{Port: 7000})
	flagPort = 8000

	opts := discoveryOptions()
	if opts.Port != 8000 {
		t.Errorf("Port = %d, want the flag value 8000", opts.Port)
	}
}

func TestServerHostFlagWins(t *testing.T) {
	setupCLI(t, &config.Config{Host: "confighost"})
	if got := serverHost(); got != "confighost" {
		t.Errorf("serverHost() = %q, want confighost", got)
	}

	flagHost = "flaghost"
	if got := serverHost(); got != "flaghost" {
		t.Errorf("serverHost() = %q, want flaghost", got)
	}
}
