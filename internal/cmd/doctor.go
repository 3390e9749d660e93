package cmd

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/agentd/internal/config"
	"github.com/xcawolfe-amzn/agentd/internal/lock"
	"github.com/xcawolfe-amzn/agentd/internal/style"
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: GroupDiag,
	Short:   "Run health checks against a data dir and daemon",
	Long: `Run diagnostic checks on an agentd data directory:

  - data-dir-exists      Check the data directory exists
  - lock-held            Check whether a daemon currently holds the lock
  - listener-reachable   Check whether the configured socket accepts connections
  - workspaces-readable  Check workspaces.json parses

Exits non-zero if any check fails.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type doctorCheck struct {
	name string
	run  func(dataDir string, cfg config.StaticConfig) (ok bool, detail string)
}

var doctorChecks = []doctorCheck{
	{"data-dir-exists", checkDataDirExists},
	{"lock-held", checkLockHeld},
	{"listener-reachable", checkListenerReachable},
	{"workspaces-readable", checkWorkspacesReadable},
}

func runDoctor(cmd *cobra.Command, args []string) error {
	dataDir, err := resolveDataDir()
	if err != nil {
		return err
	}
	cfg, err := config.Load(dataDir)
	if err != nil {
		return err
	}
	listen := flagListen
	if listen == "" {
		listen = cfg.Network.Listen
	}
	cfg.Network.Listen = listen

	failed := 0
	for _, c := range doctorChecks {
		ok, detail := c.run(dataDir, cfg)
		if ok {
			fmt.Printf("%s %-22s %s\n", style.Success.Render("✓"), c.name, detail)
		} else {
			failed++
			fmt.Printf("%s %-22s %s\n", style.Error.Render("✗"), c.name, detail)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func checkDataDirExists(dataDir string, cfg config.StaticConfig) (bool, string) {
	info, err := os.Stat(dataDir)
	if err != nil {
		return false, dataDir + " does not exist"
	}
	if !info.IsDir() {
		return false, dataDir + " is not a directory"
	}
	return true, dataDir
}

func checkLockHeld(dataDir string, cfg config.StaticConfig) (bool, string) {
	release, held, err := lock.TryFlockAcquire(filepath.Join(dataDir, "agentd.lock"))
	if err != nil {
		return false, fmt.Sprintf("error checking lock: %v", err)
	}
	if held {
		release()
		return false, "no daemon currently running on this data dir"
	}
	return true, "a daemon holds the lock"
}

func checkListenerReachable(dataDir string, cfg config.StaticConfig) (bool, string) {
	conn, err := net.DialTimeout("tcp", cfg.Network.Listen, 2*time.Second)
	if err != nil {
		return false, fmt.Sprintf("%s: %v", cfg.Network.Listen, err)
	}
	_ = conn.Close()
	return true, cfg.Network.Listen
}

func checkWorkspacesReadable(dataDir string, cfg config.StaticConfig) (bool, string) {
	path := filepath.Join(dataDir, "workspaces.json")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return true, "no workspaces.json yet"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err.Error()
	}
	if len(data) == 0 {
		return true, "empty"
	}
	if !json.Valid(data) {
		return false, "workspaces.json is not valid JSON"
	}
	return true, fmt.Sprintf("%d bytes", len(data))
}
