package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/agentd/internal/applog"
	"github.com/xcawolfe-amzn/agentd/internal/automemory"
	"github.com/xcawolfe-amzn/agentd/internal/config"
	"github.com/xcawolfe-amzn/agentd/internal/eventbus"
	"github.com/xcawolfe-amzn/agentd/internal/gitutil"
	"github.com/xcawolfe-amzn/agentd/internal/lock"
	"github.com/xcawolfe-amzn/agentd/internal/memory"
	"github.com/xcawolfe-amzn/agentd/internal/model"
	"github.com/xcawolfe-amzn/agentd/internal/ptyreg"
	"github.com/xcawolfe-amzn/agentd/internal/registry"
	"github.com/xcawolfe-amzn/agentd/internal/rpc"
	"github.com/xcawolfe-amzn/agentd/internal/rpcserver"
	"github.com/xcawolfe-amzn/agentd/internal/store"
	"github.com/xcawolfe-amzn/agentd/internal/transport"
	"github.com/xcawolfe-amzn/agentd/internal/util"
)

var runCmd = &cobra.Command{
	Use:     "run",
	GroupID: GroupServices,
	Short:   "Run the agentd daemon in the foreground",
	Long: `Run the agentd daemon: binds the client socket, loads every tracked
workspace's metadata, and waits for client connections. Does not
auto-connect or spawn any agent session until a client asks for one.

Stops on SIGINT/SIGTERM, closing the listener and releasing the
single-instance lock.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.RunE = runDaemon // `agentd` with no subcommand behaves like `agentd run`
}

// resolveDataDir resolves the data directory in this order: --data-dir
// flag (with ~ expanded), then XDG_DATA_HOME/agentd, then
// ~/.local/share/agentd.
func resolveDataDir() (string, error) {
	if flagDataDir != "" {
		return util.ExpandHome(flagDataDir), nil
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "agentd"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "agentd"), nil
}

func resolveToken() string {
	if flagToken != "" {
		return flagToken
	}
	return os.Getenv("AGENTD_DAEMON_TOKEN")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log := applog.New("run")

	dataDir, err := resolveDataDir()
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	release, err := lock.FlockAcquire(filepath.Join(dataDir, "agentd.lock"))
	if err != nil {
		return fmt.Errorf("acquire daemon lock (is agentd already running on this data dir?): %w", err)
	}
	defer release()

	cfg, err := config.Load(dataDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	listen := flagListen
	if listen == "" {
		listen = cfg.Network.Listen
	}

	st := store.New(dataDir)
	sessions := registry.New()
	terminals := ptyreg.New()
	bus := eventbus.New(eventbus.DefaultCapacity)
	mem := memory.New(filepath.Join(dataDir, "memory"))
	autoMem := automemory.New()
	flusher := &automemory.Flusher{
		Snapshot: gitStatusSnapshot(st),
		Memory:   mem,
	}

	d := rpc.New(st, cfg, sessions, terminals, bus, mem, autoMem, flusher, dataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runAutoMemoryWatcher(ctx, bus, st, sessions, autoMem, flusher, log)

	srv := &rpcserver.Server{
		Addr:    listen,
		Token:   resolveToken(),
		NoAuth:  flagInsecureNoAuth,
		Bus:     bus,
		Handler: d.Dispatch,
	}

	log.Printf("listening on %s (data dir %s)", listen, dataDir)
	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	log.Printf("shut down")
	return nil
}

// gitStatusSnapshot builds automemory.SnapshotBuilder: a bounded git
// status summary for the flush's workspace, when the workspace's
// auto-memory settings ask for it. The rest of the snapshot (recent
// turns) is gathered by the agent's own thread/resume, not here.
func gitStatusSnapshot(st *store.Store) automemory.SnapshotBuilder {
	return func(ctx context.Context, workspaceID, threadID string, settings model.AutoMemorySettings) (string, error) {
		if !settings.IncludeGitStatus {
			return "", nil
		}
		entries, err := st.LoadWorkspaces()
		if err != nil {
			return "", nil
		}
		var path string
		for _, e := range entries {
			if e.ID == workspaceID {
				path = e.Path
				break
			}
		}
		if path == "" {
			return "", nil
		}
		g := gitutil.NewGit(path)
		status, err := g.Status()
		if err != nil {
			return "", nil
		}
		branch, _ := g.CurrentBranch()
		summary := fmt.Sprintf("branch: %s\nclean: %v\nuntracked: %d file(s)", branch, status.Clean, len(status.Untracked))
		if max := settings.MaxSnapshotChars; max > 0 && len(summary) > max {
			summary = summary[:max]
		}
		return summary, nil
	}
}

// runAutoMemoryWatcher subscribes to the event bus and, for every
// thread/tokenUsage/updated notification, asks the controller whether
// this crosses its flush threshold; a claimed flush runs in its own
// goroutine so a slow summarization turn never blocks event fan-out.
func runAutoMemoryWatcher(ctx context.Context, bus *eventbus.Bus, st *store.Store, sessions *registry.Registry, ctrl *automemory.Controller, flusher *automemory.Flusher, log *applog.Logger) {
	sub := bus.Subscribe()
	for {
		ev, _, err := sub.Recv(ctx)
		if err != nil {
			return
		}
		if ev.Kind != model.EventAppServer {
			continue
		}
		notif, ok := ev.Message.(transport.Notification)
		if !ok || notif.Method != "thread/tokenUsage/updated" {
			continue
		}
		totalTokens, window, ok := automemory.ParseTokenUsage(notif.Params)
		if !ok {
			continue
		}
		sess, ok := sessions.Get(ev.WorkspaceID)
		if !ok {
			continue
		}
		settings := autoMemorySettingsFor(st, ev.WorkspaceID)
		if !ctrl.Observe(ev.WorkspaceID, notif.ThreadID, totalTokens, window, settings, time.Now()) {
			continue
		}
		go func(workspaceID, threadID string) {
			if err := flusher.Flush(ctx, sess, workspaceID, threadID, settings); err != nil {
				log.Printf("auto-memory flush failed for %s/%s: %v", workspaceID, threadID, err)
			}
		}(ev.WorkspaceID, notif.ThreadID)
	}
}

// autoMemorySettingsFor loads the app-wide auto-memory settings, falling
// back to spec.md's defaults if settings.json doesn't exist yet.
func autoMemorySettingsFor(st *store.Store, workspaceID string) model.AutoMemorySettings {
	settings, err := st.LoadSettings()
	if err != nil {
		return model.DefaultAutoMemorySettings()
	}
	return settings.AutoMemory
}
