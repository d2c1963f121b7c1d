package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/urpmd/urpmd/internal/collab/defaultdiscovery"
	"github.com/urpmd/urpmd/internal/collab/defaultdownloader"
	"github.com/urpmd/urpmd/internal/collab/defaultresolver"
	"github.com/urpmd/urpmd/internal/collab/defaultsync"
	"github.com/urpmd/urpmd/internal/config"
	"github.com/urpmd/urpmd/internal/freshness"
	"github.com/urpmd/urpmd/internal/idle"
	"github.com/urpmd/urpmd/internal/log"
	"github.com/urpmd/urpmd/internal/metrics"
	"github.com/urpmd/urpmd/internal/predownload"
	"github.com/urpmd/urpmd/internal/query"
	"github.com/urpmd/urpmd/internal/scheduler"
	"github.com/urpmd/urpmd/internal/store"
)

// reexecEnvVar marks a process as the detached child of a daemonizing
// parent, so a second run of main() doesn't try to daemonize again.
const reexecEnvVar = "URPMD_DAEMONIZED"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the urpmd daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		if foreground, _ := cmd.Flags().GetBool("foreground"); foreground {
			cfg.Foreground = true
		}
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			cfg.Verbose = true
		}
		if dev, _ := cmd.Flags().GetBool("dev"); dev {
			cfg.ApplyDevMode()
		}
		if host, _ := cmd.Flags().GetString("host"); host != "" {
			cfg.Host = host
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Port = port
		}

		if !cfg.Foreground && os.Getenv(reexecEnvVar) == "" {
			return daemonize(cfg)
		}

		level := log.InfoLevel
		if cfg.Verbose {
			level = log.DebugLevel
		}
		log.Init(log.Config{
			Level:      level,
			JSONOutput: !cfg.Foreground,
		})

		return runDaemon(cfg)
	},
}

func init() {
	runCmd.Flags().BoolP("foreground", "f", false, "Do not daemonize; run attached to the terminal")
	runCmd.Flags().StringP("host", "H", "", "Query surface listen address (overrides config)")
	runCmd.Flags().IntP("port", "p", 0, "Query surface listen port (overrides config)")
	runCmd.Flags().BoolP("verbose", "v", false, "Debug-level logging")
	runCmd.Flags().Bool("dev", false, "Development mode: foreground, verbose, user-directory paths")
}

// daemonize detaches the process from the controlling terminal by re-
// executing itself in a new session (setsid) with stdio redirected to
// /dev/null, then writes the PID file and exits the parent. A literal
// fork(2)+fork(2) double-fork is not expressible safely once the Go
// runtime has started extra threads, so re-exec-under-setsid stands in
// for it: by the time the PID file is written the child is already a
// session leader detached from the terminal, which is the property that matters
// for a PID file meant to name a safely-signalable background process.
func daemonize(cfg *config.Config) error {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("daemonize: open /dev/null: %w", err)
	}
	defer devNull.Close()

	child := &os.ProcAttr{
		Env:   append(os.Environ(), reexecEnvVar+"=1"),
		Files: []*os.File{devNull, devNull, devNull},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	}

	proc, err := os.StartProcess(os.Args[0], os.Args, child)
	if err != nil {
		return fmt.Errorf("daemonize: %w", err)
	}

	if err := os.MkdirAll(parentDir(cfg.PIDFile), 0755); err == nil {
		_ = os.WriteFile(cfg.PIDFile, []byte(strconv.Itoa(proc.Pid)), 0644)
	}

	fmt.Printf("urpmd started, pid %d\n", proc.Pid)
	return nil
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func runDaemon(cfg *config.Config) error {
	startTime := time.Now()
	baseLog := log.Logger

	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return fmt.Errorf("create base dir: %w", err)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	medias, err := db.ListMedia()
	if err != nil {
		return fmt.Errorf("list media: %w", err)
	}
	mediaNames := make([]string, 0, len(medias))
	for _, m := range medias {
		mediaNames = append(mediaNames, m.Name)
	}

	syncer := defaultsync.New()
	resolver := defaultresolver.New(defaultresolver.Installed{})
	downloader := defaultdownloader.New(cfg.BaseDir)
	discovery := defaultdiscovery.New(cfg.Host, cfg.Port, mediaNames)
	discovery.BroadcastPort = cfg.DiscoveryPort

	idleProber := idle.New()
	idleProber.MaxCPULoad = cfg.MaxCPULoad
	idleProber.MaxNetKBps = cfg.MaxNetKBps

	freshnessProber := freshness.New(db, cfg.BaseDir, syncer, 4, log.WithComponent("freshness"))
	predownloadEngine := predownload.New(db, cfg.BaseDir, resolver, downloader, idleProber, runtimeArch(), cfg.MaxPredownloadBytes, cfg.CacheMaxAge, log.WithComponent("predownload"))

	queryServer := query.New(db, cfg.BaseDir, cfg.DBPath, cfg.Host, cfg.Port, discovery, resolver, syncer, log.WithComponent("query"), startTime)
	queryServer.Arch = runtimeArch()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := discovery.Start(ctx); err != nil {
		baseLog.Warn().Err(err).Msg("peer discovery did not start")
	}
	defer discovery.Stop()

	sched := scheduler.New(
		cfg.TickInterval,
		cfg.MetadataInterval,
		cfg.PredownloadInterval,
		func(ctx context.Context) error {
			results, err := freshnessProber.CheckAll(ctx)
			if err != nil {
				return err
			}
			queryServer.NoteRefresh(time.Now())
			for _, r := range results {
				if r.Err != nil {
					baseLog.Warn().Err(r.Err).Str("media", r.Media).Msg("freshness check failed")
				}
			}
			return nil
		},
		func(ctx context.Context) error {
			result, err := predownloadEngine.Run(ctx)
			if err != nil {
				return err
			}
			if result.Skipped {
				baseLog.Debug().Str("reason", result.SkipReason).Msg("predownload skipped")
			}
			return nil
		},
		log.WithComponent("scheduler"),
	)
	go sched.Run(ctx)

	listenAddr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: queryServer.Mux(),
	}
	serveErr := make(chan error, 1)
	go func() {
		baseLog.Info().Str("addr", listenAddr).Msg("query surface listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	metrics.MediaCount.Set(float64(len(medias)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				baseLog.Info().Msg("SIGHUP received, forcing refresh of all enabled media")
				synced, errs := queryServer.RefreshAll(ctx)
				baseLog.Info().Int("synced", synced).Int("errors", len(errs)).Msg("forced refresh complete")
				continue
			default:
				baseLog.Info().Str("signal", sig.String()).Msg("shutting down")
			}
		case err := <-serveErr:
			baseLog.Error().Err(err).Msg("query surface stopped unexpectedly")
		}
		break
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if cfg.PIDFile != "" {
		_ = os.Remove(cfg.PIDFile)
	}
	return nil
}

// runtimeArch maps the Go runtime architecture to the RPM arch convention
// used throughout the store and resolver (x86_64, not amd64).
func runtimeArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i586"
	default:
		return runtime.GOARCH
	}
}
