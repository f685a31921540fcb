package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/readaid/internal/config"
	"github.com/verte-zerg/readaid/internal/inference"
	"github.com/verte-zerg/readaid/internal/logging"
	"github.com/verte-zerg/readaid/internal/monitor"
	"github.com/verte-zerg/readaid/internal/server"
	"github.com/verte-zerg/readaid/internal/session"
	"github.com/verte-zerg/readaid/internal/source"
	"github.com/verte-zerg/readaid/internal/stats"
	"github.com/verte-zerg/readaid/internal/store"
)

const (
	defaultReplaySmooth = 3
	defaultPruneAge     = 30 * 24 * time.Hour
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept reading sessions over WebSocket",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", server.DefaultAddr, "listen address")
	cmd.Flags().StringSliceVar(&serveOrigins, "origin", nil, "allowed WebSocket origin (repeatable)")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{Level: s.logLevel, File: s.logFile, Console: true}, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}
	defer closeLogger(logger)

	opts, cleanup, err := buildSessionOptions(s, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(server.Config{Addr: s.serverAddr, Origins: s.origins}, opts, logger.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.regionsPath != "" {
		watcher, err := source.NewRegionWatcher(s.regionsPath, logger.Logger)
		if err != nil {
			return err
		}
		defer closeWatcher(watcher)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case snap := <-watcher.Snapshots():
					srv.SetRegions(snap)
				}
			}
		}()
	}

	return srv.ListenAndServe(ctx)
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Replay a recorded JSONL session and summarize it",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplayCmd,
	}
	cmd.Flags().BoolVar(&replayMonitor, "monitor", false, "show the live terminal monitor")
	cmd.Flags().Float64Var(&replaySpeed, "speed", 0, "playback speed relative to recorded time (0 = as fast as possible, 1 with --monitor)")
	cmd.Flags().IntVar(&replaySmooth, "smooth", defaultReplaySmooth, "moving average window for the confusion curve")
	return cmd
}

func runReplayCmd(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if replaySpeed < 0 {
		return fmt.Errorf("--speed must be >= 0")
	}
	speed := replaySpeed
	if replayMonitor && !cmd.Flags().Changed("speed") {
		speed = 1
	}

	// The monitor owns the terminal, so logs go to a file only.
	var console io.Writer = os.Stderr
	logPath := s.logFile
	if replayMonitor {
		console = nil
		if logPath == "" {
			logPath = config.DefaultLogPath()
		}
	}
	logger, err := logging.New(logging.Config{Level: s.logLevel, File: logPath, Console: true}, console)
	if err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}
	defer closeLogger(logger)

	opts, cleanup, err := buildSessionOptions(s, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	sess := session.New(opts)
	defer sess.Close()

	if s.regionsPath != "" {
		watcher, err := source.NewRegionWatcher(s.regionsPath, logger.Logger)
		if err != nil {
			return err
		}
		defer closeWatcher(watcher)
		sess.SetRegionUpdates(watcher.Snapshots())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src := source.NewReplay(args[0], speed)
	if replayMonitor {
		err = runWithMonitor(ctx, sess, src)
	} else {
		sess.Subscribe(logUpdates(logger.Component("replay")))
		err = sess.Run(ctx, src)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("replay failed: %w", err)
	}

	out := cmd.OutOrStdout()
	report := stats.BuildReport(sess.ID(), sess.Summary(), sess.Probabilities())
	if err := stats.RenderSummary(out, report); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderRegionTable(out, report.Regions); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderConfusionCurve(out, report.Probabilities, replaySmooth, 0); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func runWithMonitor(ctx context.Context, sess *session.Session, src source.Source) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := monitor.NewModel(sess.ID(), sess.RequestDismiss)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	sess.Subscribe(func(u session.Update) {
		program.Send(monitor.UpdateMsg(u))
	})

	runErr := make(chan error, 1)
	go func() {
		err := sess.Run(ctx, src)
		program.Send(monitor.DoneMsg{Err: err})
		runErr <- err
	}()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		cancel()
		<-runErr
		return fmt.Errorf("failed to run monitor: %w", err)
	}
	cancel()
	return <-runErr
}

func logUpdates(logger zerolog.Logger) session.Observer {
	return func(u session.Update) {
		ev := logger.Info().
			Float64("t_s", float64(u.At)/1000).
			Str("state", u.State.Kind.String()).
			Str("emotion", u.Emotion).
			Str("region", u.RegionID).
			Bool("pending", u.Pending)
		if u.State.Explanation != "" {
			ev = ev.Str("explanation", u.State.Explanation)
		}
		ev.Msg("assistance")
	}
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the analysis result cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every cached result",
		Args:  cobra.NoArgs,
		RunE:  runCacheClearCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show cache size and hit count",
		Args:  cobra.NoArgs,
		RunE:  runCacheInfoCmd,
	})
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete results older than --older-than",
		Args:  cobra.NoArgs,
		RunE:  runCachePruneCmd,
	}
	prune.Flags().DurationVar(&cachePruneAge, "older-than", defaultPruneAge, "age threshold")
	cmd.AddCommand(prune)
	return cmd
}

func openCache(cmd *cobra.Command) (*store.Store, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(s.cachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return st, nil
}

func runCacheClearCmd(cmd *cobra.Command, _ []string) error {
	st, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer closeStore(st)
	removed, err := st.Clear(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached results.\n", removed); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func runCacheInfoCmd(cmd *cobra.Command, _ []string) error {
	st, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer closeStore(st)
	info, err := st.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Entries: %d\nHits: %d\n", info.Entries, info.Hits); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func runCachePruneCmd(cmd *cobra.Command, _ []string) error {
	if cachePruneAge <= 0 {
		return fmt.Errorf("--older-than must be > 0")
	}
	st, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer closeStore(st)
	removed, err := st.Prune(cmd.Context(), time.Now().Add(-cachePruneAge))
	if err != nil {
		return fmt.Errorf("failed to prune cache: %w", err)
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached results.\n", removed); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// buildSessionOptions wires the analyzer, optional cache and initial regions.
// The returned cleanup releases the cache.
func buildSessionOptions(s settings, logger *logging.Logger) (session.Options, func(), error) {
	opts := session.Options{
		Config: s.session,
		Analyzer: inference.NewClient(inference.ClientConfig{
			BaseURL: s.session.ServiceURL,
			Timeout: s.session.ServiceTimeout,
		}, logger.Logger),
		Logger: logger.Logger,
	}
	if s.regionsPath != "" {
		snap, err := source.LoadRegions(s.regionsPath)
		if err != nil {
			return session.Options{}, nil, err
		}
		opts.Regions = snap
	}
	cleanup := func() {}
	if s.session.CacheEnabled {
		st, err := store.Open(s.cachePath)
		if err != nil {
			return session.Options{}, nil, fmt.Errorf("failed to open cache: %w", err)
		}
		opts.Cache = st
		cleanup = func() { closeStore(st) }
	}
	return opts, cleanup, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close cache: %v\n", cerr)
	}
}

func closeWatcher(w *source.RegionWatcher) {
	if cerr := w.Close(); cerr != nil {
		logErrf("failed to close region watcher: %v\n", cerr)
	}
}

func closeLogger(l *logging.Logger) {
	if cerr := l.Close(); cerr != nil {
		logErrf("failed to close log file: %v\n", cerr)
	}
}
