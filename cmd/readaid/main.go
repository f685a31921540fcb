// Package main provides the CLI entrypoint for readaid.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/readaid/internal/config"
	"github.com/verte-zerg/readaid/internal/fusion"
	"github.com/verte-zerg/readaid/internal/gaze"
	"github.com/verte-zerg/readaid/internal/inference"
	"github.com/verte-zerg/readaid/internal/model"
	"github.com/verte-zerg/readaid/internal/server"
)

const (
	defaultServiceURL = "http://localhost:8000"
	defaultFallback   = string(model.FallbackNone)
	defaultLogLevel   = "info"
)

var (
	sessionWindowMs       int64
	fusionFaceStalenessMs int64
	serviceURL            string
	serviceTimeout        time.Duration
	serviceFallback       string
	serviceSendFaceFrames bool
	cacheEnabled          bool
	cachePath             string
	logLevel              string
	logFile               string
	regionsPath           string

	serveAddr    string
	serveOrigins []string

	replayMonitor bool
	replaySpeed   float64
	replaySmooth  int

	cachePruneAge time.Duration
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "readaid",
		Short:         "Reading-comprehension assistant driven by gaze",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.Int64Var(&sessionWindowMs, "window-ms", gaze.DefaultWindowMs, "gaze history window in milliseconds")
	flags.Int64Var(&fusionFaceStalenessMs, "face-staleness-ms", fusion.DefaultFaceStalenessMs, "max face signal age in milliseconds (0 = unbounded)")
	flags.StringVar(&serviceURL, "service-url", defaultServiceURL, "analysis service base URL")
	flags.DurationVar(&serviceTimeout, "service-timeout", inference.DefaultTimeout, "analysis request timeout")
	flags.StringVar(&serviceFallback, "fallback", defaultFallback, "behavior on analysis failure: none, cache, canned")
	flags.BoolVar(&serviceSendFaceFrames, "send-face-frames", false, "attach face landmark frames to analysis requests")
	flags.BoolVar(&cacheEnabled, "cache", true, "cache analysis results in SQLite")
	flags.StringVar(&cachePath, "cache-path", "", "analysis cache path (default: XDG cache dir)")
	flags.StringVar(&logLevel, "log-level", defaultLogLevel, "log level: debug, info, warn, error, off")
	flags.StringVar(&logFile, "log-file", "", "append JSON logs to this file")
	flags.StringVar(&regionsPath, "regions", "", "text region snapshot JSON file, reloaded on change")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCacheCmd())

	return rootCmd
}

// settings is the resolved configuration after merging flags over the file.
type settings struct {
	session     model.Config
	cachePath   string
	logLevel    string
	logFile     string
	regionsPath string
	serverAddr  string
	origins     []string
}

func resolveSettings(cmd *cobra.Command, fileCfg config.FileConfig) (settings, error) {
	applyInt64Config(cmd, "window-ms", &sessionWindowMs, fileCfg.Session.WindowMs)
	applyInt64Config(cmd, "face-staleness-ms", &fusionFaceStalenessMs, fileCfg.Fusion.FaceStalenessMs)
	applyStringConfig(cmd, "service-url", &serviceURL, fileCfg.Service.URL)
	if err := applyDurationConfig(cmd, "service-timeout", &serviceTimeout, fileCfg.Service.Timeout); err != nil {
		return settings{}, err
	}
	applyStringConfig(cmd, "fallback", &serviceFallback, fileCfg.Service.Fallback)
	applyBoolConfig(cmd, "send-face-frames", &serviceSendFaceFrames, fileCfg.Service.SendFaceFrames)
	applyBoolConfig(cmd, "cache", &cacheEnabled, fileCfg.Cache.Enabled)
	applyStringConfig(cmd, "cache-path", &cachePath, fileCfg.Cache.Path)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-file", &logFile, fileCfg.Log.File)
	if cmd.Flags().Lookup("addr") != nil {
		applyStringConfig(cmd, "addr", &serveAddr, fileCfg.Server.Addr)
		if !cmd.Flags().Changed("origin") && len(fileCfg.Server.Origins) > 0 {
			serveOrigins = fileCfg.Server.Origins
		}
	}

	s := settings{
		session: model.Config{
			WindowMs:        sessionWindowMs,
			FaceStalenessMs: fusionFaceStalenessMs,
			ServiceURL:      serviceURL,
			ServiceTimeout:  serviceTimeout,
			Fallback:        model.FallbackMode(strings.ToLower(strings.TrimSpace(serviceFallback))),
			SendFaceFrames:  serviceSendFaceFrames,
			CacheEnabled:    cacheEnabled,
		},
		cachePath:   cachePath,
		logLevel:    logLevel,
		logFile:     logFile,
		regionsPath: regionsPath,
		serverAddr:  serveAddr,
		origins:     serveOrigins,
	}
	if s.cachePath == "" {
		s.cachePath = config.DefaultCachePath()
	}
	if err := validateConfig(s.session); err != nil {
		return settings{}, err
	}
	return s, nil
}

func loadSettings(cmd *cobra.Command) (settings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	return resolveSettings(cmd, fileCfg)
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *string) error {
	if value == nil {
		return nil
	}
	if cmd.Flags().Changed(name) {
		return nil
	}
	parsed, err := time.ParseDuration(*value)
	if err != nil {
		return fmt.Errorf("invalid [service] timeout %q: %w", *value, err)
	}
	*target = parsed
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# readaid configuration
# Uncomment a value to enable it. CLI flags override config values.

[session]
# window-ms = %d             # Gaze history window in milliseconds

[fusion]
# face-staleness-ms = %d      # Max face signal age; 0 uses the latest regardless of age

[service]
# url = %q    # Analysis service base URL
# timeout = %q                # Analysis request timeout
# fallback = %q               # On failure: none, cache, canned
# send-face-frames = false     # Attach face landmark frames to requests

[server]
# addr = %q                # Listen address for readaid serve
# origins = []                 # Allowed WebSocket origins (empty allows all)

[cache]
# enabled = true               # Cache analysis results in SQLite
# path = %q

[log]
# level = %q                  # debug, info, warn, error, off
# file = %q
`,
		gaze.DefaultWindowMs,
		fusion.DefaultFaceStalenessMs,
		defaultServiceURL,
		inference.DefaultTimeout.String(),
		defaultFallback,
		server.DefaultAddr,
		config.DefaultCachePath(),
		defaultLogLevel,
		config.DefaultLogPath(),
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.WindowMs <= 0 {
		return fmt.Errorf("--window-ms must be > 0")
	}
	if cfg.FaceStalenessMs < 0 {
		return fmt.Errorf("--face-staleness-ms must be >= 0")
	}
	if cfg.ServiceURL == "" {
		return fmt.Errorf("--service-url must not be empty")
	}
	if !strings.HasPrefix(cfg.ServiceURL, "http://") && !strings.HasPrefix(cfg.ServiceURL, "https://") {
		return fmt.Errorf("--service-url must be an http(s) URL")
	}
	if cfg.ServiceTimeout <= 0 {
		return fmt.Errorf("--service-timeout must be > 0")
	}
	switch cfg.Fallback {
	case model.FallbackNone, model.FallbackCanned:
	case model.FallbackCache:
		if !cfg.CacheEnabled {
			return fmt.Errorf("--fallback cache requires the analysis cache to be enabled")
		}
	default:
		return fmt.Errorf("--fallback must be one of none, cache, canned")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
