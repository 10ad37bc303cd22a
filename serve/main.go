// Command ghostlined is the ghostline daemon.
// It listens on a Unix domain socket for editors, mirrors their buffers,
// and streams inline suggestions back to them.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Paranoid-AF/ghostline"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "log every message and reply to stderr")
	watch := flag.Bool("watch", true, "reload providers when the config file changes")
	check := flag.Bool("check", false, "validate the config file and exit")
	socket := flag.String("socket", "", "socket path (overrides GHOSTLINE_SOCKET)")
	flag.Parse()

	if *showVersion {
		fmt.Println("ghostlined", Version)
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := ghostline.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "path", ghostline.ConfigPath(), "error", err)
		os.Exit(1)
	}
	if *check {
		os.Exit(checkConfig(os.Stdout, cfg))
	}

	socketPath := resolveSocketPath(*socket)
	slog.Info("starting",
		"socket", socketPath,
		"config", ghostline.ConfigPath(),
		"providers", strings.Join(cfg.Engine.Providers, ","),
		"debounce", ghostline.Debounce(cfg),
		"embedding", ghostline.EmbeddingEnabled(cfg),
	)

	srv, err := NewServer(socketPath, Options{Config: cfg, Watch: *watch})
	if err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("shutting down")
		srv.Close()
	}()

	if cfg.Telemetry.MetricsAddr != "" {
		slog.Info("ready", "metrics", "http://"+cfg.Telemetry.MetricsAddr+"/metrics")
	} else {
		slog.Info("ready")
	}
	if err := srv.Serve(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// checkConfig prints the effective provider chain and every validation
// warning of cfg. It returns the process exit code.
func checkConfig(w io.Writer, cfg *ghostline.Config) int {
	fmt.Fprintf(w, "config: %s\n", ghostline.ConfigPath())
	fmt.Fprintf(w, "providers: %s\n", strings.Join(cfg.Engine.Providers, " > "))
	warnings := ghostline.ValidateConfig(cfg)
	for _, warn := range warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	if len(warnings) > 0 {
		return 1
	}
	fmt.Fprintln(w, "ok")
	return 0
}

func resolveSocketPath(override string) string {
	if override != "" {
		return override
	}
	if path := os.Getenv("GHOSTLINE_SOCKET"); path != "" {
		return path
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/ghostline.sock"
	}
	return fmt.Sprintf("/tmp/ghostline-%d.sock", os.Getuid())
}
