package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	ghostline "github.com/Paranoid-AF/ghostline"
	defaults "github.com/Paranoid-AF/ghostline/default"
	"github.com/Paranoid-AF/ghostline/inline"
	"github.com/Paranoid-AF/ghostline/provider"
	"github.com/Paranoid-AF/ghostline/telemetry"
)

// BuildFunc builds a provider stack from cfg.
type BuildFunc func(cfg *ghostline.Config, log *slog.Logger) *provider.Stack

// Options configures a Server.
type Options struct {
	// Config is the initial configuration. Nil loads it from disk.
	Config *ghostline.Config
	// Build creates providers from a configuration. Nil means BuildStack.
	Build  BuildFunc
	Logger *slog.Logger
	// Watch reloads the configuration when its file changes.
	Watch bool
}

// Server listens on a Unix domain socket; each connection is one editor.
type Server struct {
	listener net.Listener
	sockPath string
	log      *slog.Logger
	build    BuildFunc

	engine  *inline.Engine
	metrics *telemetry.Metrics
	httpSrv *http.Server
	watcher *configWatcher

	nextID    atomic.Int64
	reloadMu  sync.Mutex
	closeOnce sync.Once

	mu      sync.Mutex
	cfg     *ghostline.Config
	stack   *provider.Stack
	clients map[string]*client
}

// NewServer creates a server bound to sockPath.
func NewServer(sockPath string, opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = ghostline.LoadConfig(); err != nil {
			return nil, err
		}
	}
	for _, w := range ghostline.ValidateConfig(cfg) {
		log.Warn("config", "warning", w)
	}
	build := opts.Build
	if build == nil {
		build = provider.BuildStack
	}

	// Remove stale socket file if it exists
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener: listener,
		sockPath: sockPath,
		log:      log,
		build:    build,
		metrics:  telemetry.New(),
		cfg:      cfg,
		clients:  make(map[string]*client),
	}
	s.stack = build(cfg, log)
	s.engine = inline.New(inline.Options{
		Providers: s.stack.Providers,
		Listeners: []inline.Listener{s, s.metrics},
		Debounce:  ghostline.Debounce(cfg),
		Logger:    log,
	})

	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		s.startMetrics(addr)
	}
	if opts.Watch {
		w, err := watchConfig(ghostline.ConfigDir(), func() {
			if err := s.Reload(); err != nil {
				log.Warn("config reload failed", "error", err)
			}
		}, log)
		if err != nil {
			log.Warn("config watch disabled", "error", err)
		} else {
			s.watcher = w
		}
	}
	return s, nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Close shuts down the engine and providers and removes the socket file.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.listener.Close()
		if s.watcher != nil {
			s.watcher.Close()
		}
		if s.httpSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			s.httpSrv.Shutdown(ctx)
			cancel()
		}
		s.engine.Close()
		s.mu.Lock()
		stack := s.stack
		s.mu.Unlock()
		stack.Close()
		os.Remove(s.sockPath)
	})
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	id := "editor-" + strconv.FormatInt(s.nextID.Add(1), 10)
	c := newClient(id, s, conn)
	s.mu.Lock()
	s.clients[id] = c
	s.mu.Unlock()
	c.log.Debug("connected")

	c.serve()

	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
	if err := s.engine.CloseEditor(c); err != nil {
		c.log.Debug("close editor", "error", err)
	}
	s.metrics.Forget(id)
	c.log.Debug("disconnected")
}

func (s *Server) client(id string) *client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients[id]
}

// OnEvent forwards engine events to the editor they concern.
func (s *Server) OnEvent(ev inline.Event) {
	c := s.client(ev.Editor)
	if c == nil {
		return
	}
	if ev.Kind == inline.EventInsert {
		go s.learn(c.File(), c.currentLine())
	}
	r := ghostline.Reply{Type: ghostline.TypeEvent, Event: ev.Kind.String(), Provider: ev.Provider}
	if ev.Err != nil {
		r.Error = &ghostline.Error{Code: "provider_error", Message: ev.Err.Error()}
	}
	c.send(r)
}

func (s *Server) learn(file, text string) {
	s.mu.Lock()
	stack := s.stack
	s.mu.Unlock()
	stack.Learn(file, text)
}

// Reload reads the configuration file and rebuilds the providers.
func (s *Server) Reload() error {
	cfg, err := ghostline.LoadConfig()
	if err != nil {
		return err
	}
	s.apply(cfg)
	return nil
}

func (s *Server) apply(cfg *ghostline.Config) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	for _, w := range ghostline.ValidateConfig(cfg) {
		s.log.Warn("config", "warning", w)
	}
	s.mu.Lock()
	old := s.stack
	s.mu.Unlock()
	// The old stack saves its history before the new one loads it.
	old.Close()
	stack := s.build(cfg, s.log)

	s.mu.Lock()
	s.cfg, s.stack = cfg, stack
	s.mu.Unlock()
	s.engine.SetProviders(stack.Providers)
	s.engine.SetDebounce(ghostline.Debounce(cfg))
	s.log.Info("providers reloaded")
}

func (s *Server) handleConfig(action string) ghostline.Reply {
	resp := ghostline.Reply{Type: ghostline.TypeConfig}

	switch action {
	case "get":
		cfg, err := ghostline.LoadConfig()
		if err != nil {
			resp.Error = &ghostline.Error{Code: "config_error", Message: err.Error()}
		} else {
			resp.Config = cfg
		}

	case "reload":
		cfg, err := ghostline.LoadConfig()
		if err != nil {
			resp.Error = &ghostline.Error{Code: "config_error", Message: err.Error()}
			break
		}
		// Respond immediately; provider setup may load caches from disk.
		go s.apply(cfg)
		resp.Config = cfg

	case "defaults":
		resp.Config = ghostline.DefaultConfig()

	case "default_prompt":
		resp.Prompt = defaults.DefaultPrompt

	case "validate":
		cfg, err := ghostline.LoadConfig()
		if err != nil {
			resp.Error = &ghostline.Error{Code: "config_error", Message: err.Error()}
		} else {
			resp.Warnings = ghostline.ValidateConfig(cfg)
		}

	default:
		resp.Error = &ghostline.Error{Code: "unknown_action", Message: "unknown config action: " + action}
	}
	return resp
}

func (s *Server) startMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	s.httpSrv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		s.log.Info("serving metrics", "addr", addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("metrics server stopped", "error", err)
		}
	}()
}
