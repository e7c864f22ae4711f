// Package web provides an HTTP API for a financial model.
//
// The server loads a model file, calculates it and exposes the accounts,
// periods and results as JSON. Supplied values can be updated through the
// API, which triggers a values-only recalculation. With watching enabled,
// edits to the model file (or its includes) reload the model and run the
// pipeline in auto mode, so unchanged structure is recalculated cheaply.
// Clients subscribe to recalculations through Server-Sent Events.
//
// There is no authentication. The server listens on 127.0.0.1 only.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/finmodel/finmodel/loader"
	"github.com/finmodel/finmodel/pipeline"
	"github.com/finmodel/finmodel/telemetry"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	Port         int
	Host         string
	Version      string
	CommitSHA    string
	ReadOnly     bool
	WatchEnabled bool
	Logger       zerolog.Logger

	mu       sync.RWMutex
	pipeline *pipeline.Pipeline
	model    *loader.Result
	output   *pipeline.Output
	// runErr holds the structural failure of the last run, if any.
	runErr error

	// Model path given to New; includes are tracked through model.Files().
	// After loading, model.Root contains the resolved absolute path.
	inputFile string

	// SSE clients for broadcasting recalculation events
	sseClients map[chan event]struct{}
	sseMu      sync.Mutex
}

type event struct {
	name string
	data string
}

func New(port int, modelFile string) *Server {
	return NewWithVersion(port, modelFile, "", "")
}

func NewWithVersion(port int, modelFile, version, commitSHA string) *Server {
	return &Server{
		Port:       port,
		Host:       "127.0.0.1",
		Version:    version,
		CommitSHA:  commitSHA,
		Logger:     zerolog.Nop(),
		inputFile:  modelFile,
		sseClients: make(map[chan event]struct{}),
	}
}

// Start loads the model and serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	timer := telemetry.StartTimer(ctx, fmt.Sprintf("web.start %s:%d", s.Host, s.Port))

	if s.inputFile == "" {
		timer.End()
		return fmt.Errorf("model file is required")
	}

	loadTimer := timer.Child(fmt.Sprintf("web.load_model %s", filepath.Base(s.inputFile)))
	if err := s.reloadModel(telemetry.WithRootTimer(ctx, loadTimer)); err != nil {
		loadTimer.End()
		timer.End()
		return fmt.Errorf("failed to load model: %w", err)
	}
	loadTimer.End()

	if s.WatchEnabled {
		if err := s.startWatcher(ctx); err != nil {
			timer.End()
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
	}

	setupTimer := timer.Child("web.setup_router")
	mux := s.setupRouter()
	setupTimer.End()
	timer.End()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.Host, s.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.Logger.Info().Str("addr", srv.Addr).Msg("listening")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) setupRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/accounts", s.handleGetAccounts)
	mux.HandleFunc("GET /api/periods", s.handleGetPeriods)
	mux.HandleFunc("GET /api/results", s.handleGetResults)
	mux.HandleFunc("PUT /api/values", s.requireWritable(s.handlePutValues))
	mux.HandleFunc("POST /api/recalculate", s.handleRecalculate)
	mux.HandleFunc("GET /api/events", s.handleSSE)

	return mux
}

// requireWritable answers 403 to mutating requests when ReadOnly is set.
func (s *Server) requireWritable(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.ReadOnly {
			http.Error(w, "Server is in read-only mode", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// reloadModel loads or reloads the model from disk and recalculates it in
// auto mode. Load failures are returned; structural run failures are kept
// in runErr and reported by the results endpoint. It takes s.mu itself.
func (s *Server) reloadModel(ctx context.Context) error {
	ldr := loader.New(loader.WithFollowIncludes())

	result, err := ldr.Load(ctx, s.inputFile)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A new pipeline is needed when the settings change; otherwise the
	// cached structure lets an unchanged model run values-only.
	if s.pipeline == nil || s.pipeline.Settings() != result.Settings {
		s.pipeline = pipeline.New(
			pipeline.WithSettings(result.Settings),
			pipeline.WithLogger(s.Logger),
		)
	}
	s.model = result
	s.recalculateLocked(ctx, pipeline.ModeAuto)

	return nil
}

// recalculateLocked runs the pipeline over the current model.
// Caller must hold the write lock.
func (s *Server) recalculateLocked(ctx context.Context, mode pipeline.Mode) {
	opts := pipeline.DefaultOptions()
	opts.Mode = mode

	out, err := s.pipeline.Run(ctx, s.model.Input, opts)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("calculation failed")
		s.output, s.runErr = nil, err
		return
	}
	s.output, s.runErr = out, nil
	s.Logger.Info().
		Str("run", out.RunID.String()).
		Str("mode", out.Mode.String()).
		Int("errors", len(out.CalculationErrors)).
		Msg("model calculated")
}

// startWatcher starts a file watcher for the model file and all includes.
// It reloads the model and broadcasts SSE events when files change.
func (s *Server) startWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	s.mu.RLock()
	filesToWatch := s.model.Files()
	s.mu.RUnlock()

	for _, file := range filesToWatch {
		if err := watcher.Add(file); err != nil {
			s.Logger.Warn().Err(err).Str("file", file).Msg("failed to watch file")
		}
	}

	go s.runWatcher(ctx, watcher)

	return nil
}

// runWatcher reloads the model at most once per debounce window.
func (s *Server) runWatcher(ctx context.Context, watcher *fsnotify.Watcher) {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		_ = watcher.Close()
	}()

	// Editors often write files in multiple steps
	const debounceDelay = 100 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}

			// Remove/Rename are common in atomic saves
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}

			debounceTimer = time.AfterFunc(debounceDelay, func() {
				s.handleFileChange(ctx, watcher)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.Logger.Error().Err(err).Msg("file watcher error")
		}
	}
}

// handleFileChange reloads the model and updates the watch list.
func (s *Server) handleFileChange(ctx context.Context, watcher *fsnotify.Watcher) {
	s.mu.RLock()
	oldFiles := make(map[string]bool)
	for _, f := range s.model.Files() {
		oldFiles[f] = true
	}
	s.mu.RUnlock()

	if err := s.reloadModel(ctx); err != nil {
		s.Logger.Error().Err(err).Msg("failed to reload model")
		return
	}

	s.mu.RLock()
	newFiles := s.model.Files()
	s.mu.RUnlock()

	current := make(map[string]bool, len(newFiles))
	for _, f := range newFiles {
		current[f] = true
	}
	for file := range oldFiles {
		if !current[file] {
			_ = watcher.Remove(file)
		}
	}

	// Re-add everything to catch re-created files
	for _, file := range newFiles {
		if err := watcher.Add(file); err != nil {
			s.Logger.Warn().Err(err).Str("file", file).Msg("failed to watch file")
		}
	}

	s.broadcastRecalculated()
}
