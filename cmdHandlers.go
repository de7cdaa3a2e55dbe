package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"voice-analyze/config"
	"voice-analyze/health"
	"voice-analyze/models"
	"voice-analyze/observe"
	"voice-analyze/service"
	"voice-analyze/utils"
	"voice-analyze/voice"

	"github.com/mdobak/go-xerrors"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		utils.GetLogger().Error("failed to encode JSON response", slog.Any("error", err))
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Status: "error", Message: message})
}

// writeServiceError maps a pipeline error kind to a status code.
func writeServiceError(w http.ResponseWriter, err error) {
	status, kind := errorStatus(err)
	writeJSON(w, status, models.ErrorResponse{Status: "error", Message: err.Error(), Kind: kind})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, "InvalidRequest"
	case errors.Is(err, voice.ErrAudioDecode):
		return http.StatusBadRequest, "AudioDecodeError"
	case errors.Is(err, voice.ErrDimensionMismatch):
		return http.StatusConflict, "DimensionMismatch"
	case errors.Is(err, voice.ErrModelNotLoaded):
		return http.StatusServiceUnavailable, "ModelNotLoaded"
	case errors.Is(err, voice.ErrPersistence):
		return http.StatusInternalServerError, "PersistenceError"
	case errors.Is(err, voice.ErrNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Timeout"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}

// allowCORS sets the CORS headers and reports whether the request still
// needs handling (false for preflight and disallowed methods).
func allowCORS(w http.ResponseWriter, r *http.Request, method string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	w.Header().Set("Access-Control-Allow-Methods", method+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Credentials", "true")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	if r.Method != method {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func newEnrollHandler(svc *service.Service, maxBody int64) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !allowCORS(w, r, http.MethodPost) {
			return
		}

		var req models.EnrollRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
			logger.ErrorContext(ctx, "failed to parse enroll request", slog.Any("error", err))
			writeJSONError(w, http.StatusBadRequest, "invalid request payload")
			return
		}
		req.Speaker = strings.TrimSpace(req.Speaker)
		if req.Speaker == "" || len(req.WavFile) == 0 {
			writeJSONError(w, http.StatusBadRequest, "missing speaker or wav_file")
			return
		}

		if err := svc.Enroll(ctx, req.Speaker, req.WavFile); err != nil {
			err := xerrors.New(err)
			logger.ErrorContext(ctx, "enrollment failed",
				slog.String("speaker", req.Speaker),
				slog.String("request_id", r.Header.Get(observe.RequestIDHeader)),
				slog.Any("error", err),
			)
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, models.StatusResponse{
			Status:  "success",
			Message: fmt.Sprintf("User %s saved.", req.Speaker),
		})
	}
}

func newAnalyzeHandler(svc *service.Service, maxBody int64) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !allowCORS(w, r, http.MethodPost) {
			return
		}

		var req models.AnalyzeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
			logger.ErrorContext(ctx, "failed to parse analyze request", slog.Any("error", err))
			writeJSONError(w, http.StatusBadRequest, "invalid request payload")
			return
		}
		if len(req.WavFile) == 0 {
			writeJSONError(w, http.StatusBadRequest, "missing wav_file")
			return
		}

		res, err := svc.Analyze(ctx, service.AnalyzeRequest{
			Audio:     req.WavFile,
			SegmentID: req.SegmentID,
			Text:      req.Text,
			Language:  req.Language,
			Start:     req.Start,
			End:       req.End,
		})
		if err != nil {
			err := xerrors.New(err)
			logger.ErrorContext(ctx, "audio analysis failed",
				slog.String("request_id", r.Header.Get(observe.RequestIDHeader)),
				slog.Any("error", err),
			)
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func newSpeakersHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowCORS(w, r, http.MethodGet) {
			return
		}
		stats := svc.Speakers()
		writeJSON(w, http.StatusOK, models.SpeakersResponse{Count: len(stats), Speakers: stats})
	}
}

func newSpeakerHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowCORS(w, r, http.MethodGet) {
			return
		}
		stat, err := svc.Speaker(r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stat)
	}
}

type routes struct {
	svc     *service.Service
	maxBody int64
	health  *health.Handler
	metrics *observe.Metrics
	// optional
	metricsHandler http.Handler
	socketHandler  http.Handler
}

func newRouter(rt routes) http.Handler {
	enroll := newEnrollHandler(rt.svc, rt.maxBody)
	analyze := newAnalyzeHandler(rt.svc, rt.maxBody)

	mux := http.NewServeMux()
	mux.HandleFunc("/enroll", enroll)
	mux.HandleFunc("/identificate", enroll)
	mux.HandleFunc("/analyze", analyze)
	mux.HandleFunc("/analyze_audio", analyze)
	mux.HandleFunc("/api/speakers", newSpeakersHandler(rt.svc))
	mux.HandleFunc("/api/speakers/{id}", newSpeakerHandler(rt.svc))
	if rt.health != nil {
		rt.health.Register(mux)
	}
	if rt.metricsHandler != nil {
		mux.Handle("GET /metrics", rt.metricsHandler)
	}
	if rt.socketHandler != nil {
		mux.Handle("/socket.io/", rt.socketHandler)
	}

	metrics := rt.metrics
	if metrics == nil {
		metrics = observe.NewNoopMetrics()
	}
	return observe.Middleware(metrics)(mux)
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := utils.GetLogger()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	socketServer := newSocketServer(newSocketController(a.svc))
	go func() {
		if err := socketServer.Serve(); err != nil {
			logger.ErrorContext(ctx, "socketio listen error", slog.Any("error", xerrors.New(err)))
		}
	}()
	defer socketServer.Close()

	rt := routes{
		svc:           a.svc,
		maxBody:       int64(cfg.Pipeline.MaxUploadMB) << 20,
		health:        a.healthHandler(),
		metrics:       a.metrics,
		socketHandler: socketServer,
	}
	if a.provider != nil {
		rt.metricsHandler = a.provider.Handler()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serveHTTP(ctx, cfg.Server, newRouter(rt))
}

func serveHTTP(ctx context.Context, cfg config.ServerConfig, handler http.Handler) error {
	logger := utils.GetLogger()
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveHTTPS := strings.EqualFold(cfg.Protocol, "https")
	errCh := make(chan error, 1)
	go func() {
		if serveHTTPS {
			if cfg.CertKey == "" || cfg.CertFile == "" {
				errCh <- fmt.Errorf("missing cert")
				return
			}
			server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			logger.Info("starting HTTPS server", slog.String("addr", server.Addr))
			errCh <- server.ListenAndServeTLS(cfg.CertFile, cfg.CertKey)
			return
		}
		logger.Info("starting HTTP server", slog.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
