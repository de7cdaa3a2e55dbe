package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"voice-analyze/models"
	"voice-analyze/service"
	"voice-analyze/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"
)

// emitter is the part of socketio.Conn the controller uses.
type emitter interface {
	ID() string
	Emit(event string, v ...interface{})
}

type socketController struct {
	svc *service.Service
}

type serviceInfo struct {
	Ready    service.Readiness `json:"ready"`
	Speakers int               `json:"speakers"`
}

func newSocketController(svc *service.Service) *socketController {
	return &socketController{svc: svc}
}

func (c *socketController) emitServiceInfo(socket emitter) {
	socket.Emit("serviceInfo", serviceInfo{Ready: c.svc.Ready(), Speakers: len(c.svc.Speakers())})
}

func emitError(socket emitter, event string, err error) {
	status, kind := errorStatus(err)
	socket.Emit(event, map[string]interface{}{
		"status":  "error",
		"message": err.Error(),
		"kind":    kind,
		"code":    status,
	})
}

func (c *socketController) handleAnalyzeSegment(socket emitter, msg string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	if msg == "" {
		socket.Emit("analysisError", map[string]string{"message": "no audio data received"})
		return
	}

	var req models.AnalyzeRequest
	if err := json.Unmarshal([]byte(msg), &req); err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to parse segment payload", slog.Any("error", err))
		socket.Emit("analysisError", map[string]string{"message": "invalid audio payload"})
		return
	}
	if len(req.WavFile) == 0 {
		socket.Emit("analysisError", map[string]string{"message": "missing wav_file"})
		return
	}

	started := time.Now()
	res, err := c.svc.Analyze(ctx, service.AnalyzeRequest{
		Audio:     req.WavFile,
		SegmentID: req.SegmentID,
		Text:      req.Text,
		Language:  req.Language,
		Start:     req.Start,
		End:       req.End,
	})
	if err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "segment analysis failed",
			slog.String("socketID", socket.ID()),
			slog.Any("error", err),
		)
		emitError(socket, "analysisError", err)
		return
	}

	logger.InfoContext(ctx, "emitting analysis result",
		slog.String("socketID", socket.ID()),
		slog.Float64("latency_ms", time.Since(started).Seconds()*1000),
	)
	socket.Emit("analysisResult", res)
}

func (c *socketController) handleEnrollSpeaker(socket emitter, msg string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	var req models.EnrollRequest
	if err := json.Unmarshal([]byte(msg), &req); err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to parse enroll payload", slog.Any("error", err))
		socket.Emit("enrollError", map[string]string{"message": "invalid enroll payload"})
		return
	}

	if err := c.svc.Enroll(ctx, req.Speaker, req.WavFile); err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "socket enrollment failed",
			slog.String("socketID", socket.ID()),
			slog.String("speaker", req.Speaker),
			slog.Any("error", err),
		)
		emitError(socket, "enrollError", err)
		return
	}

	socket.Emit("enrollResult", models.StatusResponse{
		Status:  "success",
		Message: fmt.Sprintf("User %s saved.", req.Speaker),
	})
	c.emitServiceInfo(socket)
}

// runRecovered runs fn off the socket read loop and turns panics into an
// error event.
func runRecovered(socket emitter, event string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				utils.GetLogger().Error("panic in socket handler",
					slog.String("socketID", socket.ID()),
					slog.Any("panic", r),
				)
				socket.Emit(event, map[string]string{"message": "internal server error during processing"})
			}
		}()
		fn()
	}()
}

func newSocketServer(controller *socketController) *socketio.Server {
	logger := utils.GetLogger()
	allowOriginFunc := func(r *http.Request) bool {
		return true
	}

	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})

	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		logger.Info("socket connected",
			slog.String("socketID", socket.ID()),
			slog.Any("remoteAddr", socket.RemoteAddr()),
		)
		controller.emitServiceInfo(socket)
		return nil
	})

	server.OnEvent("/", "requestServiceInfo", func(socket socketio.Conn) {
		controller.emitServiceInfo(socket)
	})

	server.OnEvent("/", "analyzeSegment", func(socket socketio.Conn, msg string) {
		logger.Info("analyzeSegment received",
			slog.String("socketID", socket.ID()),
			slog.Int("dataLength", len(msg)),
		)
		runRecovered(socket, "analysisError", func() {
			controller.handleAnalyzeSegment(socket, msg)
		})
	})

	server.OnEvent("/", "enrollSpeaker", func(socket socketio.Conn, msg string) {
		logger.Info("enrollSpeaker received",
			slog.String("socketID", socket.ID()),
			slog.Int("dataLength", len(msg)),
		)
		runRecovered(socket, "enrollError", func() {
			controller.handleEnrollSpeaker(socket, msg)
		})
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		logger.Error("socket error", slog.Any("error", e))
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		logger.Info("socket disconnected",
			slog.String("socketID", s.ID()),
			slog.String("reason", reason),
		)
	})

	return server
}
