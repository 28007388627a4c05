package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/jarvis/internal/pipeline"
	"github.com/antoniostano/jarvis/internal/protocol"
	"github.com/antoniostano/jarvis/internal/session"
)

const (
	outboundQueue    = 256
	inboundQueue     = 64
	deliverTimeout   = 5 * time.Second
	writeTimeout     = 10 * time.Second
	readIdleTimeout  = 120 * time.Second
	pingInterval     = 30 * time.Second
	defaultReadLimit = 2 << 20

	closeSessionReplaced = 4000
)

var errOutboundStalled = errors.New("outbound queue stalled")

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}
	clientID := strings.TrimSpace(chi.URLParam(r, "client_id"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan protocol.Event, outboundQueue)
	sink := session.SinkFunc(func(ev protocol.Event) error {
		timer := time.NewTimer(deliverTimeout)
		defer timer.Stop()
		select {
		case outbound <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return errOutboundStalled
		}
	})

	sess, err := s.sessions.Open(clientID, sink)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()), time.Now().Add(time.Second))
		return
	}
	logger := s.logger.With("session_id", sess.ID)
	logger.Info("client connected", "remote", r.RemoteAddr)
	s.sessionEvent("ws_connected")
	s.refreshActiveSessions()

	inbound := make(chan any, inboundQueue)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := s.orchestrator.RunConnection(ctx, sess, inbound); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("session worker stopped", "error", err)
		}
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, cancel, conn, sess, outbound)
	}()

	readLimit := s.cfg.MaxAudioBytes() + 64<<10
	if readLimit <= 64<<10 {
		readLimit = defaultReadLimit
	}
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	// A live socket keeps its session alive even while the user is silent.
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		_ = s.sessions.Touch(sess.ID)
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.Warn("websocket read failed", "error", err)
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		_ = s.sessions.Touch(sess.ID)

		var msg any
		switch msgType {
		case websocket.BinaryMessage:
			s.wsMessage("inbound", "audio_frame")
			msg = pipeline.AudioFrame{PCM: data}
		case websocket.TextMessage:
			parsed, err := protocol.ParseClientMessage(data)
			if err != nil {
				s.wsMessage("inbound", "invalid")
				msg = pipeline.InvalidMessage{Err: err}
				break
			}
			s.wsMessage("inbound", inboundType(parsed))
			msg = parsed
		default:
			continue
		}

		select {
		case <-ctx.Done():
			break readLoop
		case <-sess.Done():
			break readLoop
		case inbound <- msg:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	s.sessions.Release(sess)
	s.refreshActiveSessions()
	s.sessionEvent("ws_disconnected")
	logger.Info("client disconnected")
}

// writeLoop is the only writer of conn. It stops, and tears the connection
// down, once ctx ends or the session is replaced or expired.
func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sess *session.Session, outbound <-chan protocol.Event) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(closeSessionReplaced, "session closed"),
				time.Now().Add(time.Second))
			cancel()
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				cancel()
				return
			}
		case ev := <-outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				s.sessionEvent("ws_write_failed")
				cancel()
				return
			}
			s.wsMessage("outbound", string(ev.Type))
		}
	}
}

func inboundType(msg any) string {
	switch msg.(type) {
	case protocol.TextMessage:
		return string(protocol.TypeText)
	case protocol.ControlMessage:
		return string(protocol.TypeControl)
	case protocol.AudioMessage:
		return string(protocol.TypeAudio)
	default:
		return "unknown"
	}
}
