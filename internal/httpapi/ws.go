package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/logger"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/protocol"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/types"
)

const (
	wsReadLimit    = 1 << 20
	wsReadTimeout  = 120 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleChatWS bridges one websocket to one conversation. The reader feeds
// inbound intents in receipt order, the writer is the only goroutine that
// writes to the socket, and the conversation owns the session state.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.conversation == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "conversation not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	profile := s.cfg.MemoryProfileID
	if profile == "" {
		profile = "default"
	}
	reg := s.sessions.Create(profile)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	_ = s.sessions.Bind(reg.ID, cancel)
	ctx = logger.WithField(ctx, "session_id", reg.ID)

	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	logger.Infof(ctx, "websocket connected from %s", r.RemoteAddr)

	sess := &types.Session{ID: reg.ID, ProfileID: reg.ProfileID}
	inbound := make(chan any, 16)
	outbound := make(chan any, 256)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(outbound)
		err := s.conversation.RunConnection(gctx, sess, inbound, outbound)
		if err != nil {
			return fmt.Errorf("conversation: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.writePump(gctx, conn, outbound)
	})
	g.Go(func() error {
		defer close(inbound)
		return s.readPump(gctx, conn, reg.ID, inbound)
	})

	if err := g.Wait(); err != nil {
		logger.Warnf(ctx, "websocket closed: %v", err)
	}

	s.sessions.Remove(reg.ID)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
	logger.Infof(ctx, "websocket disconnected")
}

// writePump drains outbound until the conversation closes it, then says
// goodbye and closes the socket so the reader unblocks.
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, outbound <-chan any) error {
	defer conn.Close()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-outbound:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(time.Second))
				return nil
			}
			payload, err := protocol.Encode(msg)
			if err != nil {
				logger.Errorf(ctx, "encode %T: %v", msg, err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return fmt.Errorf("%s: %w", protocol.CodeTransportError, err)
			}
			s.metrics.WSMessages.WithLabelValues("outbound", string(protocol.TypeOf(msg))).Inc()
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return fmt.Errorf("%s: ping: %w", protocol.CodeTransportError, err)
			}
		}
	}
}

// readPump forwards parsed client frames. Frames that do not parse are passed
// on as protocol.Invalid so they are answered in order.
func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, sessionID string, inbound chan<- any) error {
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && ctx.Err() == nil {
				logger.Debugf(ctx, "read: %v", err)
			}
			// A client going away ends the session; it is not a server error.
			return nil
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		var msg any
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			msg = protocol.Invalid{Reason: err.Error()}
		} else {
			msg = parsed
		}
		_ = s.sessions.Touch(sessionID)
		s.metrics.WSMessages.WithLabelValues("inbound", string(protocol.TypeOf(msg))).Inc()

		select {
		case <-ctx.Done():
			return nil
		case inbound <- msg:
		}
	}
}
