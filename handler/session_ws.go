package handler

import (
	"captains-log/dto"
	"captains-log/pkg/capture"
	"captains-log/service"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 25 * time.Second
	wsSendBuffer   = 256
)

type wsMessage struct {
	kind int
	data []byte
}

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(h.AllowedOrigins) == 0 || slices.Contains(h.AllowedOrigins, "*") {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return slices.Contains(h.AllowedOrigins, u.Scheme+"://"+u.Host)
		},
	}
}

// SessionSocket streams a session over a websocket. Binary frames carry
// audio chunks, text frames carry dto.SessionControl messages and every
// session event is pushed back as JSON.
func (h *Handler) SessionSocket(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := zerolog.Ctx(c.Request.Context()).With().Str("session_id", s.ID()).Logger()
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background()))
	defer cancel()

	send := make(chan wsMessage, wsSendBuffer)
	unsubscribe := s.Subscribe(func(e service.Event) {
		data, err := json.Marshal(e)
		if err != nil {
			return
		}
		select {
		case send <- wsMessage{kind: websocket.TextMessage, data: data}:
		case <-ctx.Done():
		default:
			// a slow client loses frames rather than stalling the session
		}
	})
	defer unsubscribe()

	go writePump(ctx, cancel, conn, send)
	sendJSON(send, s.Snapshot())

	conn.SetReadLimit(maxChunkBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("websocket closed")
			}
			return
		}
		switch kind {
		case websocket.BinaryMessage:
			if d, ok := streamDevice(s); ok {
				d.Write(data)
			}
		case websocket.TextMessage:
			var msg dto.SessionControl
			if err := json.Unmarshal(data, &msg); err != nil {
				sendJSON(send, gin.H{"type": service.EventError, "error": "invalid control message"})
				continue
			}
			h.control(ctx, s, send, msg)
		}
	}
}

func (h *Handler) control(ctx context.Context, s *service.Session, send chan<- wsMessage, msg dto.SessionControl) {
	var err error
	switch msg.Type {
	case "attach":
		if d, ok := streamDevice(s); ok {
			d.Attach(capture.Format(msg.Format), msg.SampleRate)
		}
	case "detach":
		if d, ok := streamDevice(s); ok {
			d.Detach()
		}
	case "start":
		err = s.Start(ctx)
	case "pause":
		s.Pause(ctx)
	case "resume":
		s.Resume(ctx)
	case "toggle":
		s.TogglePause(ctx)
	case "stop":
		err = s.StopAsync(ctx)
	case "reset":
		s.Reset(ctx)
	case "back":
		s.BackToBridge(ctx)
	case "play":
		err = s.Play(ctx)
	case "transcript":
		s.Transcript(msg.Transcript)
	case "key":
		s.Key(msg.Key, msg.Ctrl)
	case "snapshot":
	default:
		sendJSON(send, gin.H{"type": service.EventError, "error": "unknown control " + msg.Type})
		return
	}
	if err != nil {
		sendJSON(send, gin.H{"type": service.EventError, "error": err.Error()})
		return
	}
	sendJSON(send, s.Snapshot())
}

func sendJSON(send chan<- wsMessage, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case send <- wsMessage{kind: websocket.TextMessage, data: data}:
	default:
	}
}

func writePump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, send <-chan wsMessage) {
	defer cancel()
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
			return
		case msg := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(msg.kind, msg.data); err != nil {
				zerolog.Ctx(ctx).Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}
