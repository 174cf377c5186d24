package ws

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/webitel/im-tag-router/internal/domain/model"
	"github.com/webitel/im-tag-router/internal/service"
)

const (
	defaultSendBuffer = 256
	defaultWriteWait  = 10 * time.Second
	defaultPongWait   = 60 * time.Second
	defaultReadLimit  = 1 << 20
	closeWait         = time.Second
)

// Option configures a WSHandler.
type Option func(*WSHandler)

// WithSendBuffer sets the per-connection outbound queue size.
func WithSendBuffer(n int) Option {
	return func(h *WSHandler) {
		if n >= 0 {
			h.sendBuffer = n
		}
	}
}

// WithWriteWait bounds a single frame write.
func WithWriteWait(d time.Duration) Option {
	return func(h *WSHandler) {
		if d > 0 {
			h.writeWait = d
		}
	}
}

// WithReadLimit caps the size of one inbound frame. Larger frames close the
// socket with 1009.
func WithReadLimit(n int64) Option {
	return func(h *WSHandler) {
		if n > 0 {
			h.readLimit = n
		}
	}
}

// WithPongWait sets how long a peer may stay silent before it is dropped.
// Pings go out at half of this interval.
func WithPongWait(d time.Duration) Option {
	return func(h *WSHandler) {
		if d > 0 {
			h.pongWait = d
		}
	}
}

// WSHandler is the WebSocket transport: it owns the sockets and feeds the router.
type WSHandler struct {
	logger   *slog.Logger
	router   service.Router
	upgrader websocket.Upgrader

	sendBuffer int
	writeWait  time.Duration
	pongWait   time.Duration
	readLimit  int64
}

func NewWSHandler(logger *slog.Logger, router service.Router, opts ...Option) *WSHandler {
	h := &WSHandler{
		logger: logger,
		router: router,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Security: adjust for production
		},
		sendBuffer: defaultSendBuffer,
		writeWait:  defaultWriteWait,
		pongWait:   defaultPongWait,
		readLimit:  defaultReadLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WS_UPGRADE_FAILED", "err", err)
		return
	}
	defer ws.Close()
	ws.SetReadLimit(h.readLimit)

	// 2. BUILD THE CONNECTOR FROM THE HANDSHAKE
	conn := model.NewConnector(r.Context(), r.URL.Query(), model.ConnectMetadata{
		RemoteIP:  remoteIP(r),
		UserAgent: r.UserAgent(),
	}, h.sendBuffer)
	defer conn.Close()

	// 3. AUTHORIZE AND REGISTER
	if err := h.router.OnOpen(conn); err != nil {
		h.refuse(ws, err)
		return
	}

	h.logger.Info("WS_OPENED", "conn_id", conn.GetID(), "remote_ip", conn.Metadata().RemoteIP)

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		h.writePump(ws, conn)
	}()

	h.readPump(r, ws, conn)

	// [SHUTDOWN_ORDER] Stop the write pump before the socket is released.
	conn.Close()
	<-pumpDone
	h.logger.Info("WS_CLOSED", "conn_id", conn.GetID(), "dropped", conn.Dropped())
}

func (h *WSHandler) readPump(r *http.Request, ws *websocket.Conn, conn model.Connector) {
	// [KEEPALIVE] A peer that stops answering pings hits the read deadline.
	_ = ws.SetReadDeadline(time.Now().Add(h.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if isNormalClose(err) || isDone(conn) {
				h.router.OnClose(conn)
			} else {
				h.router.OnError(conn, err)
			}
			return
		}

		if mt != websocket.TextMessage {
			h.logger.Debug("WS_FRAME_IGNORED", "conn_id", conn.GetID(), "type", mt)
			continue
		}

		// [PER_MESSAGE_FAILURE] A refused request never closes the socket.
		if _, err := h.router.OnMessage(r.Context(), conn, data); err != nil {
			h.logger.Debug("WS_MESSAGE_REJECTED", "conn_id", conn.GetID(), "err", err)
		}
	}
}

func (h *WSHandler) writePump(ws *websocket.Conn, conn model.Connector) {
	ticker := time.NewTicker(h.pongWait / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeWait)); err != nil {
				h.logger.Debug("WS_PING_FAILED", "conn_id", conn.GetID(), "err", err)
				_ = ws.Close()
				return
			}
		case <-conn.Done():
			// [SERVER_CLOSE] Tell the peer and unblock the read pump.
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
			_ = ws.Close()
			return
		case data := <-conn.Recv():
			_ = ws.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("WS_SEND_FAILED", "conn_id", conn.GetID(), "err", err)
				h.router.OnError(conn, err)
				// Unblock the read pump.
				_ = ws.Close()
				return
			}
		}
	}
}

func (h *WSHandler) refuse(ws *websocket.Conn, err error) {
	code := websocket.CloseInternalServerErr
	switch {
	case errors.Is(err, model.ErrAuthorization):
		code = websocket.ClosePolicyViolation
	case errors.Is(err, model.ErrValidation):
		code = websocket.CloseUnsupportedData
	}

	h.logger.Debug("WS_OPEN_REFUSED", "code", code, "err", err)
	msg := websocket.FormatCloseMessage(code, closeReason(err))
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
}

// closeReason keeps the control frame payload under the 125 byte limit
// without splitting a UTF-8 sequence.
func closeReason(err error) string {
	const maxReason = 123
	reason := err.Error()
	if len(reason) <= maxReason {
		return reason
	}
	cut := maxReason
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

// isDone reports whether the session was already torn down on our side.
func isDone(conn model.Connector) bool {
	select {
	case <-conn.Done():
		return true
	default:
		return conn.State() == model.StateClosed
	}
}

func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
