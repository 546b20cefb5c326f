package ws

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	wsmarshaller "github.com/webitel/im-realtime-service/internal/handler/marshaller/ws"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"github.com/webitel/im-realtime-service/internal/service"
	"golang.org/x/time/rate"
)

// Identifier resolves the user behind a handshake request.
type Identifier interface {
	Identify(r *http.Request) (string, error)
}

// PresenceLister provides the online set included in the connected frame.
type PresenceLister interface {
	OnlineUserIDs() []string
}

type Options struct {
	Config         config.WSConfig
	AllowedOrigins []string
	SendTimeout    time.Duration
	Version        string
}

type WSHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
	router    service.MessageRouter
	identity  Identifier
	presence  PresenceLister
	metrics   *metrics.Metrics
	opts      Options
	upgrader  websocket.Upgrader
}

func NewWSHandler(
	logger *slog.Logger,
	deliverer service.Deliverer,
	router service.MessageRouter,
	identity Identifier,
	presence PresenceLister,
	m *metrics.Metrics,
	opts Options,
) *WSHandler {
	h := &WSHandler{
		logger:    logger,
		deliverer: deliverer,
		router:    router,
		identity:  identity,
		presence:  presence,
		metrics:   m,
		opts:      opts,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. RESOLVE IDENTITY (JWT or trusted handshake parameter)
	userID, err := h.identity.Identify(r)
	if err != nil {
		h.logger.Debug("WS_HANDSHAKE_REJECTED", "remote", r.RemoteAddr, "err", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// 2. SUBSCRIBE BEFORE UPGRADE: an unknown identity never gets a socket
	md := registry.ConnectMetadata{
		Platform:  r.URL.Query().Get("platform"),
		RemoteIP:  remoteIP(r),
		UserAgent: r.UserAgent(),
	}
	conn, err := h.deliverer.Subscribe(r.Context(), userID, md)
	if err != nil {
		if errors.Is(err, model.ErrInvalidIdentity) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h.logger.Warn("WS_SUBSCRIBE_FAILED", "user_id", userID, "err", err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	var unsubscribeOnce sync.Once
	unsubscribe := func() {
		unsubscribeOnce.Do(func() { h.deliverer.Unsubscribe(userID, conn.GetID()) })
	}
	defer unsubscribe()

	// 3. UPGRADE TO WEBSOCKET (Upgrade answers the HTTP error itself)
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WS_UPGRADE_FAILED", "user_id", userID, "err", err)
		return
	}
	defer ws.Close()

	log := h.logger.With("user_id", userID, "conn_id", conn.GetID().String())
	log.Info("WS_SESSION_OPENED", "platform", md.Platform, "remote", md.RemoteIP)

	s := &session{
		handler:     h,
		ws:          ws,
		conn:        conn,
		userID:      userID,
		logger:      log,
		limiter:     rate.NewLimiter(rate.Limit(h.opts.Config.EventsPerSecond), h.opts.Config.Burst),
		unsubscribe: unsubscribe,
	}

	if err := s.writeConnected(); err != nil {
		log.Warn("WS_CONNECTED_WRITE_FAILED", "err", err)
		return
	}

	// 4. PUMPS: writer drains the connector, reader dispatches inbound events
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump()
	}()

	s.readLoop(r.Context())

	// The reader is gone: unregister closes the connector, which ends the writer.
	unsubscribe()
	<-writerDone

	log.Info("WS_SESSION_CLOSED", "dropped", conn.Dropped(), "lifetime", time.Since(conn.GetCreatedAt()).String())
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 || slices.Contains(h.opts.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.opts.AllowedOrigins, origin)
}

// remoteIP reads RemoteAddr only; the server's RealIP middleware has already
// applied any trusted forwarding header.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// session is one upgraded connection. Only writePump writes to ws once it runs.
type session struct {
	handler     *WSHandler
	ws          *websocket.Conn
	conn        registry.Connector
	userID      string
	logger      *slog.Logger
	limiter     *rate.Limiter
	unsubscribe func()
}

func (s *session) writeConnected() error {
	var online []string
	if s.handler.presence != nil {
		online = s.handler.presence.OnlineUserIDs()
	}

	ev := event.NewConnectedEvent(s.userID, &model.ConnectedPayload{
		Ok:            true,
		ConnectionID:  s.conn.GetID().String(),
		UserID:        s.userID,
		ServerVersion: s.handler.opts.Version,
		OnlineUsers:   online,
	})

	return s.write(ev)
}

func (s *session) write(ev event.Eventer) error {
	data, err := wsmarshaller.MarshallDeliveryEvent(ev)
	if err != nil {
		return err
	}

	_ = s.ws.SetWriteDeadline(time.Now().Add(s.handler.opts.Config.WriteTimeout))
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

func (s *session) writePump() {
	ticker := time.NewTicker(s.handler.opts.Config.PingInterval)
	defer func() {
		ticker.Stop()
		// unblock the reader if the writer failed first
		_ = s.ws.Close()
	}()

	for {
		select {
		case ev, ok := <-s.conn.Recv():
			if !ok {
				// connector closed (unregister or hub shutdown): say goodbye
				_ = s.ws.SetWriteDeadline(time.Now().Add(s.handler.opts.Config.WriteTimeout))
				_ = s.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			data, err := wsmarshaller.MarshallDeliveryEvent(ev)
			if err != nil {
				s.logger.Error("WS_MARSHAL_FAILED", "event", ev.GetKind().String(), "err", err)
				continue
			}

			_ = s.ws.SetWriteDeadline(time.Now().Add(s.handler.opts.Config.WriteTimeout))
			if err := s.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				if !errors.Is(err, net.ErrClosed) {
					s.logger.Warn("WS_SEND_FAILED", "event", ev.GetKind().String(), "err", err)
				}
				return
			}

		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(s.handler.opts.Config.WriteTimeout))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) readLoop(ctx context.Context) {
	cfg := s.handler.opts.Config

	s.ws.SetReadLimit(cfg.MaxMessageBytes)
	_ = s.ws.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	})

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Warn("WS_READ_FAILED", "err", err)
			}
			return
		}

		// any inbound frame proves the peer is alive
		_ = s.ws.SetReadDeadline(time.Now().Add(cfg.PongTimeout))

		if !s.limiter.Allow() {
			s.handler.metrics.Limited()
			s.logger.Debug("WS_RATE_LIMITED")
			continue
		}

		if stop := s.dispatch(ctx, data); stop {
			return
		}
	}
}
