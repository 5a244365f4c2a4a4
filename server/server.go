package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wfunc/matchgame/config"
	"github.com/wfunc/matchgame/coordinator"
	"github.com/wfunc/matchgame/logger"
	"github.com/wfunc/matchgame/monitor"
	"github.com/wfunc/matchgame/network"
	"github.com/wfunc/matchgame/session"
	"github.com/wfunc/matchgame/tracing"
)

const qrSize = 320

const corsAllowHeaders = "authorization, x-client-info, apikey, content-type"

type GameServer struct {
	cfg         config.ServerConfig
	connOpts    network.ConnOptions
	coordinator *coordinator.Coordinator
	sessions    *session.Manager
	monitor     *monitor.Monitor
	upgrader    websocket.Upgrader
	tracer      trace.Tracer
	version     string
	srv         *http.Server
	conns       sync.WaitGroup
}

func NewGameServer(cfg config.ServerConfig, roomCfg config.RoomConfig, coord *coordinator.Coordinator, mon *monitor.Monitor, version string) *GameServer {
	s := &GameServer{
		cfg: cfg,
		connOpts: network.ConnOptions{
			SendBuffer: roomCfg.SendBuffer,
			Heartbeat:  roomCfg.Heartbeat,
		},
		coordinator: coord,
		sessions:    session.NewManager(),
		monitor:     mon,
		tracer:      tracing.GetTracer("matchgame/server"),
		version:     version,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *GameServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.cfg.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, origin)
}

// Handler builds the router. Everything except the websocket endpoint is
// traced.
func (s *GameServer) Handler() http.Handler {
	mux := httprouter.New()

	mux.GET("/ws", s.handleWebSocket)
	mux.OPTIONS("/ws", s.handlePreflight)
	mux.GET("/healthz", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Write([]byte("ok"))
	})
	mux.GET("/version", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Write([]byte(s.version + "\n"))
	})
	mux.GET("/rooms/:code/qr", s.handleQR)
	if s.monitor != nil {
		mux.Handler("GET", "/metrics", s.monitor.Handler())
	}
	if s.cfg.Profile {
		registerProfileHandlers(mux)
	}

	return otelhttp.NewHandler(mux, "matchgame",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/ws" }),
	)
}

func registerProfileHandlers(mux *httprouter.Router) {
	mux.Handler("GET", "/debug/pprof/allocs", pprof.Handler("allocs"))
	mux.Handler("GET", "/debug/pprof/block", pprof.Handler("block"))
	mux.Handler("GET", "/debug/pprof/goroutine", pprof.Handler("goroutine"))
	mux.Handler("GET", "/debug/pprof/heap", pprof.Handler("heap"))
	mux.Handler("GET", "/debug/pprof/mutex", pprof.Handler("mutex"))
	mux.Handler("GET", "/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	mux.HandlerFunc("GET", "/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandlerFunc("GET", "/debug/pprof/profile", pprof.Profile)
	mux.HandlerFunc("GET", "/debug/pprof/symbol", pprof.Symbol)
	mux.HandlerFunc("GET", "/debug/pprof/trace", pprof.Trace)
}

// Start serves on the configured address until ctx is done, then shuts
// down gracefully.
func (s *GameServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.HTTPAddress)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

func (s *GameServer) Serve(ctx context.Context, listener net.Listener) error {
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       10 * time.Minute,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Log.Infof("Game server listening on %s", listener.Addr())
		errs <- s.srv.Serve(listener)
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests and closes every websocket; each
// connection's disconnect path runs before Shutdown returns or ctx expires.
func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	if s.srv != nil {
		err = s.srv.Shutdown(ctx)
	}
	s.sessions.CloseAll()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (s *GameServer) handlePreflight(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Write([]byte("ok"))
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "Expected WebSocket", http.StatusBadRequest)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.conns.Add(1)
	go s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	defer s.conns.Done()

	wsConn := network.NewWSConnection(conn, s.connOpts)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessions.Add(sess)
	if s.monitor != nil {
		s.monitor.IncOnlinePlayers()
	}

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		if sess.InRoom() {
			s.coordinator.Disconnect(sess)
		}
		s.sessions.Remove(sess.GetID())
		wsConn.Close()
		if s.monitor != nil {
			s.monitor.DecOnlinePlayers()
		}
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
	}()

	for {
		data, err := wsConn.ReadMessage()
		if errors.Is(err, network.ErrBinaryFrame) {
			s.reply(sess, coordinator.ErrMalformedCommand)
			continue
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Log.Debugf("Session %s read error: %v", sess.GetID(), err)
			}
			return
		}
		sess.Touch()
		for _, frame := range network.SplitFrames(data) {
			s.handleFrame(sess, frame)
		}
	}
}

func (s *GameServer) handleFrame(sess *session.Session, frame []byte) {
	_, span := s.tracer.Start(context.Background(), "ws.command",
		trace.WithAttributes(attribute.String("session.id", sess.GetID())))
	defer span.End()

	if err := s.coordinator.HandleFrame(sess, frame); err != nil {
		span.RecordError(err)
		s.reply(sess, err)
	}
}

// reply reports err to the issuing connection only.
func (s *GameServer) reply(sess *session.Session, err error) {
	message := "Internal error"
	var ce *coordinator.CommandError
	if errors.As(err, &ce) {
		message = ce.Message
	} else {
		logger.Log.Errorf("Session %s command failed: %v", sess.GetID(), err)
	}
	sess.Send(network.NewError(message))
}

func (s *GameServer) handleQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := network.NormalizeCode(ps.ByName("code"))
	if code == "" || !s.coordinator.HasRoom(code) {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	png, err := qrcode.Encode(s.joinURL(r, code), qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// joinURL is public_url, or the request's own origin when unset.
func (s *GameServer) joinURL(r *http.Request, code string) string {
	base := strings.TrimSuffix(s.cfg.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/?room=" + code
}
