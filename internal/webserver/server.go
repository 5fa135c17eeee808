// Package webserver bridges presentation events to browsers and phones
// over a websocket, so a break can be watched from another screen.
package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/hashicorp/mdns"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/fakeyudi/moyu/internal/events"
)

const (
	writeTimeout = 15 * time.Second

	// ServiceType is the mDNS service advertised by --mdns.
	ServiceType = "_moyu._tcp"
)

// Subscriber is the part of events.Bus the server needs.
type Subscriber interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

// StatusFunc returns the JSON-serializable snapshot served at /api/status.
type StatusFunc func(ctx context.Context) (any, error)

type wsEnvelope struct {
	Type string `json:"type"`
	At   string `json:"at,omitempty"`
	Data any    `json:"data,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server hosts /ws, /api/status and /healthz.
type Server struct {
	bus      Subscriber
	status   StatusFunc
	log      *slog.Logger
	listener net.Listener
	http     *http.Server
}

// New builds a Server. status may be nil.
func New(bus Subscriber, status StatusFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{bus: bus, status: status, log: logger.With("component", "webserver")}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Listen binds addr (host:port; port 0 picks one).
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port is the bound TCP port, or 0.
func (s *Server) Port() int {
	if a, ok := s.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

// Serve runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("webserver: Serve called before Listen")
	}
	// Hijacked websocket connections outlive Shutdown; tie them to ctx.
	s.http.BaseContext = func(net.Listener) context.Context { return ctx }
	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(s.listener) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer ws.CloseNow()

	// Clients only listen; CloseRead handles their close frame and pings.
	ctx := ws.CloseRead(r.Context())

	ch, cancel := s.bus.Subscribe(events.DefaultBuffer)
	defer cancel()

	if s.status != nil {
		if snap, err := s.status(ctx); err == nil {
			if err := s.write(ctx, ws, wsEnvelope{Type: "snapshot", Data: snap}); err != nil {
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				ws.Close(websocket.StatusNormalClosure, "shutting down")
				return
			}
			msg := wsEnvelope{Type: ev.Type, At: ev.At.Format(time.RFC3339), Data: ev.Data}
			if err := s.write(ctx, ws, msg); err != nil {
				s.log.Debug("websocket client gone", "error", err)
				return
			}
		}
	}
}

func (s *Server) write(ctx context.Context, ws *websocket.Conn, msg wsEnvelope) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, writeCancel := context.WithTimeout(ctx, writeTimeout)
	defer writeCancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusNotFound, "status unavailable")
		return
	}
	snap, err := s.status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// Advertise publishes the bridge on the local network via mDNS. Call
// Shutdown on the returned server when done.
func Advertise(name string, port int, url string) (*mdns.Server, error) {
	if port <= 0 {
		return nil, fmt.Errorf("invalid port for mDNS advertisement: %d", port)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "moyu"
	}
	txtRecords := []string{
		"name=" + name,
		"url=" + url,
	}
	service, err := mdns.NewMDNSService(name, ServiceType, "local", "", port, nil, txtRecords)
	if err != nil {
		return nil, err
	}
	return mdns.NewServer(&mdns.Config{
		Zone: service,
	})
}

// PrintQR writes url as a terminal QR code.
func PrintQR(w io.Writer, url string) error {
	code, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, code.ToString(false))
	return err
}

// URL is the ws:// address clients should dial for the bound listener.
// Unspecified hosts are replaced with the first non-loopback IPv4 address
// so the link works from a phone.
func URL(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "ws://" + addr.String() + "/ws"
	}
	if ip := net.ParseIP(host); ip == nil || ip.IsUnspecified() {
		host = outboundIP()
	}
	return "ws://" + net.JoinHostPort(host, port) + "/ws"
}

func outboundIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}

// SplitPort extracts the port from a host:port listen flag.
func SplitPort(addr string) int {
	_, raw, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(raw)
	return port
}
