// Command nci-agent drives an nci.Adapter against a stand-in NCI core
// and exposes its tag/peer lifecycle events to companion UIs over a
// websocket, in the teacher's agent/server idiom (agent.go, main.go,
// server/consumerserver).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dotside-studios/davi-nfc-agent/internal/buildinfo"
	"github.com/dotside-studios/davi-nfc-agent/nci"
	tlspkg "github.com/dotside-studios/davi-nfc-agent/tls"
)

const sessionTimeout = 60 * time.Second

var (
	portFlag      int
	cliFlag       bool
	tlsFlag       bool
	bootstrapFlag int
)

// Server wires the nci.Adapter, its stand-in Core, and the WebSocket
// notification endpoint together, mirroring Agent in agent.go.
type Server struct {
	core     *nci.MockCore
	adapter  *nci.Adapter
	notifier *WSNotifier
	sessions *SessionManager
	upgrader websocket.Upgrader

	httpServer *http.Server
	discovery  *Discovery

	runCtx    context.Context
	runCancel context.CancelFunc
}

// NewServer builds a Server around a fresh stand-in Core, ready to drive
// an adapter once Start is called.
func NewServer() *Server {
	core := nci.NewMockCore()
	notifier := NewWSNotifier()
	adapter := nci.NewAdapter(core, notifier, nci.NewRealClock())

	return &Server{
		core:     core,
		adapter:  adapter,
		notifier: notifier,
		sessions: NewSessionManager(sessionTimeout),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Start brings the adapter's event loop up, binds the notification
// endpoint in plain HTTP, and advertises it over mDNS.
func (s *Server) Start(port int) error {
	return s.start(port)
}

// StartTLS is Start's HTTPS counterpart, using certFile/keyFile produced
// by tls.Manager.EnsureCertificates.
func (s *Server) StartTLS(port int, certFile, keyFile string) error {
	return s.start(port, certFile, keyFile)
}

func (s *Server) start(port int, tlsFiles ...string) error {
	s.runCtx, s.runCancel = context.WithCancel(context.Background())

	go func() {
		if err := s.adapter.Run(s.runCtx); err != nil {
			log.Printf("[agent] adapter loop stopped: %v", err)
		}
	}()

	s.adapter.SetPowered(true)
	s.adapter.SetEnabled(true)
	if err := s.adapter.SubmitModeRequest(s.adapter.SupportedModes()); err != nil {
		log.Printf("[agent] initial mode request failed: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.httpServer = &http.Server{Addr: addrFor(port), Handler: mux}

	if len(tlsFiles) == 2 {
		certFile, keyFile := tlsFiles[0], tlsFiles[1]
		go func() {
			log.Printf("[agent] listening on %s (TLS)", s.httpServer.Addr)
			if err := s.httpServer.ListenAndServeTLS(certFile, keyFile); err != nil && err != http.ErrServerClosed {
				log.Printf("[agent] HTTPS server error: %v", err)
			}
		}()
	} else {
		go func() {
			log.Printf("[agent] listening on %s", s.httpServer.Addr)
			if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("[agent] HTTP server error: %v", err)
			}
		}()
	}

	discovery, err := Advertise(port)
	if err != nil {
		log.Printf("[agent] mDNS advertisement failed: %v", err)
	} else {
		s.discovery = discovery
	}

	return nil
}

// Stop shuts the server down: HTTP endpoint, mDNS, and the adapter loop.
func (s *Server) Stop() {
	if s.discovery != nil {
		s.discovery.Shutdown()
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
	if s.runCancel != nil {
		s.runCancel()
	}
	s.adapter.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.notifier.ClientCount(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[agent] WebSocket upgrade error: %v", err)
		return
	}

	sessionID := s.sessions.Open()
	s.notifier.Register(conn, sessionID)
	log.Printf("[agent] session %s connected (clients: %d)", sessionID[:8], s.notifier.ClientCount())

	defer func() {
		conn.Close()
		s.notifier.Unregister(conn)
		s.sessions.Close(sessionID)
		log.Printf("[agent] session %s disconnected (clients: %d)", sessionID[:8], s.notifier.ClientCount())
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		s.sessions.Touch(sessionID)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func addrFor(port int) string {
	return ":" + itoa(port)
}

func main() {
	flag.IntVar(&portFlag, "port", 9470, "Port to listen on for the notification WebSocket")
	flag.BoolVar(&cliFlag, "cli", false, "Run in CLI mode (default: system tray mode)")
	flag.BoolVar(&tlsFlag, "tls", false, "Serve the WebSocket endpoint over self-signed TLS")
	flag.IntVar(&bootstrapFlag, "bootstrap-port", 0, "Port to serve the CA certificate on for TLS trust bootstrap (0 disables)")
	flag.Parse()

	srv := NewServer()

	start := func() error { return srv.Start(portFlag) }
	if tlsFlag {
		configDir, err := os.UserConfigDir()
		if err != nil {
			configDir = "."
		}
		tlsManager := tlspkg.NewManager(filepath.Join(configDir, buildinfo.DirName))
		certFile, keyFile, err := tlsManager.EnsureCertificates()
		if err != nil {
			log.Fatalf("failed to provision TLS certificates: %v", err)
		}
		start = func() error { return srv.StartTLS(portFlag, certFile, keyFile) }

		if bootstrapFlag > 0 {
			bootstrap := tlspkg.NewBootstrapServer(tlsManager, bootstrapFlag)
			if err := bootstrap.Start(); err != nil {
				log.Printf("failed to start CA bootstrap server: %v", err)
			} else {
				defer bootstrap.Stop()
			}
		}
	}

	if err := start(); err != nil {
		log.Fatalf("failed to start agent: %v", err)
	}

	if cliFlag {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("shutdown signal received, stopping...")
		srv.Stop()
		return
	}

	tray := NewTray(srv.notifier)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		srv.Stop()
		os.Exit(0)
	}()
	tray.Run(func() { srv.Stop() })
}
