// Package pprof exposes the optional runtime profiling HTTP server.
//
// Security: bind to localhost (the default). Binding to a non-loopback
// address requires a token.
package pprof

import (
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	logx "fragwatch/pkg/logx"
)

type Config struct {
	Enabled bool
	Addr    string
	Token   string
}

type Service struct {
	cfg Config
	log logx.Logger

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

func New(cfg Config, log logx.Logger) *Service {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6060"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log}
}

func (s *Service) Enabled() bool { return s.cfg.Enabled }

func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.srv != nil {
		return nil
	}
	if !loopbackAddr(s.cfg.Addr) && strings.TrimSpace(s.cfg.Token) == "" {
		return errors.New("pprof: non-loopback addr requires a token")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", hpprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", hpprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", hpprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", hpprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", hpprof.Trace)

	handler := http.Handler(mux)
	if tok := strings.TrimSpace(s.cfg.Token); tok != "" {
		handler = tokenAuth(tok, mux)
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		s.log.Info("pprof listening", logx.String("addr", ln.Addr().String()))
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("pprof server failed", logx.Err(err))
		}
	}()
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()
	if srv != nil {
		_ = srv.Close()
	}
}

func tokenAuth(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Pprof-Token")
		if got == "" {
			got = r.URL.Query().Get("token")
		}
		if got != token {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" || host == "" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
