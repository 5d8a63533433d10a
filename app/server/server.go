// Package server provides read-only status endpoints of the bot
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/tg-helpdesk/app/broadcast"
	"github.com/umputun/tg-helpdesk/app/registry"
)

// Server is a status server with liveness and statistics
type Server struct {
	Params
}

// Params defines server parameters
type Params struct {
	ListenAddr string
	Version    string
	Registry   StatsProvider
	Promotion  PromotionProvider
	Sessions   SessionCounter // optional
	RateLimit  float64        // requests per second per ip, 10 if not set
}

// StatsProvider returns registry counters
type StatsProvider interface {
	Stats() registry.Stats
}

// PromotionProvider returns broadcast rotation state
type PromotionProvider interface {
	State() broadcast.PromotionState
}

// SessionCounter returns number of active conversations
type SessionCounter interface {
	Len() int
}

// New makes status server
func New(params Params) *Server {
	if params.RateLimit <= 0 {
		params.RateLimit = 10
	}
	return &Server{Params: params}
}

// Run starts the server and blocks until ctx is canceled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.ListenAddr, Handler: s.routes(), ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown status server: %v", err)
		} else {
			log.Printf("[INFO] status server stopped")
		}
	}()

	log.Printf("[INFO] start status server on %s", s.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to run server: %w", err)
	}
	return nil
}

func (s *Server) routes() http.Handler {
	lmt := tollbooth.NewLimiter(s.RateLimit, nil)
	lmt.SetIPLookup(limiter.IPLookup{Name: "RemoteAddr"})

	router := routegroup.New(http.NewServeMux())
	router.Use(rest.Recoverer(lgr.Default()))
	router.Use(rest.AppInfo("tg-helpdesk", "umputun", s.Version), rest.Ping)
	router.Use(tollbooth.HTTPMiddleware(lmt))
	router.HandleFunc("GET /stats", s.statsCtrl)
	return router
}

// GET /stats
func (s *Server) statsCtrl(w http.ResponseWriter, _ *http.Request) {
	st := s.Registry.Stats()
	resp := rest.JSON{"started": st.Started, "interacted": st.Interacted}
	if s.Promotion != nil {
		ps := s.Promotion.State()
		promo := rest.JSON{"index": ps.Index, "active": ps.Active,
			"min_delay": ps.MinDelay.String(), "max_delay": ps.MaxDelay.String()}
		if !ps.LastSent.IsZero() {
			promo["last_sent"] = ps.LastSent.Format(time.RFC3339)
		}
		resp["promotion"] = promo
	}
	if s.Sessions != nil {
		resp["sessions"] = s.Sessions.Len()
	}
	rest.RenderJSON(w, resp)
}
