package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jonboulle/clockwork"
	"pkt.systems/wayfare/internal/logx"
	"pkt.systems/wayfare/internal/routes"
	"pkt.systems/wayfare/internal/watchdog"
	"pkt.systems/wayfare/schema"
)

const maxBodyBytes = 64 << 10

// Entrance runs the app-entry flow for a bearer token.
type Entrance interface {
	EnterWithToken(ctx context.Context, token string) (schema.Landing, error)
}

// Markers stores the pending booking marker.
type Markers interface {
	Get(ctx context.Context) (schema.PendingBooking, bool, error)
	Set(ctx context.Context, marker schema.PendingBooking) error
	Clear(ctx context.Context) error
}

// Watchdog runs pending booking checks on demand.
type Watchdog interface {
	Check(ctx context.Context) (watchdog.Outcome, error)
	Poke()
}

// Deps wires the server to the shell components. Watchdog and Metrics are
// optional.
type Deps struct {
	Entrance Entrance
	Markers  Markers
	Watchdog Watchdog
	Metrics  http.Handler
	Clock    clockwork.Clock
}

// Server serves the browser-facing shell.
type Server struct {
	cfg      Config
	entrance Entrance
	markers  Markers
	watchdog Watchdog
	metrics  http.Handler
	clock    clockwork.Clock
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Entrance == nil {
		return nil, errors.New("http entrance is required")
	}
	if deps.Markers == nil {
		return nil, errors.New("http pending booking markers are required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Server{
		cfg:      cfg,
		entrance: deps.Entrance,
		markers:  deps.Markers,
		watchdog: deps.Watchdog,
		metrics:  deps.Metrics,
		clock:    clock,
	}, nil
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleEntry)
	mux.HandleFunc("/api/landing", s.handleLanding)
	mux.HandleFunc("/api/pending-booking", s.handlePending)
	mux.HandleFunc("/api/pending-booking/check", s.handleCheck)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.cfg.Metrics && s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return withRequestLogging(mountBasePath(s.cfg.BasePath, mux))
}

func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	landing, err := s.enter(r)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	nav := redirectNavigator(w, r, s.cfg.BasePath)
	if err := nav.Navigate(r.Context(), landing.Target, landing.Path); err != nil {
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	landing, err := s.enter(r)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, landing)
}

func (s *Server) enter(r *http.Request) (schema.Landing, error) {
	log := logx.Ctx(r.Context())
	landing, err := s.entrance.EnterWithToken(r.Context(), s.bearerToken(r))
	if err != nil {
		log.Warn("http entry failed", "err", err)
		return schema.Landing{}, err
	}
	if landing.Session != nil {
		log = logx.WithUser(r.Context(), landing.Session.UserID())
	}
	logx.WithTarget(log, landing.Target, landing.Path).Debug("http entry resolved", "authenticated", landing.Authenticated, "rule", landing.Rule)
	return landing, nil
}

// redirectNavigator navigates the browser with a 303.
func redirectNavigator(w http.ResponseWriter, r *http.Request, basePath string) routes.Navigator {
	return routes.NavigatorFunc(func(_ context.Context, _ schema.NavigationTarget, path string) error {
		if path == "" {
			return errors.New("empty navigation path")
		}
		http.Redirect(w, r, withBasePath(basePath, path), http.StatusSeeOther)
		return nil
	})
}

type pendingPayload struct {
	BookingID   schema.BookingID `json:"booking_id"`
	CreatedAtMS int64            `json:"created_at_ms,omitempty"`
}

type pendingView struct {
	BookingID   schema.BookingID `json:"booking_id"`
	CreatedAtMS int64            `json:"created_at_ms"`
	AgeMS       int64            `json:"age_ms"`
}

func (s *Server) pendingView(marker schema.PendingBooking) pendingView {
	return pendingView{
		BookingID:   marker.BookingID,
		CreatedAtMS: marker.CreatedAtEpochMillis(),
		AgeMS:       marker.Elapsed(s.clock.Now()).Milliseconds(),
	}
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())
	switch r.Method {
	case http.MethodGet:
		marker, ok, err := s.markers.Get(r.Context())
		if err != nil && !errors.Is(err, schema.ErrInvalidMarker) {
			log.Warn("http pending booking read failed", "err", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if err != nil {
			log.Debug("http pending booking unreadable", "err", err)
		}
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, s.pendingView(marker))
	case http.MethodPut:
		var payload pendingPayload
		if err := decodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), &payload); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err))
			return
		}
		if payload.CreatedAtMS < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: created_at_ms must be positive", schema.ErrInvalidRequest))
			return
		}
		marker := schema.PendingBooking{BookingID: payload.BookingID, CreatedAt: s.clock.Now()}
		if payload.CreatedAtMS > 0 {
			marker = schema.PendingBookingFromMillis(payload.BookingID, payload.CreatedAtMS)
		}
		if err := s.markers.Set(r.Context(), marker); err != nil {
			if errors.Is(err, schema.ErrInvalidBooking) || errors.Is(err, schema.ErrInvalidRequest) {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			log.Warn("http pending booking write failed", "err", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		logx.WithBooking(log, marker.BookingID).Info("http pending booking armed")
		if s.watchdog != nil {
			s.watchdog.Poke()
		}
		writeJSON(w, http.StatusCreated, s.pendingView(marker))
	case http.MethodDelete:
		if err := s.markers.Clear(r.Context()); err != nil {
			log.Warn("http pending booking clear failed", "err", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		log.Info("http pending booking cleared")
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.watchdog == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("watchdog disabled"))
		return
	}
	outcome, err := s.watchdog.Check(r.Context())
	if err != nil {
		logx.Ctx(r.Context()).Warn("http watchdog check failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcome": outcome})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// bearerToken reads the API token from the session cookie or the
// Authorization header.
func (s *Server) bearerToken(r *http.Request) string {
	if s.cfg.SessionCookie != "" {
		if cookie, err := r.Cookie(s.cfg.SessionCookie); err == nil && strings.TrimSpace(cookie.Value) != "" {
			return strings.TrimSpace(cookie.Value)
		}
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
