// Package api serves the session database over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/snowflk/statsdb/internal/gameplay/aggregate"
	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/gameplay/statsfile"
	"github.com/snowflk/statsdb/internal/metrics"
	"github.com/snowflk/statsdb/internal/persistence"
	"github.com/snowflk/statsdb/internal/persistence/localdb"
)

const (
	shutdownTimeout = 10 * time.Second
	maxEntries      = 10000 // per request
)

var ErrBadRequest = errors.New("invalid request")

type Server struct {
	db     *localdb.Database
	router *mux.Router
}

func New(db *localdb.Database) *Server {
	s := &Server{db: db, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/sessions", s.handleSessions).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/metadata", s.handleMetadata).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/aggregates", s.handleAggregates).Methods(http.MethodGet)
	r.HandleFunc("/remote/sessions", s.handleRemoteSessions).Methods(http.MethodGet)
	r.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
	r.HandleFunc("/entries", s.handleEntries).Methods(http.MethodPost)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.Use(logRequests)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(log.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"elapsed": time.Since(start),
		}).Debug("Request served")
	})
}

// apiError is written as the body of every failed request
type apiError struct {
	Status   int    `json:"status"`
	Title    string `json:"title"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance"`
}

func statusOf(err error) int {
	switch errors.Cause(err) {
	case persistence.ErrSessionNotExist, persistence.ErrSnapshotNotExist:
		return http.StatusNotFound
	case ErrBadRequest, statsfile.ErrBadSessionKey:
		return http.StatusBadRequest
	case localdb.ErrNoRemote:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	body := apiError{
		Status:   status,
		Title:    http.StatusText(status),
		Instance: r.URL.Path,
	}
	if status != http.StatusInternalServerError {
		body.Detail = err.Error()
	}
	log.WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	}).Warnf("Request failed: %v", err)
	writeJSON(w, status, body)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.db.Sessions()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleRemoteSessions(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}
	keys, err := s.db.RemoteSessions(persistence.Pattern(pattern))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

type metadataResponse struct {
	Players           []statsfile.PlayerInfo `json:"players"`
	Teams             []statsfile.TeamInfo   `json:"teams"`
	Events            map[string]string      `json:"events"`
	WeaponClasses     []string               `json:"weapon_classes"`
	DamageClasses     []string               `json:"damage_classes"`
	PawnClasses       []string               `json:"pawn_classes"`
	ProjectileClasses []string               `json:"projectile_classes"`
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := s.db.Metadata(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := metadataResponse{
		Players:           append([]statsfile.PlayerInfo{}, meta.Players()...),
		Teams:             append([]statsfile.TeamInfo{}, meta.Teams()...),
		Events:            make(map[string]string, len(meta.SupportedEvents)),
		WeaponClasses:     meta.WeaponClasses.Names(),
		DamageClasses:     meta.DamageClasses.Names(),
		PawnClasses:       meta.PawnClasses.Names(),
		ProjectileClasses: meta.ProjectileClasses.Names(),
	}
	for _, md := range meta.SupportedEvents {
		resp.Events[strconv.Itoa(int(md.EventID))] = meta.EventName(md.EventID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	entries, err := s.db.Aggregates(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []aggregate.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func decodeQuery(r *http.Request) (localdb.SearchQuery, error) {
	var q localdb.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		return q, errors.Wrap(ErrBadRequest, err.Error())
	}
	if len(q.SessionIDs) == 0 {
		return q, errors.Wrap(ErrBadRequest, "no sessions")
	}
	if q.Window != nil && q.Window.End < q.Window.Start {
		return q, errors.Wrap(ErrBadRequest, "window ends before it starts")
	}
	return q, nil
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q, err := decodeQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rs, err := s.db.Query(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

type entryResponse struct {
	Session   string         `json:"session"`
	Index     int            `json:"index"`
	EventID   events.EventID `json:"event_id"`
	Event     string         `json:"event"`
	Timestamp float32        `json:"time"`
	Player    int            `json:"player"`
	Target    int            `json:"target"`
	Team      int            `json:"team"`
	Text      string         `json:"text"`
}

func newEntryResponse(e *localdb.Entry) entryResponse {
	resp := entryResponse{
		Session:   e.SessionID,
		Index:     e.Index,
		EventID:   e.Header.EventID,
		Event:     e.Metadata.EventName(e.Header.EventID),
		Timestamp: e.Header.TimeStamp,
		Player:    events.IndexNone,
		Target:    events.IndexNone,
		Team:      events.IndexNone,
		Text:      e.Describe(),
	}
	if p, ok := e.Payload.(events.PlayerEvent); ok {
		resp.Player = p.PlayerIndex()
	}
	if t, ok := e.Payload.(events.TargetEvent); ok {
		resp.Target = t.TargetIndex()
	}
	if t, ok := e.Payload.(events.TeamEvent); ok {
		resp.Team = t.TeamIndex()
	}
	return resp
}

// handleEntries runs a query and returns the decoded events, at most maxEntries
func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	q, err := decodeQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rs, err := s.db.Query(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries := make([]entryResponse, 0, min(rs.Len(), maxEntries))
	err = s.db.VisitEntries(rs, localdb.VisitorFunc(func(e *localdb.Entry) error {
		if len(entries) == maxEntries {
			return localdb.ErrStopVisit
		}
		entries = append(entries, newEntryResponse(e))
		return nil
	}))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
