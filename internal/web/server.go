// Package web serves the review UI.
//
// Handlers render embedded HTML templates and swap partials htmx-style.
// All review traffic flows through the session manager; handlers never
// write scheduling state to the store directly.
package web

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/recallkit/recall/internal/domain"
	"github.com/recallkit/recall/internal/importer"
	"github.com/recallkit/recall/internal/session"
	"github.com/recallkit/recall/internal/srs"
	"github.com/recallkit/recall/internal/store"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

// Server holds the dependencies for the HTTP server.
type Server struct {
	db           *store.DB
	manager      *session.Manager
	importer     *importer.Importer
	router       *http.ServeMux
	templates    *template.Template
	user         string
	sessionLimit int
}

// Options configures a Server.
type Options struct {
	User         string
	SessionLimit int
}

// NewServer creates and configures a server.
func NewServer(db *store.DB, manager *session.Manager, im *importer.Importer, opts Options) (*Server, error) {
	tpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		db:           db,
		manager:      manager,
		importer:     im,
		router:       http.NewServeMux(),
		templates:    tpl,
		user:         opts.User,
		sessionLimit: opts.SessionLimit,
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// The subtree is compiled in; a failure here is a build defect.
		panic(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	s.router.Handle("/static/", http.StripPrefix("/static/", fileServer))
	s.router.Handle("/{$}", fileServer)

	s.router.HandleFunc("GET /deck", s.handleGetDeck())
	s.router.HandleFunc("POST /session/start", s.handleStartSession())
	s.router.HandleFunc("GET /session/{id}/stats", s.handleSessionStats())
	s.router.HandleFunc("GET /session/{id}/snapshot", s.handleSessionSnapshot())
	s.router.HandleFunc("POST /session/{id}/pause", s.handlePauseSession())
	s.router.HandleFunc("POST /session/{id}/resume", s.handleResumeSession())
	s.router.HandleFunc("GET /review/answer/{card}", s.handleShowAnswer())
	s.router.HandleFunc("POST /review/{card}", s.handlePostReview())

	s.router.HandleFunc("/sources", s.handleSources())
	s.router.HandleFunc("DELETE /sources/{id}", s.handleDeleteSource())
	s.router.HandleFunc("POST /sync", s.handlePostSync())
}

// deckView is the data for the deck overview partial.
type deckView struct {
	Decks    []deckRow
	DueCount int
}

type deckRow struct {
	ID       string
	Name     string
	DueCount int
}

// cardView is the data for the card front and back partials.
type cardView struct {
	SessionID string
	CardID    string
	Prompt    string
	Answer    string
	Context   string
	Stats     session.Stats
}

func (s *Server) handleGetDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := timeNow()
		due, err := s.db.FindDue(r.Context(), s.user, store.Filter{}, now)
		if err != nil {
			s.internalError(w, "listing due cards", err)
			return
		}
		decks, err := s.db.ListDecks(r.Context(), s.user)
		if err != nil {
			s.internalError(w, "listing decks", err)
			return
		}

		view := deckView{DueCount: len(due)}
		perDeck := make(map[string]int)
		for _, cs := range due {
			perDeck[cs.Card.DeckID]++
		}
		for _, d := range decks {
			view.Decks = append(view.Decks, deckRow{ID: d.ID, Name: d.Name, DueCount: perDeck[d.ID]})
		}
		s.render(w, "deck", view)
	}
}

func (s *Server) handleStartSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.Filter{
			DeckID: r.PostFormValue("deck"),
			Limit:  s.sessionLimit,
		}
		sess, err := s.manager.Start(r.Context(), s.user, filter, timeNow())
		if err != nil {
			s.internalError(w, "starting session", err)
			return
		}
		s.renderFront(w, r, sess.ID())
	}
}

// renderFront shows the current card of the session, or the completion
// partial when the queue is exhausted.
func (s *Server) renderFront(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		s.sessionError(w, err)
		return
	}
	stats, err := s.manager.Stats(sessionID)
	if err != nil {
		s.sessionError(w, err)
		return
	}

	cardID, ok := sess.Current()
	if !ok {
		s.render(w, "session_done", cardView{SessionID: sessionID, Stats: stats})
		return
	}

	cs, err := s.db.Get(r.Context(), cardID)
	if err != nil {
		s.internalError(w, "loading card", err)
		return
	}
	s.render(w, "card_front", cardView{
		SessionID: sessionID,
		CardID:    cs.Card.ID,
		Prompt:    cs.Card.Prompt,
		Stats:     stats,
	})
}

func (s *Server) handleShowAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cardID := r.PathValue("card")
		sessionID := r.URL.Query().Get("session")

		cs, err := s.db.Get(r.Context(), cardID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			s.internalError(w, "loading card", err)
			return
		}
		stats, err := s.manager.Stats(sessionID)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		s.render(w, "card_back", cardView{
			SessionID: sessionID,
			CardID:    cs.Card.ID,
			Prompt:    cs.Card.Prompt,
			Answer:    cs.Card.Answer,
			Context:   cs.Card.Context,
			Stats:     stats,
		})
	}
}

func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cardID := r.PathValue("card")
		sessionID := r.PostFormValue("session_id")

		rating, err := srs.ParseRating(r.PostFormValue("grade"))
		if err != nil {
			http.Error(w, "Invalid grade", http.StatusBadRequest)
			return
		}

		now := timeNow()
		if _, err := s.manager.SubmitRating(r.Context(), sessionID, cardID, rating, now); err != nil {
			s.submitError(w, err)
			return
		}

		if err := s.db.AppendReviewLog(r.Context(), domain.ReviewLog{
			CardID:     cardID,
			Rating:     int(rating),
			ReviewedAt: now,
		}); err != nil {
			slog.Warn("failed to append review log", "card", cardID, "error", err)
		}

		s.renderFront(w, r, sessionID)
	}
}

func (s *Server) handleSessionStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.manager.Stats(r.PathValue("id"))
		if err != nil {
			s.sessionError(w, err)
			return
		}
		s.render(w, "session_stats", stats)
	}
}

// handleSessionSnapshot hands the client a serializable checkpoint of the
// session; storing it is the client's business.
func (s *Server) handleSessionSnapshot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.manager.Snapshot(r.PathValue("id"))
		if err != nil {
			s.sessionError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			slog.Warn("failed to encode snapshot", "error", err)
		}
	}
}

func (s *Server) handlePauseSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := s.manager.Pause(id); err != nil {
			s.sessionError(w, err)
			return
		}
		stats, err := s.manager.Stats(id)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		s.render(w, "session_paused", cardView{SessionID: id, Stats: stats})
	}
}

func (s *Server) handleResumeSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if _, err := s.manager.Resume(id); err != nil {
			s.sessionError(w, err)
			return
		}
		s.renderFront(w, r, id)
	}
}

// handleSources handles both GET and POST for the sources page.
func (s *Server) handleSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.renderSources(w, r, "sources")
		case http.MethodPost:
			path := r.PostFormValue("path")
			if path == "" {
				http.Error(w, "Path cannot be empty", http.StatusBadRequest)
				return
			}
			if _, err := s.db.InsertSource(r.Context(), path, importer.SourceType(path)); err != nil {
				s.internalError(w, "inserting source", err)
				return
			}
			s.renderSources(w, r, "source_list")
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseInt64(r.PathValue("id"))
		if err != nil {
			http.Error(w, "Invalid source ID", http.StatusBadRequest)
			return
		}
		if err := s.db.DeleteSource(r.Context(), id); err != nil {
			s.internalError(w, "deleting source", err)
			return
		}
		s.renderSources(w, r, "source_list")
	}
}

// handlePostSync runs a sync pass in the foreground and re-renders the
// source list.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.importer.SyncAll(r.Context()); err != nil {
			s.internalError(w, "syncing sources", err)
			return
		}
		s.render(w, "sync_success", nil)
		s.renderSources(w, r, "source_list")
	}
}

func (s *Server) renderSources(w http.ResponseWriter, r *http.Request, tmpl string) {
	sources, err := s.db.GetAllSources(r.Context())
	if err != nil {
		s.internalError(w, "listing sources", err)
		return
	}
	s.render(w, tmpl, map[string]any{"Sources": sources})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("template render failed", "template", name, "error", err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, action string, err error) {
	slog.Error("request failed", "action", action, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// sessionError maps session lookup failures onto HTTP statuses.
func (s *Server) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		http.Error(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, session.ErrSessionClosed):
		http.Error(w, "Session already completed", http.StatusConflict)
	default:
		s.internalError(w, "session operation", err)
	}
}

// submitError maps rating submission failures onto HTTP statuses.
func (s *Server) submitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, srs.ErrInvalidRating):
		http.Error(w, "Invalid grade", http.StatusBadRequest)
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, store.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, session.ErrSessionClosed), errors.Is(err, session.ErrSessionPaused),
		errors.Is(err, session.ErrCardNotInSession):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, session.ErrStoreUnavailable):
		http.Error(w, "Storage unavailable, retry", http.StatusServiceUnavailable)
	default:
		s.internalError(w, "submitting rating", err)
	}
}
