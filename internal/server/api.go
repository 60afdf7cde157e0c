package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ppiankov/spacetraveling/internal/feed"
	"github.com/ppiankov/spacetraveling/internal/post"
	"github.com/ppiankov/spacetraveling/internal/privacy"
	"github.com/ppiankov/spacetraveling/internal/view"
)

type viewResponse struct {
	ViewID   string      `json:"view_id"`
	Posts    []post.Post `json:"posts"`
	NextPage *string     `json:"next_page"`
	State    string      `json:"state"`
	Error    string      `json:"error,omitempty"`
}

type loadMoreResponse struct {
	Posts    []post.Post `json:"posts"` // appended by this call
	NextPage *string     `json:"next_page"`
	State    string      `json:"state"`
	Outcome  string      `json:"outcome"`
	Error    string      `json:"error,omitempty"`
}

func (s *Server) handleAPICreateView(w http.ResponseWriter, r *http.Request) {
	id, acc, err := s.createView(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to create view")
		writeError(w, http.StatusBadGateway, "failed to load first page")
		return
	}
	writeJSON(w, http.StatusCreated, toViewResponse(id, acc.Snapshot()))
}

func (s *Server) handleAPIView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "viewID")
	acc, err := s.views.Get(id)
	if errors.Is(err, view.ErrNotFound) {
		writeError(w, http.StatusNotFound, "view not found")
		return
	}
	writeJSON(w, http.StatusOK, toViewResponse(id, acc.Snapshot()))
}

func (s *Server) handleAPILoadMore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "viewID")
	acc, err := s.views.Get(id)
	if errors.Is(err, view.ErrNotFound) {
		writeError(w, http.StatusNotFound, "view not found")
		return
	}

	res := s.loadMore(r, id, acc)
	snap := acc.Snapshot()

	out := loadMoreResponse{
		Posts:    res.Appended,
		NextPage: cursorPtr(snap.Cursor),
		State:    snap.State.String(),
		Outcome:  res.Outcome.String(),
	}
	if out.Posts == nil {
		out.Posts = []post.Post{}
	}
	status := http.StatusOK
	if res.Err != nil {
		out.Error = res.Err.Error()
		status = http.StatusBadGateway
	}
	writeJSON(w, status, out)
}

func (s *Server) handleAPIDeleteView(w http.ResponseWriter, r *http.Request) {
	if !s.views.Delete(chi.URLParam(r, "viewID")) {
		writeError(w, http.StatusNotFound, "view not found")
		return
	}
	s.metrics.SetViewsActive(s.views.Len())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"views":   s.views.Len(),
	})
}

func toViewResponse(id string, snap feed.Snapshot) viewResponse {
	out := viewResponse{
		ViewID:   id,
		Posts:    snap.Posts,
		NextPage: cursorPtr(snap.Cursor),
		State:    snap.State.String(),
	}
	if out.Posts == nil {
		out.Posts = []post.Post{}
	}
	if snap.Err != nil {
		out.Error = snap.Err.Error()
	}
	return out
}

// cursorPtr exposes the next-page cursor without the credentials it may carry.
// The server follows the real cursor itself.
func cursorPtr(cursor string) *string {
	if cursor == "" {
		return nil
	}
	shown := privacy.URL(cursor)
	return &shown
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
