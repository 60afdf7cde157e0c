package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ppiankov/spacetraveling/internal/cms"
	"github.com/ppiankov/spacetraveling/internal/feed"
	"github.com/ppiankov/spacetraveling/internal/logging"
	"github.com/ppiankov/spacetraveling/internal/post"
	"github.com/ppiankov/spacetraveling/internal/render"
)

type listPage struct {
	ViewID        string
	Posts         []post.Post
	HasMore       bool
	Error         string
	LoadMoreLabel string
}

type postPage struct {
	Article post.Article
}

type errorPage struct {
	Status  int
	Message string
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	id, acc, err := s.createView(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to create view")
		s.renderError(w, http.StatusBadGateway, "Não foi possível carregar os posts.")
		return
	}
	s.renderList(w, http.StatusOK, id, acc.Snapshot())
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "viewID")
	acc, err := s.views.Get(id)
	if err != nil {
		s.renderError(w, http.StatusNotFound, "Esta lista expirou. Volte para a página inicial.")
		return
	}
	s.renderList(w, http.StatusOK, id, acc.Snapshot())
}

func (s *Server) handleLoadMore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "viewID")
	acc, err := s.views.Get(id)
	if err != nil {
		s.renderError(w, http.StatusNotFound, "Esta lista expirou. Volte para a página inicial.")
		return
	}

	res := s.loadMore(r, id, acc)
	if res.Outcome == feed.OutcomeFailed {
		s.renderList(w, http.StatusBadGateway, id, acc.Snapshot())
		return
	}
	http.Redirect(w, r, "/views/"+id, http.StatusSeeOther)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	rec, err := s.content.GetByUID(r.Context(), s.docType, uid)
	if errors.Is(err, cms.ErrNotFound) {
		s.renderError(w, http.StatusNotFound, "Post não encontrado.")
		return
	}
	if err != nil {
		s.logger.WithError(err).WithField("uid", uid).Error("Failed to fetch post")
		s.renderError(w, http.StatusBadGateway, "Não foi possível carregar o post.")
		return
	}

	article, err := s.normalizer.NormalizeArticle(rec)
	if err != nil {
		s.logger.WithError(err).WithField("uid", uid).Error("Malformed post")
		s.renderError(w, http.StatusBadGateway, "Não foi possível carregar o post.")
		return
	}
	s.render(w, http.StatusOK, "post", postPage{Article: article})
}

// loadMore runs one LoadMore on acc and records its outcome.
func (s *Server) loadMore(r *http.Request, id string, acc *feed.Accumulator) feed.Result {
	res := acc.LoadMore(r.Context())
	s.metrics.ObserveLoadMore(res.Outcome)

	entry := s.logger.WithFields(logging.Fields{
		"view_id":  id,
		"outcome":  res.Outcome.String(),
		"appended": len(res.Appended),
	})
	if res.Err != nil {
		entry.WithError(res.Err).Warn("Load more failed")
	} else {
		entry.Debug("Load more")
	}
	return res
}

func (s *Server) renderList(w http.ResponseWriter, status int, id string, snap feed.Snapshot) {
	data := listPage{
		ViewID:        id,
		Posts:         snap.Posts,
		HasMore:       snap.HasMore(),
		LoadMoreLabel: render.LoadMoreLabel,
	}
	if snap.State == feed.StateFailed && snap.Err != nil {
		data.Error = "Não foi possível carregar mais posts. Tente novamente."
	}
	s.render(w, status, "list", data)
}

func (s *Server) renderError(w http.ResponseWriter, status int, message string) {
	s.render(w, status, "error", errorPage{Status: status, Message: message})
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.WithError(err).WithField("template", name).Error("Template error")
	}
}
