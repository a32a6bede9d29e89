package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/redsinal/questlog/internal/app"
	"github.com/redsinal/questlog/internal/httpjson"
)

type AniListHandler struct {
	svc *app.AniListService
}

func NewAniListHandler(svc *app.AniListService) *AniListHandler {
	return &AniListHandler{svc: svc}
}

func (h *AniListHandler) Routes(r chi.Router) {
	r.Route("/anilist", func(r chi.Router) {
		r.Get("/login", h.login)
		r.Get("/callback", h.callback)
		r.Post("/logout", h.logout)
		r.Get("/status", h.status)
	})
}

// login redirects the browser to the AniList authorization page.
func (h *AniListHandler) login(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.svc.AuthURL(), http.StatusFound)
}

// callback is the OAuth redirect target. Both outcomes return 200 with a
// human-readable message, matching what the user sees after the dance.
func (h *AniListHandler) callback(w http.ResponseWriter, r *http.Request) {
	message, err := h.svc.HandleRedirect(r.Context(), r.URL.Query())
	if err != nil {
		if errors.Is(err, app.ErrMissingClientSecret) {
			httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpjson.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"message": message})
}

func (h *AniListHandler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context()); err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *AniListHandler) status(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, map[string]bool{
		"authenticated": h.svc.Authenticated(r.Context()),
	})
}

func (s *Server) handleAniListSync(w http.ResponseWriter, r *http.Request) {
	summary, err := s.anilist.SyncAll(r.Context(), s.series.Snapshot(), s.progressPublisher("sync.progress"))
	if err != nil {
		if errors.Is(err, app.ErrNotAuthenticated) {
			httpjson.WriteError(w, http.StatusUnauthorized, "not connected to AniList")
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"summary": summary})
}
