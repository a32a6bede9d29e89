package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/redsinal/questlog/internal/app"
	"github.com/redsinal/questlog/internal/httpjson"
)

type SeriesHandler struct {
	series *app.SeriesService
}

func NewSeriesHandler(series *app.SeriesService) *SeriesHandler {
	return &SeriesHandler{series: series}
}

func (h *SeriesHandler) Routes(r chi.Router) {
	r.Route("/series", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Post("/{id}/mark-read", h.markRead)
		r.Post("/{id}/continue", h.continueReading)
		r.Delete("/{id}", h.remove)
	})
}

func (h *SeriesHandler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	dto, message, err := h.series.Add(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, app.ErrConflict) {
			httpjson.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httpjson.Write(w, http.StatusCreated, map[string]any{"series": dto, "message": message})
}

func (h *SeriesHandler) list(w http.ResponseWriter, r *http.Request) {
	opts := app.ListOptions{
		Query: r.URL.Query().Get("q"),
		Sort:  r.URL.Query().Get("sort"),
	}
	httpjson.Write(w, http.StatusOK, h.series.List(opts))
}

func (h *SeriesHandler) get(w http.ResponseWriter, r *http.Request) {
	dto, err := h.series.Get(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.WriteError(w, http.StatusNotFound, "not found")
		return
	}
	httpjson.Write(w, http.StatusOK, dto)
}

// update applies partial edits: only the fields present in the body change.
// An empty coverUrl explicitly clears the cover, so presence is tracked with
// pointers rather than zero values.
func (h *SeriesHandler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Title     *string `json:"title"`
		SeriesURL *string `json:"seriesUrl"`
		CoverURL  *string `json:"coverUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Title == nil && req.SeriesURL == nil && req.CoverURL == nil {
		httpjson.WriteError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	var (
		dto app.SeriesDTO
		err error
	)
	if req.Title != nil {
		dto, err = h.series.Rename(r.Context(), id, *req.Title)
		if err != nil {
			h.writeUpdateError(w, err)
			return
		}
	}
	if req.SeriesURL != nil {
		dto, err = h.series.EditURL(r.Context(), id, *req.SeriesURL)
		if err != nil {
			h.writeUpdateError(w, err)
			return
		}
	}
	if req.CoverURL != nil {
		dto, err = h.series.SetCover(r.Context(), id, *req.CoverURL)
		if err != nil {
			h.writeUpdateError(w, err)
			return
		}
	}
	httpjson.Write(w, http.StatusOK, dto)
}

func (h *SeriesHandler) writeUpdateError(w http.ResponseWriter, err error) {
	if errors.Is(err, app.ErrNotFound) {
		httpjson.WriteError(w, http.StatusNotFound, "not found")
		return
	}
	httpjson.WriteError(w, http.StatusBadRequest, err.Error())
}

func (h *SeriesHandler) markRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Chapter int `json:"chapter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Chapter <= 0 {
		httpjson.WriteError(w, http.StatusBadRequest, "chapter must be positive")
		return
	}

	dto, err := h.series.MarkRead(r.Context(), id, req.Chapter)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, dto)
}

func (h *SeriesHandler) continueReading(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dto, chapter, chapterURL, err := h.series.ContinueReading(r.Context(), id)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpjson.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{
		"series":     dto,
		"chapter":    chapter,
		"chapterUrl": chapterURL,
	})
}

func (h *SeriesHandler) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.series.Remove(r.Context(), id); err != nil {
		if errors.Is(err, app.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"id": strings.TrimSpace(id), "status": "removed"})
}
