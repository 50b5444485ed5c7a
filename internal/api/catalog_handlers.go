package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"yamdb/internal/domain"
)

func (h *HTTPHandler) slugParams(w http.ResponseWriter, r *http.Request) (domain.SlugListParams, bool) {
	page, ok := h.page(w, r)
	return domain.SlugListParams{Search: r.URL.Query().Get("search"), Page: page}, ok
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	params, ok := h.slugParams(w, r)
	if !ok {
		return
	}
	items, total, err := h.catalog.ListCategories(r.Context(), params)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, listResponse{Count: total, Results: items})
}

func (h *HTTPHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSlugRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	c, err := h.catalog.CreateCategory(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, c)
}

func (h *HTTPHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteCategory(r.Context(), actorFrom(r.Context()), mux.Vars(r)["slug"]); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusNoContent, nil)
}

func (h *HTTPHandler) ListGenres(w http.ResponseWriter, r *http.Request) {
	params, ok := h.slugParams(w, r)
	if !ok {
		return
	}
	items, total, err := h.catalog.ListGenres(r.Context(), params)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, listResponse{Count: total, Results: items})
}

func (h *HTTPHandler) CreateGenre(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSlugRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	g, err := h.catalog.CreateGenre(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, g)
}

func (h *HTTPHandler) DeleteGenre(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteGenre(r.Context(), actorFrom(r.Context()), mux.Vars(r)["slug"]); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusNoContent, nil)
}

// --- titles ---

func (h *HTTPHandler) ListTitles(w http.ResponseWriter, r *http.Request) {
	page, ok := h.page(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	params := domain.TitleListParams{
		GenreSlug:    q.Get("genre"),
		CategorySlug: q.Get("category"),
		Name:         q.Get("name"),
		Page:         page,
	}
	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			h.respondDomainError(w, r, domain.NewValidationError("year", "must be an integer"))
			return
		}
		params.Year = year
	}
	titles, total, err := h.catalog.ListTitles(r.Context(), params)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, listResponse{Count: total, Results: titles})
}

func (h *HTTPHandler) GetTitle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "title_id")
	if !ok {
		return
	}
	t, err := h.catalog.GetTitle(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, t)
}

func (h *HTTPHandler) CreateTitle(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTitleRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	t, err := h.catalog.CreateTitle(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, t)
}

func (h *HTTPHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "title_id")
	if !ok {
		return
	}
	var req domain.UpdateTitleRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	t, err := h.catalog.UpdateTitle(r.Context(), actorFrom(r.Context()), id, req)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, t)
}

func (h *HTTPHandler) DeleteTitle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "title_id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteTitle(r.Context(), actorFrom(r.Context()), id); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusNoContent, nil)
}
