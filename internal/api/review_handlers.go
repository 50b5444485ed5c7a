package api

import (
	"net/http"

	"yamdb/internal/domain"
)

// reviewPath resolves {title_id} and {review_id}.
func (h *HTTPHandler) reviewPath(w http.ResponseWriter, r *http.Request) (titleID, reviewID int64, ok bool) {
	if titleID, ok = h.pathID(w, r, "title_id"); !ok {
		return
	}
	reviewID, ok = h.pathID(w, r, "review_id")
	return
}

func (h *HTTPHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	titleID, ok := h.pathID(w, r, "title_id")
	if !ok {
		return
	}
	page, ok := h.page(w, r)
	if !ok {
		return
	}
	items, total, err := h.reviews.ListReviews(r.Context(), titleID, page)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, listResponse{Count: total, Results: items})
}

func (h *HTTPHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	titleID, ok := h.pathID(w, r, "title_id")
	if !ok {
		return
	}
	var req domain.CreateReviewRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	review, err := h.reviews.CreateReview(r.Context(), actorFrom(r.Context()), titleID, req)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, review)
}

func (h *HTTPHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, ok := h.reviewPath(w, r)
	if !ok {
		return
	}
	review, err := h.reviews.GetReview(r.Context(), titleID, reviewID)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, review)
}

func (h *HTTPHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, ok := h.reviewPath(w, r)
	if !ok {
		return
	}
	var req domain.UpdateReviewRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	review, err := h.reviews.UpdateReview(r.Context(), actorFrom(r.Context()), titleID, reviewID, req)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, review)
}

func (h *HTTPHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, ok := h.reviewPath(w, r)
	if !ok {
		return
	}
	if err := h.reviews.DeleteReview(r.Context(), actorFrom(r.Context()), titleID, reviewID); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusNoContent, nil)
}

// --- comments ---

func (h *HTTPHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, ok := h.reviewPath(w, r)
	if !ok {
		return
	}
	page, ok := h.page(w, r)
	if !ok {
		return
	}
	items, total, err := h.reviews.ListComments(r.Context(), titleID, reviewID, page)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, listResponse{Count: total, Results: items})
}

func (h *HTTPHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, ok := h.reviewPath(w, r)
	if !ok {
		return
	}
	var req domain.CommentRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	c, err := h.reviews.CreateComment(r.Context(), actorFrom(r.Context()), titleID, reviewID, req)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, c)
}

func (h *HTTPHandler) GetComment(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, ok := h.reviewPath(w, r)
	if !ok {
		return
	}
	commentID, ok := h.pathID(w, r, "comment_id")
	if !ok {
		return
	}
	c, err := h.reviews.GetComment(r.Context(), titleID, reviewID, commentID)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, c)
}

func (h *HTTPHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, ok := h.reviewPath(w, r)
	if !ok {
		return
	}
	commentID, ok := h.pathID(w, r, "comment_id")
	if !ok {
		return
	}
	var req domain.CommentRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	c, err := h.reviews.UpdateComment(r.Context(), actorFrom(r.Context()), titleID, reviewID, commentID, req)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, c)
}

func (h *HTTPHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, ok := h.reviewPath(w, r)
	if !ok {
		return
	}
	commentID, ok := h.pathID(w, r, "comment_id")
	if !ok {
		return
	}
	if err := h.reviews.DeleteComment(r.Context(), actorFrom(r.Context()), titleID, reviewID, commentID); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusNoContent, nil)
}
