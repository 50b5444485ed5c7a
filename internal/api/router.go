// internal/api/router.go
package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewHTTPRouter собирает маршруты /api/v1. Пути оканчиваются на "/".
func NewHTTPRouter(h *HTTPHandler) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.RequestIDMiddleware)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(h.AuthMiddleware)

	authRouter := api.PathPrefix("/auth").Subrouter()
	authRouter.Use(h.RateLimitMiddleware)
	authRouter.HandleFunc("/signup/", h.Signup).Methods(http.MethodPost)
	authRouter.HandleFunc("/token/", h.ObtainToken).Methods(http.MethodPost)

	// /users/me/ регистрируется раньше /users/{username}/
	api.HandleFunc("/users/", h.ListUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/", h.CreateUser).Methods(http.MethodPost)
	api.HandleFunc("/users/me/", h.GetMe).Methods(http.MethodGet)
	api.HandleFunc("/users/me/", h.UpdateMe).Methods(http.MethodPatch)
	api.HandleFunc("/users/{username}/", h.GetUser).Methods(http.MethodGet)
	api.HandleFunc("/users/{username}/", h.UpdateUser).Methods(http.MethodPatch)
	api.HandleFunc("/users/{username}/", h.DeleteUser).Methods(http.MethodDelete)

	api.HandleFunc("/categories/", h.ListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories/", h.CreateCategory).Methods(http.MethodPost)
	api.HandleFunc("/categories/{slug}/", h.DeleteCategory).Methods(http.MethodDelete)

	api.HandleFunc("/genres/", h.ListGenres).Methods(http.MethodGet)
	api.HandleFunc("/genres/", h.CreateGenre).Methods(http.MethodPost)
	api.HandleFunc("/genres/{slug}/", h.DeleteGenre).Methods(http.MethodDelete)

	const title = "/titles/{title_id:[0-9]+}"
	api.HandleFunc("/titles/", h.ListTitles).Methods(http.MethodGet)
	api.HandleFunc("/titles/", h.CreateTitle).Methods(http.MethodPost)
	api.HandleFunc(title+"/", h.GetTitle).Methods(http.MethodGet)
	api.HandleFunc(title+"/", h.UpdateTitle).Methods(http.MethodPatch)
	api.HandleFunc(title+"/", h.DeleteTitle).Methods(http.MethodDelete)

	const review = title + "/reviews/{review_id:[0-9]+}"
	api.HandleFunc(title+"/reviews/", h.ListReviews).Methods(http.MethodGet)
	api.HandleFunc(title+"/reviews/", h.CreateReview).Methods(http.MethodPost)
	api.HandleFunc(review+"/", h.GetReview).Methods(http.MethodGet)
	api.HandleFunc(review+"/", h.UpdateReview).Methods(http.MethodPatch)
	api.HandleFunc(review+"/", h.DeleteReview).Methods(http.MethodDelete)

	const comment = review + "/comments/{comment_id:[0-9]+}"
	api.HandleFunc(review+"/comments/", h.ListComments).Methods(http.MethodGet)
	api.HandleFunc(review+"/comments/", h.CreateComment).Methods(http.MethodPost)
	api.HandleFunc(comment+"/", h.GetComment).Methods(http.MethodGet)
	api.HandleFunc(comment+"/", h.UpdateComment).Methods(http.MethodPatch)
	api.HandleFunc(comment+"/", h.DeleteComment).Methods(http.MethodDelete)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	return r
}
