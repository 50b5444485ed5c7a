package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"yamdb/internal/domain"
)

type signupResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Warning  string `json:"warning,omitempty"`
}

// userResponse renders a profile with privileges derived from the role.
type userResponse struct {
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Bio         string      `json:"bio"`
	Role        domain.Role `json:"role"`
	IsStaff     bool        `json:"is_staff"`
	IsSuperuser bool        `json:"is_superuser"`
}

func newUserResponse(u *domain.User) userResponse {
	p := u.Privileges()
	return userResponse{
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Bio:         u.Bio,
		Role:        u.Role,
		IsStaff:     p.Staff,
		IsSuperuser: p.Superuser,
	}
}

// Signup регистрирует пользователя и отправляет код подтверждения.
func (h *HTTPHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req domain.SignupRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	res, err := h.identity.Register(ctx, req)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.logger.InfoContext(ctx, "Signup handled", slog.String("username", res.User.Username), slog.Bool("created", res.Created))
	h.respondJSON(w, r, http.StatusOK, signupResponse{Username: res.User.Username, Email: res.User.Email, Warning: res.Warning})
}

// ObtainToken обменивает код подтверждения на JWT.
func (h *HTTPHandler) ObtainToken(w http.ResponseWriter, r *http.Request) {
	var req domain.TokenRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	token, err := h.identity.ObtainToken(r.Context(), req)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, domain.TokenResponse{Token: token})
}

// GetMe возвращает профиль текущего пользователя.
func (h *HTTPHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.identity.Me(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, newUserResponse(u))
}

// UpdateMe частично обновляет собственный профиль (без смены роли).
func (h *HTTPHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	u, err := h.identity.UpdateSelf(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, newUserResponse(u))
}

func (h *HTTPHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, ok := h.page(w, r)
	if !ok {
		return
	}
	users, total, err := h.identity.ListUsers(r.Context(), actorFrom(r.Context()), domain.UserListParams{
		Search: r.URL.Query().Get("search"),
		Page:   page,
	})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	h.respondJSON(w, r, http.StatusOK, listResponse{Count: total, Results: out})
}

func (h *HTTPHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	u, err := h.identity.CreateUser(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, newUserResponse(u))
}

func (h *HTTPHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.identity.GetUser(r.Context(), actorFrom(r.Context()), mux.Vars(r)["username"])
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, newUserResponse(u))
}

func (h *HTTPHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	u, err := h.identity.UpdateUser(r.Context(), actorFrom(r.Context()), mux.Vars(r)["username"], req)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, newUserResponse(u))
}

func (h *HTTPHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.identity.DeleteUser(r.Context(), actorFrom(r.Context()), mux.Vars(r)["username"]); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusNoContent, nil)
}
