package http

import (
	"net/http"

	"classquiz-service/internal/auth"
	"classquiz-service/internal/domain"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin teacher student"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !a.decode(w, r, &req) {
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondErr(w, err)
		return
	}
	user, err := a.catalog.CreateUser(r.Context(), domain.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: hash,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	token, err := a.tokens.Issue(user)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !a.decode(w, r, &req) {
		return
	}
	user, err := a.catalog.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		// A wrong email and a wrong password are indistinguishable to the caller.
		respondErr(w, domain.ErrInvalidCredentials)
		return
	}
	if !auth.CheckPassword(user.Password, req.Password) {
		respondErr(w, domain.ErrInvalidCredentials)
		return
	}
	token, err := a.tokens.Issue(user)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// handleVerify resolves the bearer token back to the current account, the way
// a frontend restores a session on reload.
func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	user, err := a.catalog.GetUser(r.Context(), claims.Subject)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
