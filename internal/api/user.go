package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"example.com/chat-broker/core"
	"github.com/go-playground/validator/v10"
)

type UserHandler struct {
	userStore  core.UserStore
	sessions   *core.SessionStore
	cookieName string
	sessionTTL time.Duration
}

func NewUserHandler(userStore core.UserStore, sessions *core.SessionStore, cookieName string, sessionTTL time.Duration) *UserHandler {
	return &UserHandler{
		userStore:  userStore,
		sessions:   sessions,
		cookieName: cookieName,
		sessionTTL: sessionTTL,
	}
}

type SignupPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type SigninPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SigninResponse struct {
	Username string    `json:"username"`
	ExpireAt time.Time `json:"expireAt"`
}

type UserResponse struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

func (h *UserHandler) SignupHandler(w http.ResponseWriter, r *http.Request) error {
	var payload SignupPayload

	if err := DecodeJson(r.Body, &payload); err != nil {
		return NewApiError("invalid payload", http.StatusBadRequest)
	}
	defer r.Body.Close()

	input := core.User{
		Username: payload.Username,
		Password: payload.Password,
		Name:     payload.Name,
	}

	if err := h.userStore.CreateUser(r.Context(), input); err != nil {
		if errors.Is(err, core.ErrConflictedUser) {
			return NewApiError(err.Error(), http.StatusConflict)
		}
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return NewApiError(err.Error(), http.StatusBadRequest)
		}
		return err
	}

	w.WriteHeader(http.StatusCreated)

	return nil
}

func (h *UserHandler) SigninHandler(w http.ResponseWriter, r *http.Request) error {
	var payload SigninPayload
	if err := DecodeJson(r.Body, &payload); err != nil {
		return NewApiError("invalid payload", http.StatusBadRequest)
	}
	defer r.Body.Close()

	ok, err := h.userStore.ComparePassword(r.Context(), payload.Username, payload.Password)
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return NewApiError("bad credentials", http.StatusUnauthorized)
	}

	token, err := h.sessions.Create(payload.Username, h.sessionTTL)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Path:     "/",
	})

	WriteJsonResponse(w, SigninResponse{
		Username: payload.Username,
		ExpireAt: time.Now().Add(h.sessionTTL),
	})

	return nil
}

// SignoutHandler destroys the session if one is presented. It succeeds
// either way, so signing out twice is harmless.
func (h *UserHandler) SignoutHandler(w http.ResponseWriter, r *http.Request) error {
	if cookie, err := r.Cookie(h.cookieName); err == nil && cookie.Value != "" {
		h.sessions.Destroy(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Path:     "/",
	})

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *UserHandler) MeHandler(w http.ResponseWriter, r *http.Request) error {
	session := SessionFromRequest(r)
	user, err := h.userStore.GetUserByUsername(r.Context(), session.Username)
	if err != nil {
		return fmt.Errorf("get user by username: %w", err)
	}

	if user == nil {
		return NewApiError("unauthenticated", http.StatusUnauthorized)
	}

	WriteJsonResponse(w, UserResponse{Username: user.Username, Name: user.Name})
	return nil
}
