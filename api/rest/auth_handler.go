package rest

import (
	"net/http"

	"github.com/zlnvch/flashlist/models"
	"github.com/zlnvch/flashlist/service"
)

func (h *Handler) allowAnonymous(w http.ResponseWriter, r *http.Request) bool {
	if !h.limiters.allow("addr:" + clientAddr(r)) {
		sendError(w, http.StatusTooManyRequests, models.ErrCodeRateLimited, "too many requests")
		return false
	}
	return true
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if !h.allowAnonymous(w, r) {
		return
	}

	var req service.RegisterParams
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.Service.Register(r.Context(), req)
	if err != nil {
		sendServiceError(w, "Register", err)
		return
	}

	sendResponse(w, http.StatusCreated, "registered", user)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.allowAnonymous(w, r) {
		return
	}

	var req service.LoginParams
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.Service.Login(r.Context(), req)
	if err != nil {
		sendServiceError(w, "Login", err)
		return
	}

	sendResponse(w, http.StatusOK, "logged in", result)
}

func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	sendResponse(w, http.StatusOK, "ok", user)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	_, claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	if err := h.Service.Logout(r.Context(), claims); err != nil {
		sendServiceError(w, "Logout", err)
		return
	}

	sendResponse[any](w, http.StatusOK, "logged out", nil)
}

func (h *Handler) HandleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteUser(r.Context(), user); err != nil {
		sendServiceError(w, "Delete user", err)
		return
	}

	sendResponse(w, http.StatusOK, "account deleted", models.DeletedItem{Id: user.Id})
}
