package handler

import (
	"net/http"
	"strings"

	"codejudge/internal/common"
	"codejudge/internal/common/security"

	"github.com/go-chi/jwtauth/v5"
)

type WebSocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string)
}

type RealtimeHandler struct {
	hub WebSocketServer
}

func NewRealtimeHandler(hub WebSocketServer) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// ServeHTTP authenticates with the Authorization header or, since browsers
// cannot set headers on websocket upgrades, a ?token= query parameter.
func (h *RealtimeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if token, claims, err := jwtauth.FromContext(r.Context()); err == nil && token != nil {
		userID, _ = security.GetUserIDFromClaims(claims)
	}
	if userID == "" {
		raw := strings.TrimSpace(r.URL.Query().Get("token"))
		if raw == "" {
			common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
			return
		}
		id, _, err := security.ParseToken(raw)
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token: "+err.Error())
			return
		}
		userID = id
	}

	h.hub.ServeWS(w, r, userID)
}
