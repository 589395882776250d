package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gatehouse/internal/audit"
	"github.com/nerrad567/gatehouse/internal/auth"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin authenticates an operator and returns an access token.
// With auth disabled there is nothing to log in to and the route reports 404.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeNotFound(w, "operator authentication is disabled")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	token, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Warn("operator login failed", "username", req.Username)
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("operator login error", "error", err)
		writeInternalError(w, "login failed")
		return
	}

	s.auditLog(audit.ActionLogin, audit.EntityOperator, req.Username, req.Username, nil)
	writeJSON(w, http.StatusOK, token)
}
