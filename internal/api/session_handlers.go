package api

import (
	"net/http"

	"github.com/tixly/tixly/internal/session"
	apperrors "github.com/tixly/tixly/pkg/errors"
	"github.com/tixly/tixly/pkg/types"
)

// ConnectRequest selects the acquisition strategy
type ConnectRequest struct {
	Strategy string `json:"strategy"`
}

// handleGetSession handles GET /v1/session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sessions.Snapshot())
}

// handleConnect handles POST /v1/session/connect. It blocks until the
// attempt resolves; a call made while another is in flight returns the
// current (connecting) session.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	kind, err := types.ParseStrategyKind(req.Strategy)
	if err != nil {
		s.writeError(w, r, apperrors.InvalidInput(err.Error()))
		return
	}

	sess, err := s.sessions.Connect(r.Context(), kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

// handleCancelConnect handles DELETE /v1/session/connect
func (s *Server) handleCancelConnect(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.sessions.CancelConnect()})
}

// handleImport handles POST /v1/session/import
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req session.ImportRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess, err := s.sessions.Import(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

// handleDisconnect handles DELETE /v1/session
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sessions.Disconnect(r.Context()))
}

// handleRefreshBalance handles POST /v1/session/balance
func (s *Server) handleRefreshBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.sessions.RefreshBalance(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"balance": balance})
}
