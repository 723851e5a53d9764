package api

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"

	"github.com/tixly/tixly/internal/contracts"
	apperrors "github.com/tixly/tixly/pkg/errors"
	"github.com/tixly/tixly/pkg/types"
)

// DefaultEventCount is the page size when ?count is absent
const DefaultEventCount = 20

// MaxEventCount caps ?count
const MaxEventCount = 100

// BuyTicketsRequest is the body of POST /v1/events/{id}/tickets
type BuyTicketsRequest struct {
	Quantity uint64 `json:"quantity"`
}

// TransferTicketsRequest is the body of POST /v1/events/{id}/transfers
type TransferTicketsRequest struct {
	To       string `json:"to"`
	Quantity uint64 `json:"quantity"`
}

// ConfirmRequest is the body of POST /v1/transactions/{hash}/confirm
type ConfirmRequest struct {
	Method string `json:"method"`
}

// facade binds the contracts to the connected session
func (s *Server) facade() (*contracts.Facade, error) {
	sess, signer := s.sessions.Active()
	if !sess.IsConnected() {
		return nil, apperrors.ErrNotConnected
	}
	return s.contracts.Bind(common.HexToAddress(sess.Address), signer), nil
}

// handleListEvents handles GET /v1/events?category=&count=
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	count := uint64(DefaultEventCount)
	if raw := q.Get("count"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || n == 0 || n > MaxEventCount {
			s.writeError(w, r, apperrors.InvalidInput("count must be between 1 and 100"))
			return
		}
		count = n
	}

	var category *types.EventCategory
	if raw := q.Get("category"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 8)
		if err != nil || types.EventCategory(n) > types.CategoryOther {
			s.writeError(w, r, apperrors.InvalidInput("unknown category"))
			return
		}
		c := types.EventCategory(n)
		category = &c
	}

	events, err := s.contracts.ListEvents(r.Context(), category, count)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// handleCreateEvent handles POST /v1/events
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req contracts.EventInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.facade()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	pending, err := f.CreateEvent(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, pending)
}

// handleGetEvent handles GET /v1/events/{id}
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.contracts.Event(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, event)
}

// handleBuyTickets handles POST /v1/events/{id}/tickets
func (s *Server) handleBuyTickets(w http.ResponseWriter, r *http.Request) {
	var req BuyTicketsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.facade()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	pending, err := f.BuyTickets(r.Context(), mux.Vars(r)["id"], req.Quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, pending)
}

// handleTransferTickets handles POST /v1/events/{id}/transfers
func (s *Server) handleTransferTickets(w http.ResponseWriter, r *http.Request) {
	var req TransferTicketsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.facade()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	pending, err := f.TransferTickets(r.Context(), mux.Vars(r)["id"], req.To, req.Quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, pending)
}

// handleGetFavorite handles GET /v1/events/{id}/favorite
func (s *Server) handleGetFavorite(w http.ResponseWriter, r *http.Request) {
	f, err := s.facade()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	fav, err := f.IsFavorite(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"favorite": fav})
}

// handleFavorite handles PUT /v1/events/{id}/favorite
func (s *Server) handleFavorite(w http.ResponseWriter, r *http.Request) {
	f, err := s.facade()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	pending, err := f.FavoriteEvent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, pending)
}

// handleUnfavorite handles DELETE /v1/events/{id}/favorite
func (s *Server) handleUnfavorite(w http.ResponseWriter, r *http.Request) {
	f, err := s.facade()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	pending, err := f.UnfavoriteEvent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, pending)
}

// handleListTickets handles GET /v1/tickets
func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	f, err := s.facade()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tickets, err := f.Tickets(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"tickets": tickets})
}

// handleConfirm handles POST /v1/transactions/{hash}/confirm. It blocks
// until the receipt arrives or the confirmation budget runs out.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["hash"]
	hashBytes, err := hexutil.Decode(raw)
	if err != nil || len(hashBytes) != common.HashLength {
		s.writeError(w, r, apperrors.InvalidInput("hash must be 32 bytes of 0x-prefixed hex"))
		return
	}

	var req ConfirmRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	receipt, err := s.contracts.Confirm(r.Context(), contracts.PendingTx{
		Hash:   common.BytesToHash(hashBytes),
		Method: req.Method,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, receipt)
}
