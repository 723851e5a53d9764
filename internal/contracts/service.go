// Package contracts is the client facade over the ticketing contracts:
// EventFactory, UserTicketHub and EventDiscovery. Writes are two-phase:
// submit returns a PendingTx, Confirm waits for its receipt.
package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/tixly/tixly/internal/logger"
	"github.com/tixly/tixly/internal/metrics"
	"github.com/tixly/tixly/internal/mockdata"
	"github.com/tixly/tixly/internal/retry"
	"github.com/tixly/tixly/internal/units"
	"github.com/tixly/tixly/internal/validation"
	"github.com/tixly/tixly/internal/wallet"
	apperrors "github.com/tixly/tixly/pkg/errors"
	"github.com/tixly/tixly/pkg/types"
)

// Chain is the RPC surface the facade needs; *eth.Client satisfies it.
type Chain interface {
	ChainIDBig() *big.Int
	Call(ctx context.Context, from common.Address, to common.Address, data []byte) ([]byte, error)
	BuildTransaction(ctx context.Context, from common.Address, to *common.Address, value *big.Int, data []byte) (*ethtypes.Transaction, error)
	SendRawTransaction(ctx context.Context, signedTx *ethtypes.Transaction) (common.Hash, error)
	Receipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)
}

// Addresses are the deployed contract addresses
type Addresses struct {
	EventFactory   common.Address
	UserTicketHub  common.Address
	EventDiscovery common.Address
}

// Options configures a Service
type Options struct {
	Confirm retry.Policy
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Transaction statuses reported in Receipt
const (
	StatusSuccess  = "success"
	StatusReverted = "reverted"
)

// PendingTx is a submitted, not yet confirmed transaction
type PendingTx struct {
	Hash   common.Hash `json:"hash"`
	Method string      `json:"method"`
}

// Receipt is the confirmed outcome of a PendingTx. EventID is set for
// createEvent.
type Receipt struct {
	Hash        common.Hash `json:"hash"`
	Method      string      `json:"method,omitempty"`
	BlockNumber uint64      `json:"blockNumber"`
	Status      string      `json:"status"`
	EventID     string      `json:"eventId,omitempty"`
}

// Service holds the contract bindings and serves read-only queries. A nil
// chain serves reads from the offline catalogue.
type Service struct {
	chain   Chain
	addrs   Addresses
	confirm retry.Policy
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService creates a Service. Pass a nil chain when no RPC endpoint is
// configured.
func NewService(chain Chain, addrs Addresses, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Confirm.Interval <= 0 {
		opts.Confirm.Interval = 2 * time.Second
	}
	if opts.Confirm.Timeout <= 0 {
		opts.Confirm.Timeout = 3 * time.Minute
	}
	return &Service{
		chain:   chain,
		addrs:   addrs,
		confirm: opts.Confirm,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
}

// Offline reports whether reads come from the offline catalogue
func (s *Service) Offline() bool {
	return s.chain == nil
}

// Bind returns a facade acting as owner. A nil signer yields a read-only
// facade whose writes fail with read_only.
func (s *Service) Bind(owner common.Address, signer wallet.Signer) *Facade {
	return &Facade{svc: s, owner: owner, signer: signer}
}

// FeaturedEvents returns up to count featured event IDs
func (s *Service) FeaturedEvents(ctx context.Context, count uint64) ([]string, error) {
	if s.Offline() {
		return mockdata.Featured(int(count)), nil
	}
	out, err := s.call(ctx, eventDiscoveryABI, s.addrs.EventDiscovery, "getFeaturedEvents", new(big.Int).SetUint64(count))
	if err != nil {
		return nil, err
	}
	return idStrings(out[0])
}

// EventsByCategory returns up to count event IDs in category
func (s *Service) EventsByCategory(ctx context.Context, category types.EventCategory, count uint64) ([]string, error) {
	if s.Offline() {
		return mockdata.ByCategory(category, int(count)), nil
	}
	out, err := s.call(ctx, eventDiscoveryABI, s.addrs.EventDiscovery, "getEventsByCategory", uint8(category), new(big.Int).SetUint64(count))
	if err != nil {
		return nil, err
	}
	return idStrings(out[0])
}

// EventMetadata returns the discovery metadata of an event
func (s *Service) EventMetadata(ctx context.Context, eventID string) (*types.EventMetadata, error) {
	id, err := parseEventID(eventID)
	if err != nil {
		return nil, err
	}
	if s.Offline() {
		m, ok := mockdata.Metadata(eventID)
		if !ok {
			return nil, apperrors.ErrNotFound
		}
		return &m, nil
	}

	out, err := s.call(ctx, eventDiscoveryABI, s.addrs.EventDiscovery, "getEventMetadata", id)
	if err != nil {
		return nil, err
	}
	return &types.EventMetadata{
		Category:    types.EventCategory(out[0].(uint8)),
		Location:    out[1].(string),
		Description: out[2].(string),
		ImageHash:   out[3].(string),
		CreatedAt:   out[4].(*big.Int).String(),
		IsFeatured:  out[5].(bool),
		Popularity:  out[6].(*big.Int).String(),
	}, nil
}

// Event returns an event with its metadata merged in
func (s *Service) Event(ctx context.Context, eventID string) (*types.Event, error) {
	e, _, err := s.event(ctx, eventID)
	return e, err
}

// ListEvents returns up to count events: featured ones, or those in
// category when it is non-nil.
func (s *Service) ListEvents(ctx context.Context, category *types.EventCategory, count uint64) ([]types.Event, error) {
	var (
		ids []string
		err error
	)
	if category != nil {
		ids, err = s.EventsByCategory(ctx, *category, count)
	} else {
		ids, err = s.FeaturedEvents(ctx, count)
	}
	if err != nil {
		return nil, err
	}

	events := make([]types.Event, 0, len(ids))
	for _, id := range ids {
		e, err := s.Event(ctx, id)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, nil
}

// IsEventFavorite reports whether owner has favorited the event
func (s *Service) IsEventFavorite(ctx context.Context, owner string, eventID string) (bool, error) {
	addr, err := parseAddress(owner)
	if err != nil {
		return false, err
	}
	id, err := parseEventID(eventID)
	if err != nil {
		return false, err
	}
	if s.Offline() {
		return mockdata.IsFavorite(owner, eventID), nil
	}

	out, err := s.call(ctx, userTicketHubABI, s.addrs.UserTicketHub, "isEventFavorite", addr, id)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// TicketCount returns how many tickets owner holds for the event
func (s *Service) TicketCount(ctx context.Context, owner string, eventID string) (uint64, error) {
	addr, err := parseAddress(owner)
	if err != nil {
		return 0, err
	}
	id, err := parseEventID(eventID)
	if err != nil {
		return 0, err
	}
	if s.Offline() {
		for _, h := range mockdata.Tickets(owner) {
			if h.EventID == eventID {
				return parseCount(h.Count)
			}
		}
		return 0, nil
	}
	return s.ticketCount(ctx, addr, id)
}

// UserTickets returns every event owner attends with the ticket count held
func (s *Service) UserTickets(ctx context.Context, owner string) ([]types.TicketHolding, error) {
	addr, err := parseAddress(owner)
	if err != nil {
		return nil, err
	}
	if s.Offline() {
		return mockdata.Tickets(owner), nil
	}

	out, err := s.call(ctx, userTicketHubABI, s.addrs.UserTicketHub, "getUserAttendingEvents", addr)
	if err != nil {
		return nil, err
	}
	ids, ok := out[0].([]*big.Int)
	if !ok {
		return nil, apperrors.NetworkError("unexpected getUserAttendingEvents result")
	}

	holdings := make([]types.TicketHolding, 0, len(ids))
	for _, id := range ids {
		count, err := s.ticketCount(ctx, addr, id)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, types.TicketHolding{
			EventID: id.String(),
			Count:   fmt.Sprintf("%d", count),
		})
	}
	return holdings, nil
}

// Confirm waits for tx to be mined within the confirmation budget. A
// reverted transaction returns its receipt together with a
// transaction_failed error.
func (s *Service) Confirm(ctx context.Context, tx PendingTx) (*Receipt, error) {
	if s.Offline() {
		return nil, apperrors.NetworkError(wallet.ErrNoChain.Error())
	}

	var mined *ethtypes.Receipt
	_, err := retry.Poll(ctx, s.confirm, func(ctx context.Context) (bool, error) {
		r, err := s.chain.Receipt(ctx, tx.Hash)
		if err != nil || r == nil {
			return false, err
		}
		mined = r
		return true, nil
	})
	if err != nil {
		switch {
		case retry.IsTimeout(err):
			s.metrics.Transaction(tx.Method, "timeout")
			return nil, apperrors.Timeout(fmt.Sprintf("transaction %s not mined within %s", tx.Hash.Hex(), s.confirm.Timeout))
		case errors.Is(err, context.Canceled):
			return nil, apperrors.UserCancelled()
		default:
			return nil, apperrors.NetworkError(err.Error())
		}
	}

	receipt := &Receipt{
		Hash:        tx.Hash,
		Method:      tx.Method,
		BlockNumber: mined.BlockNumber.Uint64(),
		Status:      StatusSuccess,
	}
	if mined.Status != ethtypes.ReceiptStatusSuccessful {
		receipt.Status = StatusReverted
		s.metrics.Transaction(tx.Method, "reverted")
		logger.Warn(ctx, "transaction reverted", "method", tx.Method, "hash", tx.Hash.Hex())
		return receipt, apperrors.TransactionFailed("transaction reverted")
	}

	if tx.Method == MethodCreateEvent {
		id, ok := s.createdEventID(mined)
		if !ok {
			s.metrics.Transaction(tx.Method, "failed")
			return receipt, apperrors.TransactionFailed("event creation failed: no EventCreated log")
		}
		receipt.EventID = id
	}

	s.metrics.Transaction(tx.Method, "confirmed")
	logger.Info(ctx, "transaction confirmed", "method", tx.Method, "hash", tx.Hash.Hex(), "block", receipt.BlockNumber)
	return receipt, nil
}

func (s *Service) createdEventID(r *ethtypes.Receipt) (string, bool) {
	topic := eventFactoryABI.Events["EventCreated"].ID
	for _, l := range r.Logs {
		if l.Address != s.addrs.EventFactory || len(l.Topics) < 2 || l.Topics[0] != topic {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[1].Bytes()).String(), true
	}
	return "", false
}

// event returns the event and its unit price in base units
func (s *Service) event(ctx context.Context, eventID string) (*types.Event, *big.Int, error) {
	id, err := parseEventID(eventID)
	if err != nil {
		return nil, nil, err
	}
	if s.Offline() {
		e, ok := mockdata.Event(eventID)
		if !ok {
			return nil, nil, apperrors.ErrNotFound
		}
		price, err := units.ParseEther(e.Price)
		if err != nil {
			return nil, nil, apperrors.NewWithDetail(apperrors.ErrCodeInternalError, "Invalid catalogue price", err.Error(), http.StatusInternalServerError)
		}
		return &e, price, nil
	}

	out, err := s.call(ctx, eventDiscoveryABI, s.addrs.EventDiscovery, "getEvent", id)
	if err != nil {
		return nil, nil, err
	}
	price := out[2].(*big.Int)
	e := &types.Event{
		ID:           id.String(),
		Name:         out[0].(string),
		Date:         out[1].(*big.Int).Int64(),
		Price:        units.FormatEther(price),
		TicketCount:  out[3].(*big.Int).Uint64(),
		TicketRemain: out[4].(*big.Int).Uint64(),
		Organizer:    out[5].(common.Address).Hex(),
	}

	meta, err := s.EventMetadata(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	e.Category = meta.Category
	e.Location = meta.Location
	e.Description = meta.Description
	e.ImageURL = meta.ImageHash
	e.IsFeatured = meta.IsFeatured
	return e, price, nil
}

func (s *Service) ticketCount(ctx context.Context, owner common.Address, id *big.Int) (uint64, error) {
	out, err := s.call(ctx, userTicketHubABI, s.addrs.UserTicketHub, "getUserTicketCount", owner, id)
	if err != nil {
		return 0, err
	}
	count := out[0].(*big.Int)
	if !count.IsUint64() {
		return 0, apperrors.NetworkError("ticket count out of range")
	}
	return count.Uint64(), nil
}

func (s *Service) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("failed to encode %s: %v", method, err))
	}

	raw, err := s.chain.Call(ctx, common.Address{}, to, data)
	if err != nil {
		logger.Debug(ctx, "contract call failed", "method", method, "error", err)
		return nil, classify(err)
	}

	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, apperrors.NetworkError(fmt.Sprintf("failed to decode %s: %v", method, err))
	}
	if len(out) != len(contract.Methods[method].Outputs) {
		return nil, apperrors.NetworkError(fmt.Sprintf("unexpected %s result", method))
	}
	return out, nil
}

// classify maps RPC errors onto app errors. Reverts become
// transaction_failed, everything else network_error.
func classify(err error) *apperrors.AppError {
	if appErr, ok := apperrors.IsAppError(err); ok {
		return appErr
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) || strings.Contains(err.Error(), "execution reverted") {
		return apperrors.TransactionFailed(err.Error())
	}
	return apperrors.NetworkError(err.Error())
}

func idStrings(v interface{}) ([]string, error) {
	ids, ok := v.([]*big.Int)
	if !ok {
		return nil, apperrors.NetworkError("unexpected event id list")
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out, nil
}

func parseEventID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || id.Sign() < 0 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid event id %q", s))
	}
	return id, nil
}

func parseAddress(s string) (common.Address, error) {
	if err := validation.ValidateEthereumAddress(s); err != nil {
		return common.Address{}, apperrors.InvalidInput(err.Error())
	}
	return common.HexToAddress(s), nil
}

func parseCount(s string) (uint64, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || !n.IsUint64() {
		return 0, apperrors.InvalidInput(fmt.Sprintf("invalid count %q", s))
	}
	return n.Uint64(), nil
}

// TicketView is a holding joined with its event when the event resolves
type TicketView struct {
	types.TicketHolding
	Event *types.Event `json:"event,omitempty"`
}
