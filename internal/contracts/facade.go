package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tixly/tixly/internal/logger"
	"github.com/tixly/tixly/internal/units"
	"github.com/tixly/tixly/internal/validation"
	"github.com/tixly/tixly/internal/wallet"
	apperrors "github.com/tixly/tixly/pkg/errors"
)

// Write method names, as reported in PendingTx.Method
const (
	MethodCreateEvent     = "createEvent"
	MethodBuyTickets      = "buyTickets"
	MethodTransferTickets = "transferTickets"
	MethodFavoriteEvent   = "favoriteEvent"
	MethodUnfavoriteEvent = "unfavoriteEvent"
)

// EventInput describes a new event. Price is a decimal ETH amount.
type EventInput struct {
	Name        string    `json:"name"`
	Date        time.Time `json:"date"`
	Price       string    `json:"price"`
	TicketCount uint64    `json:"ticketCount"`
}

// Facade is the Service bound to a session's address and signer
type Facade struct {
	svc    *Service
	owner  common.Address
	signer wallet.Signer
}

// ReadOnly reports whether the facade has no signer
func (f *Facade) ReadOnly() bool {
	return f.signer == nil
}

// Owner returns the bound address
func (f *Facade) Owner() common.Address {
	return f.owner
}

// CreateEvent submits EventFactory.createEvent
func (f *Facade) CreateEvent(ctx context.Context, in EventInput) (*PendingTx, error) {
	if err := f.writable(); err != nil {
		return nil, err
	}
	price, err := units.ParseEther(in.Price)
	if err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid price: %v", err))
	}
	if err := validation.ValidateEventInput(in.Name, in.Date, price, in.TicketCount, f.svc.now()); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	data, err := eventFactoryABI.Pack(MethodCreateEvent,
		strings.TrimSpace(in.Name),
		big.NewInt(in.Date.Unix()),
		price,
		new(big.Int).SetUint64(in.TicketCount),
	)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	return f.submit(ctx, MethodCreateEvent, f.svc.addrs.EventFactory, nil, data)
}

// BuyTickets submits UserTicketHub.buyTickets paying price × quantity. The
// quantity is checked against the event's remaining inventory first.
func (f *Facade) BuyTickets(ctx context.Context, eventID string, quantity uint64) (*PendingTx, error) {
	if err := f.writable(); err != nil {
		return nil, err
	}
	id, err := parseEventID(eventID)
	if err != nil {
		return nil, err
	}
	if quantity == 0 {
		return nil, apperrors.InvalidInput("quantity must be a positive integer")
	}

	event, price, err := f.svc.event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	total, err := TotalPrice(price, quantity, event.TicketRemain)
	if err != nil {
		return nil, err
	}

	data, err := userTicketHubABI.Pack(MethodBuyTickets, id, new(big.Int).SetUint64(quantity))
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	return f.submit(ctx, MethodBuyTickets, f.svc.addrs.UserTicketHub, total, data)
}

// TransferTickets submits UserTicketHub.transferTickets after checking the
// recipient and the quantity held
func (f *Facade) TransferTickets(ctx context.Context, eventID string, to string, quantity uint64) (*PendingTx, error) {
	if err := f.writable(); err != nil {
		return nil, err
	}
	id, err := parseEventID(eventID)
	if err != nil {
		return nil, err
	}
	recipient, err := parseAddress(to)
	if err != nil {
		return nil, err
	}
	if recipient == f.owner {
		return nil, apperrors.InvalidInput("cannot transfer tickets to yourself")
	}
	if quantity == 0 {
		return nil, apperrors.InvalidInput("quantity must be a positive integer")
	}

	held, err := f.svc.ticketCount(ctx, f.owner, id)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateTransferQuantity(quantity, held); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	data, err := userTicketHubABI.Pack(MethodTransferTickets, id, recipient, new(big.Int).SetUint64(quantity))
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	return f.submit(ctx, MethodTransferTickets, f.svc.addrs.UserTicketHub, nil, data)
}

// FavoriteEvent submits UserTicketHub.favoriteEvent
func (f *Facade) FavoriteEvent(ctx context.Context, eventID string) (*PendingTx, error) {
	return f.toggleFavorite(ctx, MethodFavoriteEvent, eventID)
}

// UnfavoriteEvent submits UserTicketHub.unfavoriteEvent
func (f *Facade) UnfavoriteEvent(ctx context.Context, eventID string) (*PendingTx, error) {
	return f.toggleFavorite(ctx, MethodUnfavoriteEvent, eventID)
}

// IsFavorite reports whether the bound owner favorited the event
func (f *Facade) IsFavorite(ctx context.Context, eventID string) (bool, error) {
	return f.svc.IsEventFavorite(ctx, f.owner.Hex(), eventID)
}

// Tickets returns the bound owner's holdings
func (f *Facade) Tickets(ctx context.Context) ([]TicketView, error) {
	holdings, err := f.svc.UserTickets(ctx, f.owner.Hex())
	if err != nil {
		return nil, err
	}
	views := make([]TicketView, 0, len(holdings))
	for _, h := range holdings {
		v := TicketView{TicketHolding: h}
		if e, err := f.svc.Event(ctx, h.EventID); err == nil {
			v.Event = e
		} else {
			logger.Debug(ctx, "ticket event lookup failed", "event_id", h.EventID, "error", err)
		}
		views = append(views, v)
	}
	return views, nil
}

// Confirm waits for a pending transaction; see Service.Confirm
func (f *Facade) Confirm(ctx context.Context, tx PendingTx) (*Receipt, error) {
	return f.svc.Confirm(ctx, tx)
}

func (f *Facade) toggleFavorite(ctx context.Context, method, eventID string) (*PendingTx, error) {
	if err := f.writable(); err != nil {
		return nil, err
	}
	id, err := parseEventID(eventID)
	if err != nil {
		return nil, err
	}
	data, err := userTicketHubABI.Pack(method, id)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	return f.submit(ctx, method, f.svc.addrs.UserTicketHub, nil, data)
}

func (f *Facade) writable() error {
	if f.signer == nil {
		return apperrors.ErrReadOnly
	}
	if f.svc.Offline() {
		return apperrors.NetworkError(wallet.ErrNoChain.Error())
	}
	return nil
}

// submit builds, signs and broadcasts a call to contract
func (f *Facade) submit(ctx context.Context, method string, contract common.Address, value *big.Int, data []byte) (*PendingTx, error) {
	chain := f.svc.chain

	tx, err := chain.BuildTransaction(ctx, f.owner, &contract, value, data)
	if err != nil {
		f.svc.metrics.Transaction(method, "failed")
		logger.Warn(ctx, "failed to build transaction", "method", method, "error", err)
		return nil, classify(err)
	}

	signed, err := f.signer.SignTransaction(ctx, tx, chain.ChainIDBig())
	if err != nil {
		f.svc.metrics.Transaction(method, "failed")
		return nil, apperrors.TransactionFailed(fmt.Sprintf("failed to sign %s: %v", method, err))
	}

	hash, err := chain.SendRawTransaction(ctx, signed)
	if err != nil {
		f.svc.metrics.Transaction(method, "failed")
		logger.Warn(ctx, "failed to send transaction", "method", method, "error", err)
		return nil, classify(err)
	}

	f.svc.metrics.Transaction(method, "submitted")
	logger.Info(ctx, "transaction submitted", "method", method, "hash", hash.Hex(), "from", f.owner.Hex())
	return &PendingTx{Hash: hash, Method: method}, nil
}

// TotalPrice returns unitPrice × quantity in base units after checking
// quantity against the remaining inventory.
func TotalPrice(unitPrice *big.Int, quantity, remaining uint64) (*big.Int, error) {
	if unitPrice == nil || unitPrice.Sign() < 0 {
		return nil, apperrors.InvalidInput("invalid ticket price")
	}
	if err := validation.ValidateQuantity(quantity, remaining); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	return new(big.Int).Mul(unitPrice, new(big.Int).SetUint64(quantity)), nil
}
