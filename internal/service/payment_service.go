package service

import (
	"context"
	"fmt"
	"time"

	"posterminal/internal/apierror"
	"posterminal/internal/cart"
	"posterminal/internal/dto"
	"posterminal/internal/model"
	"posterminal/internal/payment"
	"posterminal/internal/repository"

	"github.com/rs/zerolog/log"
)

type PaymentService interface {
	// Submit persists the cart as an order (create, or update while editing)
	// and records the payment against the usable session.
	Submit(ctx context.Context, c model.Cart, sel payment.Selection, req dto.CheckoutRequest) (*model.Receipt, error)
}

// UnpaidOrderError reports a payment that failed after its order was saved.
// Retrying against Order updates that order instead of creating another.
type UnpaidOrderError struct {
	Order model.OrderRef
	Err   error
}

func (e *UnpaidOrderError) Error() string {
	return fmt.Sprintf("order %s saved but unpaid: %v", e.Order.ID, e.Err)
}

func (e *UnpaidOrderError) Unwrap() error { return e.Err }

type paymentService struct {
	sessions SessionManager
	orders   repository.OrderStore
	gateway  repository.PaymentGateway
	now      func() time.Time
}

func NewPaymentService(sessions SessionManager, orders repository.OrderStore, gateway repository.PaymentGateway) PaymentService {
	return &paymentService{sessions: sessions, orders: orders, gateway: gateway, now: time.Now}
}

func (s *paymentService) Submit(ctx context.Context, c model.Cart, sel payment.Selection, req dto.CheckoutRequest) (*model.Receipt, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	sessionID, ok := s.sessions.UsableSessionID()
	if !ok {
		return nil, apierror.ErrNoOpenSession
	}
	if len(c.Items) == 0 {
		return nil, apierror.Invalid("items", "required")
	}

	method := sel.Method()
	totals := cart.ComputeTotals(c.Items)
	tendered := optionalMoney(req.TenderedAmount)
	if method != model.MethodCash {
		tendered = totals.Total
	}
	if err := payment.Validate(method, tendered, totals.Total); err != nil {
		return nil, err
	}

	order, err := s.orders.SaveOrder(ctx, repository.OrderDraft{
		ID:         c.EditingOrderID,
		SessionID:  sessionID,
		LocationID: s.sessions.LocationID(),
		Items:      c.Items,
		Totals:     totals,
	})
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("order save failed")
		return nil, err
	}

	records := payment.BuildRecords(method, tendered, totals.Total, req.ReferenceNumber, s.now())
	receipt, err := s.gateway.SubmitPayment(ctx, order.ID, sessionID, records, req.PrintReceipt)
	if err != nil {
		log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Str("order_id", order.ID.String()).
			Msg("payment submission failed")
		return nil, &UnpaidOrderError{Order: *order, Err: err}
	}
	if receipt.OrderCode == "" {
		receipt.OrderCode = order.Code
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("order_id", order.ID.String()).
		Str("method", string(method)).
		Str("total", totals.Total.StringFixed(2)).
		Msg("payment recorded")
	return receipt, nil
}
