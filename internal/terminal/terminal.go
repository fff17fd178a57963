// Package terminal is the single entry point the till UI drives. It owns the
// cart, the payment selection and the lookup trackers, and resets all of them
// together after a checkout, a shift close or a void.
package terminal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"posterminal/internal/apierror"
	"posterminal/internal/cart"
	"posterminal/internal/dto"
	"posterminal/internal/model"
	"posterminal/internal/payment"
	"posterminal/internal/reconciliation"
	"posterminal/internal/repository"
	"posterminal/internal/search"
	"posterminal/internal/service"
	"posterminal/internal/similarity"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Deps struct {
	Sessions       service.SessionManager
	Payments       service.PaymentService
	Reports        service.ReportService
	Categories     service.CategoryService
	Catalog        repository.ProductCatalog
	SearchDebounce time.Duration
}

type Terminal struct {
	sessions   service.SessionManager
	payments   service.PaymentService
	reports    service.ReportService
	categories service.CategoryService
	catalog    repository.ProductCatalog

	mu            sync.Mutex
	cart          model.Cart
	selection     payment.Selection
	productSearch *search.Tracker

	// inFlight blocks a second payment or close while one is pending.
	inFlight atomic.Bool
}

func New(d Deps) *Terminal {
	return &Terminal{
		sessions:      d.Sessions,
		payments:      d.Payments,
		reports:       d.Reports,
		categories:    d.Categories,
		catalog:       d.Catalog,
		selection:     payment.NewSelection(),
		productSearch: search.NewTracker(d.SearchDebounce),
	}
}

// ── Session ───────────────────────────────────────────────────────────────────

func (t *Terminal) Load(ctx context.Context) (service.SessionState, error) {
	return t.sessions.Load(ctx, t.sessions.LocationID())
}

func (t *Terminal) Session() service.SessionManager { return t.sessions }

func (t *Terminal) OpenDrawer(ctx context.Context, openingBalance string, notes *string) (*model.Session, error) {
	return t.sessions.Open(ctx, dto.OpenSessionRequest{
		LocationID:     t.sessions.LocationID(),
		OpeningBalance: openingBalance,
		Notes:          notes,
	})
}

func (t *Terminal) ForceCloseStale(ctx context.Context, req dto.ForceCloseRequest) (*model.Session, error) {
	if !t.inFlight.CompareAndSwap(false, true) {
		return nil, apierror.ErrSubmissionInFlight
	}
	defer t.inFlight.Store(false)
	return t.sessions.ForceClose(ctx, req)
}

// ── Cart ──────────────────────────────────────────────────────────────────────

// AddCatalogItem adds a quick-access item with its own default quantity.
// modifier multiplies the step by ten.
func (t *Terminal) AddCatalogItem(p model.Product, modifier bool) error {
	return t.add(cart.CatalogItem(p), modifier)
}

func (t *Terminal) AddSearchResult(p model.Product, modifier bool) error {
	return t.add(cart.SearchResult(p), modifier)
}

func (t *Terminal) AddCustomItem(item model.CartItem) error {
	return t.add(cart.CustomItem(item), false)
}

func (t *Terminal) add(c cart.Candidate, modifier bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cart.AddItem(&t.cart, c, cart.Increment(c, modifier))
}

func (t *Terminal) UpdateQuantity(productID uuid.UUID, quantity int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cart.UpdateQuantity(&t.cart, productID, quantity)
}

// UpdateLine edits one line by position; custom lines may share a product id.
func (t *Terminal) UpdateLine(index, quantity int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cart.UpdateLine(&t.cart, index, quantity)
}

func (t *Terminal) RemoveItem(productID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cart.RemoveItem(&t.cart, productID)
}

// EditOrder replaces the cart with a persisted order's lines; the next
// checkout updates that order instead of creating one.
func (t *Terminal) EditOrder(orderID uuid.UUID, items []model.CartItem) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cart.LoadOrder(&t.cart, orderID, items)
}

// Cart returns a copy of the current cart.
func (t *Terminal) Cart() model.Cart {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyCart(t.cart)
}

func (t *Terminal) Totals() model.Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cart.ComputeTotals(t.cart.Items)
}

// ── Payment selection ─────────────────────────────────────────────────────────

func (t *Terminal) SelectCustomer(walkIn bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selection.SetCustomer(walkIn)
}

func (t *Terminal) SelectMethod(m model.PaymentMethod) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selection.SetMethod(m)
}

func (t *Terminal) Selection() payment.Selection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selection
}

// ChangeDue reports the change for a cash tender against the current total.
func (t *Terminal) ChangeDue(tendered decimal.Decimal) (decimal.Decimal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := cart.ComputeTotals(t.cart.Items).Total
	change := payment.ChangeAmount(tendered, total)
	return change, payment.IsSufficient(t.selection.Method(), change)
}

// ── Checkout ──────────────────────────────────────────────────────────────────

// Checkout submits the cart. On success cart, selection and search state are
// reset together. On a collaborator failure nothing is reset and the session
// is reloaded from the store. If the order was saved but the payment failed,
// the cart switches to editing that order so a retry updates it.
func (t *Terminal) Checkout(ctx context.Context, req dto.CheckoutRequest) (*model.Receipt, error) {
	if !t.inFlight.CompareAndSwap(false, true) {
		return nil, apierror.ErrSubmissionInFlight
	}
	defer t.inFlight.Store(false)

	t.mu.Lock()
	snapshot, sel := copyCart(t.cart), t.selection
	t.mu.Unlock()

	receipt, err := t.payments.Submit(ctx, snapshot, sel, req)
	if err != nil {
		t.keepUnpaidOrder(err)
		t.reconcileAfter(ctx, err)
		return nil, err
	}
	t.reset()
	return receipt, nil
}

// Void discards the cart without submitting anything.
func (t *Terminal) Void() {
	t.reset()
	log.Info().Msg("cart voided")
}

// ── Reports ───────────────────────────────────────────────────────────────────

func (t *Terminal) XReport(ctx context.Context) (*reconciliation.XReport, error) {
	return t.reports.XReport(ctx)
}

func (t *Terminal) PreviewClose(ctx context.Context, req dto.CloseSessionRequest) (*reconciliation.Result, error) {
	return t.reports.Preview(ctx, req)
}

// CloseShift produces the Z report. Once the store has closed the session
// the terminal resets, even if archiving the report failed.
func (t *Terminal) CloseShift(ctx context.Context, req dto.CloseSessionRequest) (*model.ZReport, error) {
	if !t.inFlight.CompareAndSwap(false, true) {
		return nil, apierror.ErrSubmissionInFlight
	}
	defer t.inFlight.Store(false)

	z, err := t.reports.ZReport(ctx, req)
	if z != nil {
		t.reset()
	}
	return z, err
}

func (t *Terminal) StoredZReport(ctx context.Context, sessionID uuid.UUID) (*model.ZReport, error) {
	return t.reports.StoredZReport(ctx, sessionID)
}

// ── Lookups ───────────────────────────────────────────────────────────────────

// SearchProducts is debounced; a call superseded by a newer one returns
// search.ErrStale. A blank query cancels whatever is in flight.
func (t *Terminal) SearchProducts(ctx context.Context, query string) ([]model.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		t.productSearch.Invalidate()
		return nil, nil
	}
	return search.Run(ctx, t.productSearch, func(ctx context.Context) ([]model.Product, error) {
		return t.catalog.SearchProducts(ctx, query)
	})
}

func (t *Terminal) CheckCategoryName(ctx context.Context, name string, excludeID uuid.UUID) (similarity.Conflict, error) {
	return t.categories.Lookup(ctx, name, excludeID)
}

func (t *Terminal) CreateCategory(ctx context.Context, req dto.CategoryRequest) (*model.Category, error) {
	return t.categories.Create(ctx, req)
}

func (t *Terminal) UpdateCategory(ctx context.Context, id uuid.UUID, req dto.CategoryRequest) (*model.Category, error) {
	return t.categories.Update(ctx, id, req)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (t *Terminal) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	cart.Reset(&t.cart)
	t.selection = payment.NewSelection()
	t.productSearch.Invalidate()
}

func (t *Terminal) keepUnpaidOrder(err error) {
	var unpaid *service.UnpaidOrderError
	if !errors.As(err, &unpaid) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cart.EditingOrderID == nil && len(t.cart.Items) > 0 {
		id := unpaid.Order.ID
		t.cart.EditingOrderID = &id
		log.Info().Str("order_id", id.String()).Msg("unpaid order kept for retry")
	}
}

// reconcileAfter reloads the session when a submission failed for a reason
// the store knows more about than we do.
func (t *Terminal) reconcileAfter(ctx context.Context, err error) {
	switch apierror.KindOf(err) {
	case apierror.KindConflict, apierror.KindNotFound, apierror.KindNetwork:
	default:
		return
	}
	if _, lerr := t.sessions.Load(ctx, t.sessions.LocationID()); lerr != nil {
		log.Warn().Err(lerr).Msg("session reload after failed checkout")
	}
}

func copyCart(c model.Cart) model.Cart {
	out := model.Cart{Items: make([]model.CartItem, len(c.Items))}
	copy(out.Items, c.Items)
	if c.EditingOrderID != nil {
		id := *c.EditingOrderID
		out.EditingOrderID = &id
	}
	return out
}
