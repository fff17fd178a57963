package terminal_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"posterminal/internal/apierror"
	"posterminal/internal/dto"
	"posterminal/internal/model"
	"posterminal/internal/payment"
	"posterminal/internal/reconciliation"
	"posterminal/internal/repository"
	"posterminal/internal/search"
	"posterminal/internal/service"
	"posterminal/internal/terminal"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

type memSessionStore struct {
	mu      sync.Mutex
	open    *model.Session
	getOpen int
}

func (s *memSessionStore) GetOpenSession(context.Context, int) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOpen++
	if s.open == nil {
		return nil, nil
	}
	cp := *s.open
	return &cp, nil
}

func (s *memSessionStore) GetLastClosedSession(context.Context, int) (*model.SessionSummary, error) {
	return nil, nil
}

func (s *memSessionStore) CreateSession(_ context.Context, loc int, bal decimal.Decimal, notes *string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = &model.Session{ID: uuid.New(), LocationID: loc, Status: model.SessionOpen, OpeningBalance: bal, Notes: notes, OpenedAt: time.Now()}
	cp := *s.open
	return &cp, nil
}

func (s *memSessionStore) CloseSession(_ context.Context, id uuid.UUID, in repository.CloseInput) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open == nil || s.open.ID != id {
		return nil, &apierror.ConflictError{Reason: apierror.ReasonAlreadyClosed}
	}
	closed := *s.open
	now := time.Now()
	closed.Status, closed.ActualBalance, closed.ClosedAt = model.SessionClosed, &in.ActualBalance, &now
	s.open = nil
	return &closed, nil
}

func (s *memSessionStore) ForceCloseSession(_ context.Context, id uuid.UUID, bal decimal.Decimal, notes string) (*model.Session, error) {
	return s.CloseSession(context.Background(), id, repository.CloseInput{ActualBalance: bal, Notes: &notes})
}

type fakeOrders struct{}

func (fakeOrders) SaveOrder(_ context.Context, d repository.OrderDraft) (*model.OrderRef, error) {
	return &model.OrderRef{ID: uuid.New(), Code: "ORD-1"}, nil
}

type recordingOrders struct {
	mu      sync.Mutex
	creates int
	updates []uuid.UUID
}

func (o *recordingOrders) SaveOrder(_ context.Context, d repository.OrderDraft) (*model.OrderRef, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if d.ID != nil {
		o.updates = append(o.updates, *d.ID)
		return &model.OrderRef{ID: *d.ID, Code: "ORD-7"}, nil
	}
	o.creates++
	return &model.OrderRef{ID: uuid.New(), Code: "ORD-7"}, nil
}

type fakeGateway struct {
	mu      sync.Mutex
	err     error
	block   chan struct{}
	entered chan struct{}
	calls   int
}

func (g *fakeGateway) SubmitPayment(_ context.Context, orderID, sessionID uuid.UUID, p []model.PaymentRecord, _ bool) (*model.Receipt, error) {
	g.mu.Lock()
	g.calls++
	block, entered, err := g.block, g.entered, g.err
	g.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &model.Receipt{OrderID: orderID, SessionID: sessionID, Payments: p}, nil
}

type fakeReports struct{}

func (fakeReports) GetSessionReport(context.Context, uuid.UUID) (*model.ReportSummary, error) {
	return &model.ReportSummary{CashSales: decimal.NewFromInt(100)}, nil
}

type fakeCatalog struct {
	mu      sync.Mutex
	queries []string
}

func (c *fakeCatalog) SearchProducts(_ context.Context, q string) ([]model.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, q)
	return []model.Product{{ID: uuid.New(), Name: q, UnitPrice: decimal.NewFromInt(1)}}, nil
}

type fakeCategories struct{}

func (fakeCategories) SearchCategories(context.Context, string) ([]model.Category, error) {
	return []model.Category{{ID: uuid.New(), Name: "Flyers"}}, nil
}

func (fakeCategories) CreateCategory(_ context.Context, name string, d *string) (*model.Category, error) {
	return &model.Category{ID: uuid.New(), Name: name, Description: d}, nil
}

func (fakeCategories) UpdateCategory(_ context.Context, id uuid.UUID, name string, d *string) (*model.Category, error) {
	return &model.Category{ID: id, Name: name, Description: d}, nil
}

type fixture struct {
	term    *terminal.Terminal
	store   *memSessionStore
	gateway *fakeGateway
	catalog *fakeCatalog
}

func newFixture(t *testing.T, openSession bool) fixture {
	t.Helper()
	store := &memSessionStore{}
	if openSession {
		store.open = &model.Session{ID: uuid.New(), LocationID: 1, Status: model.SessionOpen, OpeningBalance: decimal.NewFromInt(1000), OpenedAt: time.Now()}
	}
	sessions := service.NewSessionManager(store, 1, service.SessionOptions{})
	gw := &fakeGateway{}
	cat := &fakeCatalog{}
	term := terminal.New(terminal.Deps{
		Sessions:       sessions,
		Payments:       service.NewPaymentService(sessions, fakeOrders{}, gw),
		Reports:        service.NewReportService(sessions, fakeReports{}, repository.NewMemoryZReportRepository()),
		Categories:     service.NewCategoryService(fakeCategories{}, 0, 0),
		Catalog:        cat,
		SearchDebounce: 0,
	})
	_, err := term.Load(context.Background())
	require.NoError(t, err)
	return fixture{term: term, store: store, gateway: gw, catalog: cat}
}

func randomProduct() model.Product {
	return model.Product{
		ID:        uuid.New(),
		Name:      gofakeit.ProductName(),
		UnitPrice: decimal.NewFromFloat(gofakeit.Price(1, 100)).Round(2),
		TaxRate:   decimal.NewFromInt(int64(gofakeit.IntRange(0, 21))),
	}
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestTerminal_CheckoutResetsEverything(t *testing.T) {
	f := newFixture(t, true)
	p := randomProduct()
	require.NoError(t, f.term.AddCatalogItem(p, false))
	require.NoError(t, f.term.AddSearchResult(randomProduct(), true))
	f.term.SelectCustomer(false)
	require.NoError(t, f.term.SelectMethod(model.MethodAccount))

	receipt, err := f.term.Checkout(context.Background(), dto.CheckoutRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", receipt.OrderCode)

	assert.Empty(t, f.term.Cart().Items)
	assert.Nil(t, f.term.Cart().EditingOrderID)
	sel := f.term.Selection()
	assert.Equal(t, model.MethodCash, sel.Method())
	assert.True(t, sel.WalkIn())
}

func TestTerminal_FailedCheckoutKeepsCartAndReloads(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.term.AddCatalogItem(randomProduct(), false))
	f.gateway.err = &apierror.NetworkError{Op: "submit payment", StatusCode: 502}
	before := f.store.getOpen

	_, err := f.term.Checkout(context.Background(), dto.CheckoutRequest{TenderedAmount: "100000"})
	assert.Equal(t, apierror.KindNetwork, apierror.KindOf(err))
	assert.Len(t, f.term.Cart().Items, 1, "cart survives a failed submission")
	assert.Greater(t, f.store.getOpen, before)
}

func TestTerminal_RetryAfterFailedPaymentUpdatesSavedOrder(t *testing.T) {
	store := &memSessionStore{open: &model.Session{ID: uuid.New(), LocationID: 1, Status: model.SessionOpen, OpenedAt: time.Now()}}
	sessions := service.NewSessionManager(store, 1, service.SessionOptions{})
	orders := &recordingOrders{}
	gw := &fakeGateway{err: &apierror.NetworkError{Op: "submit payment", StatusCode: 503}}
	term := terminal.New(terminal.Deps{
		Sessions: sessions,
		Payments: service.NewPaymentService(sessions, orders, gw),
	})
	_, err := term.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, term.AddCatalogItem(randomProduct(), false))

	_, err = term.Checkout(context.Background(), dto.CheckoutRequest{TenderedAmount: "100000"})
	require.Error(t, err)
	editing := term.Cart().EditingOrderID
	require.NotNil(t, editing, "the saved order is kept for the retry")

	gw.mu.Lock()
	gw.err = nil
	gw.mu.Unlock()
	receipt, err := term.Checkout(context.Background(), dto.CheckoutRequest{TenderedAmount: "100000"})
	require.NoError(t, err)

	assert.Equal(t, 1, orders.creates)
	assert.Equal(t, []uuid.UUID{*editing}, orders.updates)
	assert.Equal(t, *editing, receipt.OrderID)
	assert.Nil(t, term.Cart().EditingOrderID)
}

func TestTerminal_FailedEditKeepsOriginalOrder(t *testing.T) {
	f := newFixture(t, true)
	orderID := uuid.New()
	f.term.EditOrder(orderID, []model.CartItem{{ProductID: uuid.New(), Name: "Poster", UnitPrice: decimal.NewFromInt(20), Quantity: 1}})
	f.gateway.err = &apierror.NetworkError{Op: "submit payment", StatusCode: 503}

	_, err := f.term.Checkout(context.Background(), dto.CheckoutRequest{TenderedAmount: "100"})
	require.Error(t, err)
	require.NotNil(t, f.term.Cart().EditingOrderID)
	assert.Equal(t, orderID, *f.term.Cart().EditingOrderID)
}

func TestTerminal_InsufficientCashKeepsCart(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.term.AddCustomItem(model.CartItem{ProductID: uuid.Nil, Name: "Design fee", UnitPrice: decimal.NewFromInt(1500), Quantity: 1}))

	_, err := f.term.Checkout(context.Background(), dto.CheckoutRequest{TenderedAmount: "1000"})
	assert.ErrorIs(t, err, apierror.ErrInsufficientPayment)
	assert.Len(t, f.term.Cart().Items, 1)

	change, ok := f.term.ChangeDue(decimal.NewFromInt(2000))
	assert.True(t, ok)
	assert.True(t, change.Equal(decimal.NewFromInt(500)))
}

func TestTerminal_DuplicateSubmissionRejected(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.term.AddCatalogItem(randomProduct(), false))
	f.gateway.block = make(chan struct{})
	f.gateway.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.term.Checkout(context.Background(), dto.CheckoutRequest{TenderedAmount: "100000"})
		done <- err
	}()
	<-f.gateway.entered

	_, err := f.term.Checkout(context.Background(), dto.CheckoutRequest{TenderedAmount: "100000"})
	assert.ErrorIs(t, err, apierror.ErrSubmissionInFlight)
	_, err = f.term.CloseShift(context.Background(), dto.CloseSessionRequest{ActualBalance: "1"})
	assert.ErrorIs(t, err, apierror.ErrSubmissionInFlight)

	close(f.gateway.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.gateway.calls)
}

func TestTerminal_CheckoutWithoutSession(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.term.AddCatalogItem(randomProduct(), false))

	_, err := f.term.Checkout(context.Background(), dto.CheckoutRequest{TenderedAmount: "100000"})
	assert.ErrorIs(t, err, apierror.ErrNoOpenSession)
}

func TestTerminal_OpenDrawerThenCloseShift(t *testing.T) {
	f := newFixture(t, false)
	s, err := f.term.OpenDrawer(context.Background(), "1000", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.LocationID)

	x, err := f.term.XReport(context.Background())
	require.NoError(t, err)
	assert.True(t, x.ExpectedCash.Equal(decimal.NewFromInt(1100)))

	preview, err := f.term.PreviewClose(context.Background(), dto.CloseSessionRequest{ActualBalance: "1100"})
	require.NoError(t, err)
	assert.Equal(t, reconciliation.Normal, preview.Classification)

	require.NoError(t, f.term.AddCatalogItem(randomProduct(), false))
	z, err := f.term.CloseShift(context.Background(), dto.CloseSessionRequest{ActualBalance: "1100"})
	require.NoError(t, err)
	assert.Equal(t, s.ID, z.SessionID)
	assert.Empty(t, f.term.Cart().Items, "close resets the cart")
	assert.Equal(t, service.StateClosed, f.term.Session().State())

	stored, err := f.term.StoredZReport(context.Background(), s.ID)
	require.NoError(t, err)
	assert.True(t, stored.ActualBalance.Equal(decimal.NewFromInt(1100)))
}

func TestTerminal_ForceCloseStale(t *testing.T) {
	store := &memSessionStore{open: &model.Session{
		ID: uuid.New(), LocationID: 1, Status: model.SessionOpen, OpenedAt: time.Now().AddDate(0, 0, -1),
	}}
	sessions := service.NewSessionManager(store, 1, service.SessionOptions{})
	term := terminal.New(terminal.Deps{Sessions: sessions})
	state, err := term.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, service.StateStale, state)

	_, err = term.ForceCloseStale(context.Background(), dto.ForceCloseRequest{ActualBalance: "0", ClosingNotes: "drawer left open overnight"})
	require.NoError(t, err)
	assert.Equal(t, service.StateNoSession, sessions.State())
}

func TestTerminal_EditOrderAndVoid(t *testing.T) {
	f := newFixture(t, true)
	orderID := uuid.New()
	f.term.EditOrder(orderID, []model.CartItem{{ProductID: uuid.New(), Name: "Poster", UnitPrice: decimal.NewFromInt(20), Quantity: 3}})

	c := f.term.Cart()
	require.NotNil(t, c.EditingOrderID)
	assert.Equal(t, orderID, *c.EditingOrderID)
	assert.True(t, f.term.Totals().Total.Equal(decimal.NewFromInt(60)))

	f.term.Void()
	assert.Empty(t, f.term.Cart().Items)
	assert.Nil(t, f.term.Cart().EditingOrderID)
}

func TestTerminal_CartMutations(t *testing.T) {
	f := newFixture(t, true)
	p := randomProduct()
	p.DefaultQuantity = 2
	require.NoError(t, f.term.AddCatalogItem(p, false))
	require.NoError(t, f.term.AddCatalogItem(p, true))
	assert.Equal(t, 22, f.term.Cart().Items[0].Quantity)

	f.term.UpdateQuantity(p.ID, 5)
	assert.Equal(t, 5, f.term.Cart().Items[0].Quantity)
	require.NoError(t, f.term.UpdateLine(0, 7))
	assert.Equal(t, 7, f.term.Cart().Items[0].Quantity)
	assert.Error(t, f.term.UpdateLine(4, 1))

	f.term.RemoveItem(p.ID)
	assert.Empty(t, f.term.Cart().Items)
}

func TestTerminal_CartSnapshotIsIsolated(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.term.AddSearchResult(randomProduct(), false))

	c := f.term.Cart()
	c.Items[0].Quantity = 999
	assert.Equal(t, 1, f.term.Cart().Items[0].Quantity)
}

func TestTerminal_SearchProducts(t *testing.T) {
	f := newFixture(t, true)

	res, err := f.term.SearchProducts(context.Background(), "  pens ")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "pens", res[0].Name)

	res, err = f.term.SearchProducts(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, []string{"pens"}, f.catalog.queries)
}

func TestTerminal_SearchProducts_Superseded(t *testing.T) {
	cat := &fakeCatalog{}
	term := terminal.New(terminal.Deps{Catalog: cat, SearchDebounce: 100 * time.Millisecond})

	errs := make(chan error, 1)
	go func() {
		_, err := term.SearchProducts(context.Background(), "pe")
		errs <- err
	}()
	time.Sleep(20 * time.Millisecond)

	_, err := term.SearchProducts(context.Background(), "pens")
	require.NoError(t, err)
	assert.True(t, errors.Is(<-errs, search.ErrStale))
	assert.Equal(t, []string{"pens"}, cat.queries)
}

func TestTerminal_Categories(t *testing.T) {
	f := newFixture(t, true)

	c, err := f.term.CheckCategoryName(context.Background(), "Flyer", uuid.Nil)
	require.NoError(t, err)
	assert.NotEmpty(t, c.Type)

	_, err = f.term.CreateCategory(context.Background(), dto.CategoryRequest{Name: "flyers"})
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))

	cat, err := f.term.CreateCategory(context.Background(), dto.CategoryRequest{Name: "Banners"})
	require.NoError(t, err)
	updated, err := f.term.UpdateCategory(context.Background(), cat.ID, dto.CategoryRequest{Name: "Large Banners"})
	require.NoError(t, err)
	assert.Equal(t, "Large Banners", updated.Name)
}

func TestTerminal_SelectMethodRules(t *testing.T) {
	f := newFixture(t, true)
	assert.Error(t, f.term.SelectMethod(model.MethodAccount), "walk-in cannot pay on account")

	f.term.SelectCustomer(false)
	require.NoError(t, f.term.SelectMethod(model.MethodAccount))
	f.term.SelectCustomer(true)
	assert.Equal(t, model.MethodCash, f.term.Selection().Method())
	assert.Equal(t, payment.NewSelection().AvailableMethods(), f.term.Selection().AvailableMethods())
}
