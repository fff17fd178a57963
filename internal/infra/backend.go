package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"posterminal/internal/apierror"
	"posterminal/internal/dto"
	"posterminal/internal/model"
	"posterminal/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const maxResponseBody = 1 << 20

// BackendClient talks REST/JSON to the system of record. It implements every
// collaborator contract in the repository package.
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
	cb         *CircuitBreaker
	tokens     *DeviceTokenSource
}

var (
	_ repository.SessionStore   = (*BackendClient)(nil)
	_ repository.ReportStore    = (*BackendClient)(nil)
	_ repository.OrderStore     = (*BackendClient)(nil)
	_ repository.PaymentGateway = (*BackendClient)(nil)
	_ repository.CategoryStore  = (*BackendClient)(nil)
	_ repository.ProductCatalog = (*BackendClient)(nil)
)

// NewBackendClient builds a client. cb and tokens may be nil.
func NewBackendClient(baseURL string, timeout time.Duration, cb *CircuitBreaker, tokens *DeviceTokenSource) *BackendClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if cb == nil {
		cb = NewCircuitBreaker(CircuitBreakerConfig{Name: "backend"})
	}
	return &BackendClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cb:         cb,
		tokens:     tokens,
	}
}

// ── Sessions ──────────────────────────────────────────────────────────────────

func (c *BackendClient) GetOpenSession(ctx context.Context, locationID int) (*model.Session, error) {
	var resp dto.SessionResponse
	q := url.Values{"location_id": {strconv.Itoa(locationID)}}
	err := c.do(ctx, "get open session", http.MethodGet, "/v1/cash-drawer/sessions/open?"+q.Encode(), nil, &resp)
	var nf *apierror.NotFoundError
	if errors.As(err, &nf) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toSession("get open session", resp)
}

func (c *BackendClient) GetLastClosedSession(ctx context.Context, locationID int) (*model.SessionSummary, error) {
	var resp dto.SessionSummaryResponse
	q := url.Values{"location_id": {strconv.Itoa(locationID)}}
	err := c.do(ctx, "get last closed session", http.MethodGet, "/v1/cash-drawer/sessions/last-closed?"+q.Encode(), nil, &resp)
	var nf *apierror.NotFoundError
	if errors.As(err, &nf) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(resp.ID)
	if err != nil {
		return nil, &apierror.NetworkError{Op: "get last closed session", Err: fmt.Errorf("malformed id: %w", err)}
	}
	return &model.SessionSummary{
		ID:              id,
		SessionNumber:   resp.SessionNumber,
		LocationID:      resp.LocationID,
		ActualBalance:   resp.ActualBalance,
		ExpectedBalance: resp.ExpectedBalance,
		Variance:        resp.Variance,
		OpenedAt:        resp.OpenedAt,
		ClosedAt:        resp.ClosedAt,
	}, nil
}

func (c *BackendClient) CreateSession(ctx context.Context, locationID int, openingBalance decimal.Decimal, notes *string) (*model.Session, error) {
	body := dto.OpenSessionBody{LocationID: locationID, OpeningBalance: openingBalance, Notes: notes}
	var resp dto.SessionResponse
	if err := c.do(ctx, "create session", http.MethodPost, "/v1/cash-drawer/sessions", body, &resp); err != nil {
		return nil, err
	}
	return toSession("create session", resp)
}

func (c *BackendClient) CloseSession(ctx context.Context, sessionID uuid.UUID, in repository.CloseInput) (*model.Session, error) {
	body := dto.CloseSessionBody{
		ActualBalance:    in.ActualBalance,
		CommercialIncome: in.CommercialIncome,
		Payouts:          in.Payouts,
		ClosingNotes:     in.Notes,
	}
	var resp dto.SessionResponse
	path := "/v1/cash-drawer/sessions/" + sessionID.String() + "/close"
	if err := c.do(ctx, "close session", http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return toSession("close session", resp)
}

func (c *BackendClient) ForceCloseSession(ctx context.Context, sessionID uuid.UUID, actualBalance decimal.Decimal, notes string) (*model.Session, error) {
	body := dto.ForceCloseBody{ActualBalance: actualBalance, ClosingNotes: notes}
	var resp dto.SessionResponse
	path := "/v1/cash-drawer/sessions/" + sessionID.String() + "/force-close"
	if err := c.do(ctx, "force close session", http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return toSession("force close session", resp)
}

// ── Reports ───────────────────────────────────────────────────────────────────

func (c *BackendClient) GetSessionReport(ctx context.Context, sessionID uuid.UUID) (*model.ReportSummary, error) {
	var resp dto.SessionReportResponse
	path := "/v1/cash-drawer/sessions/" + sessionID.String() + "/report"
	if err := c.do(ctx, "get session report", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	breakdown := make(map[model.PaymentMethod]decimal.Decimal, len(resp.PaymentBreakdown))
	for k, v := range resp.PaymentBreakdown {
		breakdown[model.PaymentMethod(k)] = v
	}
	return &model.ReportSummary{
		CashSales:        resp.CashSales,
		PaymentBreakdown: breakdown,
		Stats: model.ReportStats{
			OrderCount:    resp.Stats.OrderCount,
			ItemsSold:     resp.Stats.ItemsSold,
			VoidedCount:   resp.Stats.VoidedCount,
			AverageTicket: resp.Stats.AverageTicket,
		},
	}, nil
}

// ── Orders & payments ─────────────────────────────────────────────────────────

func (c *BackendClient) SaveOrder(ctx context.Context, draft repository.OrderDraft) (*model.OrderRef, error) {
	body := dto.OrderBody{
		SessionID:  draft.SessionID.String(),
		LocationID: draft.LocationID,
		Items:      make([]dto.OrderItemBody, 0, len(draft.Items)),
		Subtotal:   draft.Totals.Subtotal,
		Tax:        draft.Totals.Tax,
		Discount:   draft.Totals.Discount,
		Total:      draft.Totals.Total,
	}
	for _, it := range draft.Items {
		body.Items = append(body.Items, dto.OrderItemBody{
			ProductID:      it.ProductID.String(),
			Name:           it.Name,
			SKU:            it.SKU,
			UnitPrice:      it.UnitPrice,
			Quantity:       it.Quantity,
			TaxRate:        it.TaxRate,
			DiscountAmount: it.DiscountAmount,
			IsCustom:       it.Source == model.SourceCustom,
		})
	}

	method, path, op := http.MethodPost, "/v1/orders", "create order"
	if draft.ID != nil {
		method, path, op = http.MethodPut, "/v1/orders/"+draft.ID.String(), "update order"
	}
	var resp dto.OrderResponse
	if err := c.do(ctx, op, method, path, body, &resp); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(resp.ID)
	if err != nil {
		return nil, &apierror.NetworkError{Op: op, Err: fmt.Errorf("malformed id: %w", err)}
	}
	return &model.OrderRef{ID: id, Code: resp.OrderCode}, nil
}

func (c *BackendClient) SubmitPayment(ctx context.Context, orderID, sessionID uuid.UUID, payments []model.PaymentRecord, printReceipt bool) (*model.Receipt, error) {
	body := dto.SubmitPaymentBody{SessionID: sessionID.String(), PrintReceipt: printReceipt}
	for _, p := range payments {
		body.Payments = append(body.Payments, dto.PaymentBody{Method: string(p.Method), Amount: p.Amount, ReferenceNumber: p.ReferenceNumber})
	}
	var resp dto.ReceiptResponse
	path := "/v1/orders/" + orderID.String() + "/payments"
	if err := c.do(ctx, "submit payment", http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	receipt := &model.Receipt{
		OrderID:   orderID,
		OrderCode: resp.OrderCode,
		SessionID: sessionID,
		Total:     resp.Total,
		Change:    resp.Change,
	}
	for _, p := range resp.Payments {
		receipt.Payments = append(receipt.Payments, model.PaymentRecord{
			Method:          model.PaymentMethod(p.Method),
			Amount:          p.Amount,
			ReferenceNumber: p.ReferenceNumber,
		})
	}
	return receipt, nil
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (c *BackendClient) SearchCategories(ctx context.Context, query string) ([]model.Category, error) {
	var resp []dto.CategoryResponse
	q := url.Values{"search": {query}}
	if err := c.do(ctx, "search categories", http.MethodGet, "/v1/categories?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	out := make([]model.Category, 0, len(resp))
	for _, r := range resp {
		cat, err := toCategory("search categories", r)
		if err != nil {
			return nil, err
		}
		out = append(out, *cat)
	}
	return out, nil
}

func (c *BackendClient) CreateCategory(ctx context.Context, name string, description *string) (*model.Category, error) {
	var resp dto.CategoryResponse
	body := dto.CategoryBody{Name: name, Description: description}
	if err := c.do(ctx, "create category", http.MethodPost, "/v1/categories", body, &resp); err != nil {
		return nil, err
	}
	return toCategory("create category", resp)
}

func (c *BackendClient) UpdateCategory(ctx context.Context, id uuid.UUID, name string, description *string) (*model.Category, error) {
	var resp dto.CategoryResponse
	body := dto.CategoryBody{Name: name, Description: description}
	if err := c.do(ctx, "update category", http.MethodPatch, "/v1/categories/"+id.String(), body, &resp); err != nil {
		return nil, err
	}
	return toCategory("update category", resp)
}

func (c *BackendClient) SearchProducts(ctx context.Context, query string) ([]model.Product, error) {
	var resp []dto.ProductResponse
	q := url.Values{"search": {query}}
	if err := c.do(ctx, "search products", http.MethodGet, "/v1/products?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	out := make([]model.Product, 0, len(resp))
	for _, r := range resp {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, &apierror.NetworkError{Op: "search products", Err: fmt.Errorf("malformed id: %w", err)}
		}
		out = append(out, model.Product{
			ID:              id,
			Name:            r.Name,
			SKU:             r.SKU,
			UnitPrice:       r.UnitPrice,
			TaxRate:         r.TaxRate,
			DefaultQuantity: r.DefaultQuantity,
		})
	}
	return out, nil
}

// ── Transport ─────────────────────────────────────────────────────────────────

// do sends one request through the circuit breaker and maps the answer onto
// the apierror taxonomy. out is decoded only on 2xx.
func (c *BackendClient) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("%s: sign device token: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	var (
		status  int
		payload []byte
	)
	cbErr := c.cb.Execute(func() error {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &apierror.NetworkError{Op: op, Err: err}
		}
		defer resp.Body.Close()

		payload, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return &apierror.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: err}
		}
		status = resp.StatusCode
		if status >= http.StatusInternalServerError {
			return &apierror.NetworkError{Op: op, StatusCode: status}
		}
		return nil
	})
	if errors.Is(cbErr, ErrCircuitOpen) {
		return &apierror.NetworkError{Op: op, Err: cbErr}
	}
	if cbErr != nil {
		log.Warn().Str("op", op).Str("path", path).Err(cbErr).Msg("backend request failed")
		return cbErr
	}

	if status >= 200 && status < 300 {
		if out == nil || len(bytes.TrimSpace(payload)) == 0 {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return &apierror.NetworkError{Op: op, StatusCode: status, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}
	return mapErrorResponse(op, status, payload)
}

func mapErrorResponse(op string, status int, payload []byte) error {
	var body dto.ErrorBody
	structured := len(payload) > 0 && json.Unmarshal(payload, &body) == nil

	switch status {
	case http.StatusNotFound:
		return &apierror.NotFoundError{Resource: resourceOf(op)}
	case http.StatusConflict:
		ce := &apierror.ConflictError{Reason: apierror.ReasonOther, Detail: body.Detail}
		switch apierror.ConflictReason(body.Code) {
		case apierror.ReasonPendingOrders:
			ce.Reason = apierror.ReasonPendingOrders
			ce.PendingCount = body.PendingCount
			ce.SampleOrders = body.SampleOrderCodes
		case apierror.ReasonAlreadyClosed, apierror.ReasonSessionOpen, apierror.ReasonDuplicateName:
			ce.Reason = apierror.ConflictReason(body.Code)
		}
		return ce
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if structured && (body.Detail != "" || len(body.Fields) > 0) {
			detail := body.Detail
			if detail == "" {
				detail = "rejected by backend"
			}
			return &apierror.ValidationError{Detail: detail, Fields: body.Fields}
		}
	}
	return &apierror.NetworkError{Op: op, StatusCode: status}
}

// resourceOf derives "session" from "close session" etc.
func resourceOf(op string) string {
	if i := strings.LastIndex(op, " "); i >= 0 {
		return op[i+1:]
	}
	return op
}

func toSession(op string, r dto.SessionResponse) (*model.Session, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, &apierror.NetworkError{Op: op, Err: fmt.Errorf("malformed id: %w", err)}
	}
	return &model.Session{
		ID:               id,
		SessionNumber:    r.SessionNumber,
		LocationID:       r.LocationID,
		Status:           model.SessionStatus(r.Status),
		OpeningBalance:   r.OpeningBalance,
		Notes:            r.Notes,
		ActualBalance:    r.ActualBalance,
		ExpectedBalance:  r.ExpectedBalance,
		Variance:         r.Variance,
		VariancePercent:  r.VariancePercent,
		CommercialIncome: r.CommercialIncome,
		Payouts:          r.Payouts,
		ClosingNotes:     r.ClosingNotes,
		ForceClosed:      r.ForceClosed,
		OpenedAt:         r.OpenedAt,
		ClosedAt:         r.ClosedAt,
	}, nil
}

func toCategory(op string, r dto.CategoryResponse) (*model.Category, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, &apierror.NetworkError{Op: op, Err: fmt.Errorf("malformed id: %w", err)}
	}
	return &model.Category{ID: id, Name: r.Name, Description: r.Description, ProductCount: r.ProductCount}, nil
}
