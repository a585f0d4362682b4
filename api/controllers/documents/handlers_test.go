package documents

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	internaldocuments "github.com/domeo/backoffice/internal/documents"
	"github.com/domeo/backoffice/pkg/db/models"
	"github.com/domeo/backoffice/pkg/enums"
	pkgerrors "github.com/domeo/backoffice/pkg/errors"
	"github.com/domeo/backoffice/pkg/logger"
)

type stubService struct {
	createBatchFn func(ctx context.Context, input internaldocuments.BatchInput) (*internaldocuments.BatchResult, error)
	getFn         func(ctx context.Context, id uuid.UUID) (*models.Document, error)
	chainFn       func(ctx context.Context, id uuid.UUID) (*internaldocuments.Chain, error)
	listFn        func(ctx context.Context, params internaldocuments.ListParams) (*internaldocuments.ListResult, error)
}

func (s *stubService) CreateBatch(ctx context.Context, input internaldocuments.BatchInput) (*internaldocuments.BatchResult, error) {
	if s.createBatchFn != nil {
		return s.createBatchFn(ctx, input)
	}
	return &internaldocuments.BatchResult{}, nil
}

func (s *stubService) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
}

func (s *stubService) Chain(ctx context.Context, id uuid.UUID) (*internaldocuments.Chain, error) {
	if s.chainFn != nil {
		return s.chainFn(ctx, id)
	}
	return &internaldocuments.Chain{DocumentID: id}, nil
}

func (s *stubService) List(ctx context.Context, params internaldocuments.ListParams) (*internaldocuments.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &internaldocuments.ListResult{}, nil
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode body %s: %v", resp.Body.String(), err)
	}
}

func TestCreateBatchMapsRequest(t *testing.T) {
	parentID := uuid.New()
	var got internaldocuments.BatchInput
	svc := &stubService{
		createBatchFn: func(ctx context.Context, input internaldocuments.BatchInput) (*internaldocuments.BatchResult, error) {
			got = input
			return &internaldocuments.BatchResult{
				Success:       true,
				CartSessionID: "cart_1",
				Results: []internaldocuments.DocumentResult{{
					Type:           enums.DocumentTypeQuote,
					DocumentID:     uuid.New(),
					DocumentNumber: "QT-1",
					IsNew:          true,
					Message:        "quote created",
				}},
				Errors:  []internaldocuments.DocumentError{},
				Message: "1 created, 0 reused",
			}, nil
		},
	}

	body := `{
		"cart_session_id": " cart_1 ",
		"client_id": " client-1 ",
		"items": [{"id":"d1","type":"door","model":"M1","qty":2,"unitPrice":"100.5"}],
		"total_amount": 201,
		"tax_amount": 21,
		"notes": "  ",
		"document_types": ["quote"],
		"parent_document_id": "` + parentID.String() + `",
		"prevent_duplicates": false,
		"ui_state": {"step": 3}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/documents/create-batch", strings.NewReader(body))
	resp := httptest.NewRecorder()
	CreateBatch(svc, logger.Nop())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if got.ClientID != "client-1" || got.CartSessionID != "cart_1" {
		t.Fatalf("identifiers not sanitized: %+v", got)
	}
	if got.TotalAmount != 201 || got.TaxAmount != 21 || got.Subtotal != 180 {
		t.Fatalf("unexpected amounts: total=%v tax=%v subtotal=%v", got.TotalAmount, got.TaxAmount, got.Subtotal)
	}
	if got.Notes != nil {
		t.Fatalf("blank notes should be dropped")
	}
	if got.ParentDocumentID == nil || *got.ParentDocumentID != parentID {
		t.Fatalf("parent not parsed")
	}
	if !got.AllowDuplicates {
		t.Fatalf("prevent_duplicates=false should allow duplicates")
	}
	if len(got.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(got.Items))
	}
	normalized := got.Items[0].Normalize()
	if normalized.Quantity != 2 || normalized.UnitPrice != 100.5 || normalized.Model != "m1" {
		t.Fatalf("unexpected normalized line %+v", normalized)
	}

	var payload map[string]any
	decodeBody(t, resp, &payload)
	if payload["success"] != true || payload["cart_session_id"] != "cart_1" {
		t.Fatalf("unexpected payload %v", payload)
	}
	results := payload["results"].([]any)
	first := results[0].(map[string]any)
	if first["documentNumber"] != "QT-1" || first["isNew"] != true {
		t.Fatalf("unexpected result entry %v", first)
	}
	if _, ok := payload["data"]; ok {
		t.Fatalf("batch response must not be wrapped")
	}
}

func TestCreateBatchDefaultsSubtotal(t *testing.T) {
	var got internaldocuments.BatchInput
	svc := &stubService{
		createBatchFn: func(ctx context.Context, input internaldocuments.BatchInput) (*internaldocuments.BatchResult, error) {
			got = input
			return &internaldocuments.BatchResult{Success: true}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"client_id":"c1","items":[],"total_amount":99.99}`))
	resp := httptest.NewRecorder()
	CreateBatch(svc, logger.Nop())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if got.Subtotal != 99.99 || got.TaxAmount != 0 {
		t.Fatalf("unexpected amounts %+v", got)
	}
	if got.AllowDuplicates || got.ParentDocumentID != nil {
		t.Fatalf("unexpected defaults %+v", got)
	}
}

func TestCreateBatchValidation(t *testing.T) {
	called := false
	svc := &stubService{
		createBatchFn: func(ctx context.Context, input internaldocuments.BatchInput) (*internaldocuments.BatchResult, error) {
			called = true
			return nil, nil
		},
	}

	tests := []struct {
		name string
		body string
	}{
		{"missing client", `{"items":[]}`},
		{"blank client", `{"client_id":"  ","items":[]}`},
		{"missing items", `{"client_id":"c1"}`},
		{"items not array", `{"client_id":"c1","items":"door"}`},
		{"bad parent", `{"client_id":"c1","items":[],"parent_document_id":"nope"}`},
		{"malformed", `{"client_id":`},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
		resp := httptest.NewRecorder()
		CreateBatch(svc, logger.Nop())(resp, req)

		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", tt.name, resp.Code)
		}
		var payload struct {
			Error string `json:"error"`
		}
		decodeBody(t, resp, &payload)
		if payload.Error == "" {
			t.Fatalf("%s: expected error string", tt.name)
		}
	}
	if called {
		t.Fatal("service must not run for invalid requests")
	}
}

func TestCreateBatchUnexpectedFailure(t *testing.T) {
	svc := &stubService{
		createBatchFn: func(ctx context.Context, input internaldocuments.BatchInput) (*internaldocuments.BatchResult, error) {
			return nil, errors.New("connection reset")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"client_id":"c1","items":[]}`))
	resp := httptest.NewRecorder()
	CreateBatch(svc, logger.Nop())(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	var payload struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &payload)
	if payload.Error != "internal server error" {
		t.Fatalf("expected generic message, got %q", payload.Error)
	}
}

func TestGetDocument(t *testing.T) {
	id := uuid.New()
	parent := uuid.New()
	svc := &stubService{
		getFn: func(ctx context.Context, got uuid.UUID) (*models.Document, error) {
			if got != id {
				t.Fatalf("unexpected id %s", got)
			}
			return &models.Document{
				ID:               id,
				Type:             enums.DocumentTypeInvoice,
				Number:           "INV-1",
				ParentDocumentID: &parent,
				ClientID:         "c1",
				TotalAmount:      10,
				CartData:         datatypes.JSON(`{"items":[],"total_amount":10}`),
				CreatedBy:        "system",
				CreatedAt:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				LineItems: []models.DocumentLineItem{
					{Position: 0, ProductID: "d1", ItemType: "door", Model: "m1", Quantity: 1, UnitPrice: 10, TotalPrice: 10},
				},
			}, nil
		},
	}

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "documentId", id.String())
	resp := httptest.NewRecorder()
	Get(svc, logger.Nop())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data documentDTO `json:"data"`
	}
	decodeBody(t, resp, &envelope)
	if envelope.Data.Number != "INV-1" || envelope.Data.Type != "invoice" {
		t.Fatalf("unexpected document %+v", envelope.Data)
	}
	if envelope.Data.ParentDocumentID == nil || *envelope.Data.ParentDocumentID != parent.String() {
		t.Fatalf("parent not rendered")
	}
	if len(envelope.Data.LineItems) != 1 || envelope.Data.LineItems[0].ProductID != "d1" {
		t.Fatalf("unexpected line items %+v", envelope.Data.LineItems)
	}
	if envelope.Data.CreatedAt != "2026-03-01T09:00:00Z" {
		t.Fatalf("unexpected created_at %q", envelope.Data.CreatedAt)
	}
	if len(envelope.Data.CartData) == 0 {
		t.Fatalf("expected cart data")
	}
}

func TestGetDocumentErrors(t *testing.T) {
	svc := &stubService{}

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "documentId", "not-a-uuid")
	resp := httptest.NewRecorder()
	Get(svc, logger.Nop())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	req = withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "documentId", uuid.NewString())
	resp = httptest.NewRecorder()
	Get(svc, logger.Nop())(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestChainDocument(t *testing.T) {
	id := uuid.New()
	svc := &stubService{
		chainFn: func(ctx context.Context, got uuid.UUID) (*internaldocuments.Chain, error) {
			return &internaldocuments.Chain{
				DocumentID: got,
				Entries: []internaldocuments.ChainEntry{
					{Position: -1, Relation: internaldocuments.RelationAncestor, Document: models.Document{ID: uuid.New(), Type: enums.DocumentTypeOrder, Number: "ORD-1"}},
					{Position: 0, Relation: internaldocuments.RelationSelf, Document: models.Document{ID: got, Type: enums.DocumentTypeInvoice, Number: "INV-1"}},
				},
			}, nil
		},
	}

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "documentId", id.String())
	resp := httptest.NewRecorder()
	Chain(svc, logger.Nop())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data chainDTO `json:"data"`
	}
	decodeBody(t, resp, &envelope)
	if envelope.Data.DocumentID != id.String() || len(envelope.Data.Entries) != 2 {
		t.Fatalf("unexpected chain %+v", envelope.Data)
	}
	if envelope.Data.Entries[0].Position != -1 || envelope.Data.Entries[0].Document.Number != "ORD-1" {
		t.Fatalf("unexpected ancestor %+v", envelope.Data.Entries[0])
	}
}

func TestListDocuments(t *testing.T) {
	var got internaldocuments.ListParams
	svc := &stubService{
		listFn: func(ctx context.Context, params internaldocuments.ListParams) (*internaldocuments.ListResult, error) {
			got = params
			return &internaldocuments.ListResult{
				Items:  []models.Document{{ID: uuid.New(), Type: enums.DocumentTypeQuote, Number: "QT-1"}},
				Cursor: "next",
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/documents?client_id=c1&type=quote&limit=5&cursor=abc", nil)
	resp := httptest.NewRecorder()
	List(svc, logger.Nop())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if got.ClientID != "c1" || got.Type != "quote" || got.Limit != 5 || got.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", got)
	}
	var envelope struct {
		Data documentListDTO `json:"data"`
	}
	decodeBody(t, resp, &envelope)
	if len(envelope.Data.Items) != 1 || envelope.Data.Cursor != "next" {
		t.Fatalf("unexpected list %+v", envelope.Data)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/documents?limit=0", nil)
	resp = httptest.NewRecorder()
	List(svc, logger.Nop())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid limit, got %d", resp.Code)
	}
}
