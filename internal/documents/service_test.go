package documents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/domeo/backoffice/pkg/db"
	"github.com/domeo/backoffice/pkg/db/models"
	"github.com/domeo/backoffice/pkg/enums"
	pkgerrors "github.com/domeo/backoffice/pkg/errors"
	"github.com/domeo/backoffice/pkg/metrics"
)

type recordingNotifier struct {
	mu      sync.Mutex
	created []models.Document
	err     error
}

func (r *recordingNotifier) DocumentCreated(ctx context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, *doc)
	return r.err
}

// failingCreateRepo rejects inserts of one document type.
type failingCreateRepo struct {
	Repository
	failType enums.DocumentType
}

func (f *failingCreateRepo) WithTx(tx *gorm.DB) Repository {
	return &failingCreateRepo{Repository: f.Repository.WithTx(tx), failType: f.failType}
}

func (f *failingCreateRepo) Create(ctx context.Context, doc *models.Document) error {
	if doc.Type == f.failType {
		return errors.New("insert failed")
	}
	return f.Repository.Create(ctx, doc)
}

type fixture struct {
	conn     *gorm.DB
	repo     Repository
	notifier *recordingNotifier
	svc      Service
}

func newFixture(t *testing.T, wrap func(Repository) Repository) *fixture {
	t.Helper()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	if wrap != nil {
		repo = wrap(repo)
	}
	notifier := &recordingNotifier{}
	svc, err := NewService(repo, db.NewFromGorm(conn), Options{
		Notifier: notifier,
		Metrics:  metrics.NewDocumentMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return &fixture{conn: conn, repo: repo, notifier: notifier, svc: svc}
}

func scenarioInput() BatchInput {
	return BatchInput{
		ClientID:      "c1",
		CartSessionID: "cart_s1",
		Items:         []CartLineItem{line("p1", "door", "M1", 2, 1000)},
		TotalAmount:   2000,
		DocumentTypes: []string{"quote"},
	}
}

func TestCreateBatch_RepeatRequestReusesDocument(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.CreateBatch(ctx, scenarioInput())
	require.NoError(t, err)
	require.True(t, first.Success)
	require.Len(t, first.Results, 1)
	assert.True(t, first.Results[0].IsNew)
	assert.True(t, strings.HasPrefix(first.Results[0].DocumentNumber, "QT-"))

	second, err := f.svc.CreateBatch(ctx, scenarioInput())
	require.NoError(t, err)
	require.Len(t, second.Results, 1)
	assert.False(t, second.Results[0].IsNew)
	assert.Equal(t, first.Results[0].DocumentID, second.Results[0].DocumentID)
	assert.Equal(t, first.Results[0].DocumentNumber, second.Results[0].DocumentNumber)

	assert.Len(t, f.notifier.created, 1, "reused documents are not announced again")
}

func TestCreateBatch_ClientScoping(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.CreateBatch(ctx, scenarioInput())
	require.NoError(t, err)

	other := scenarioInput()
	other.ClientID = "c2"
	second, err := f.svc.CreateBatch(ctx, other)
	require.NoError(t, err)
	require.Len(t, second.Results, 1)
	assert.True(t, second.Results[0].IsNew)
	assert.NotEqual(t, first.Results[0].DocumentID, second.Results[0].DocumentID)
}

func TestCreateBatch_FuzzyMatchAcrossSessions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.CreateBatch(ctx, scenarioInput())
	require.NoError(t, err)

	retry := scenarioInput()
	retry.CartSessionID = "cart_s2"
	// same cart, lines submitted with a cent of price noise
	retry.Items = []CartLineItem{line("p1", "door", "M1", 2, 1000.009)}
	second, err := f.svc.CreateBatch(ctx, retry)
	require.NoError(t, err)
	require.Len(t, second.Results, 1)
	assert.False(t, second.Results[0].IsNew)
	assert.Equal(t, first.Results[0].DocumentID, second.Results[0].DocumentID)
	assert.Equal(t, "cart_s2", second.CartSessionID)
}

func TestCreateBatch_PartialFailure(t *testing.T) {
	f := newFixture(t, func(repo Repository) Repository {
		return &failingCreateRepo{Repository: repo, failType: enums.DocumentTypeInvoice}
	})

	input := scenarioInput()
	input.DocumentTypes = []string{"quote", "invoice", "order"}
	result, err := f.svc.CreateBatch(context.Background(), input)
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.Len(t, result.Results, 2)
	assert.Equal(t, enums.DocumentTypeQuote, result.Results[0].Type)
	assert.Equal(t, enums.DocumentTypeOrder, result.Results[1].Type)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "invoice", result.Errors[0].Type)
	assert.NotEmpty(t, result.Errors[0].Error)
	assert.Contains(t, result.Message, "1 failed")

	var invoices int64
	require.NoError(t, f.conn.Model(&models.Document{}).Where("type = ?", enums.DocumentTypeInvoice).Count(&invoices).Error)
	assert.Zero(t, invoices)
}

func TestCreateBatch_DefaultsAndGeneratedSession(t *testing.T) {
	f := newFixture(t, nil)
	input := scenarioInput()
	input.CartSessionID = ""
	input.DocumentTypes = nil

	result, err := f.svc.CreateBatch(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.CartSessionID, "cart_"))
	require.Len(t, result.Results, 2)
	assert.Equal(t, enums.DocumentTypeQuote, result.Results[0].Type)
	assert.Equal(t, enums.DocumentTypeInvoice, result.Results[1].Type)

	doc, err := f.svc.Get(context.Background(), result.Results[1].DocumentID)
	require.NoError(t, err)
	assert.Equal(t, DefaultCreatedBy, doc.CreatedBy)
	require.NotNil(t, doc.CartSessionID)
	assert.Equal(t, result.CartSessionID, *doc.CartSessionID)
	require.Len(t, doc.LineItems, 1)
	assert.Equal(t, 2000.0, doc.LineItems[0].TotalPrice)
	assert.True(t, strings.HasPrefix(doc.Number, "INV-"))
}

func TestCreateBatch_Validation(t *testing.T) {
	f := newFixture(t, nil)

	missingClient := scenarioInput()
	missingClient.ClientID = "  "
	_, err := f.svc.CreateBatch(context.Background(), missingClient)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	missingItems := scenarioInput()
	missingItems.Items = nil
	_, err = f.svc.CreateBatch(context.Background(), missingItems)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestCreateBatch_UnsupportedAndDuplicateTypes(t *testing.T) {
	f := newFixture(t, nil)
	input := scenarioInput()
	input.DocumentTypes = []string{"quote", "receipt", "Quote"}

	result, err := f.svc.CreateBatch(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Len(t, result.Results, 1)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "receipt", result.Errors[0].Type)
}

func TestCreateBatch_AllowDuplicates(t *testing.T) {
	f := newFixture(t, nil)
	input := scenarioInput()
	input.AllowDuplicates = true

	first, err := f.svc.CreateBatch(context.Background(), input)
	require.NoError(t, err)
	second, err := f.svc.CreateBatch(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, second.Results[0].IsNew)
	assert.NotEqual(t, first.Results[0].DocumentID, second.Results[0].DocumentID)

	doc, err := f.svc.Get(context.Background(), second.Results[0].DocumentID)
	require.NoError(t, err)
	assert.Nil(t, doc.DedupKey)
}

func TestCreateBatch_UniqueConflictResolvesToExistingDocument(t *testing.T) {
	f := newFixture(t, nil)
	input := scenarioInput()

	key := cartFingerprint{
		Type:      enums.DocumentTypeQuote,
		ClientID:  input.ClientID,
		SessionID: input.CartSessionID,
		Total:     input.TotalAmount,
		Items:     NormalizeItems(input.Items),
	}.DedupKey()

	// a concurrent writer committed first with cart data the finder cannot read
	winner := &models.Document{
		Type:          enums.DocumentTypeQuote,
		Number:        "QT-1",
		CartSessionID: stringPtr(input.CartSessionID),
		ClientID:      input.ClientID,
		TotalAmount:   input.TotalAmount,
		CartData:      datatypes.JSON(`{"items":[]}`),
		DedupKey:      &key,
		CreatedBy:     "other",
	}
	require.NoError(t, f.conn.Create(winner).Error)

	result, err := f.svc.CreateBatch(context.Background(), input)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.False(t, result.Results[0].IsNew)
	assert.Equal(t, winner.ID, result.Results[0].DocumentID)
}

func TestCreateBatch_ParentRelations(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	missingParent := uuid.New()
	input := scenarioInput()
	input.ParentDocumentID = &missingParent
	result, err := f.svc.CreateBatch(ctx, input)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error, "not found")

	orderInput := scenarioInput()
	orderInput.DocumentTypes = []string{"order"}
	orderResult, err := f.svc.CreateBatch(ctx, orderInput)
	require.NoError(t, err)
	orderID := orderResult.Results[0].DocumentID

	invoiceInput := scenarioInput()
	invoiceInput.ParentDocumentID = &orderID
	invoiceInput.DocumentTypes = []string{"invoice"}
	invoiceResult, err := f.svc.CreateBatch(ctx, invoiceInput)
	require.NoError(t, err)
	require.True(t, invoiceResult.Success)
	assert.True(t, invoiceResult.Results[0].IsNew)

	again, err := f.svc.CreateBatch(ctx, invoiceInput)
	require.NoError(t, err)
	require.True(t, again.Success)
	assert.False(t, again.Results[0].IsNew, "identical invoice request reuses the first one")

	different := invoiceInput
	different.Items = []CartLineItem{line("p1", "door", "M1", 3, 1000)}
	different.TotalAmount = 3000
	second, err := f.svc.CreateBatch(ctx, different)
	require.NoError(t, err)
	require.Len(t, second.Errors, 1)
	assert.Contains(t, second.Errors[0].Error, "already has an invoice")
}

func TestCreateBatch_OrdersMatchAsRootDocuments(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	input := scenarioInput()
	input.DocumentTypes = []string{"order"}
	first, err := f.svc.CreateBatch(ctx, input)
	require.NoError(t, err)

	parent := uuid.New()
	withParent := input
	withParent.ParentDocumentID = &parent
	second, err := f.svc.CreateBatch(ctx, withParent)
	require.NoError(t, err)
	assert.False(t, second.Results[0].IsNew)
	assert.Equal(t, first.Results[0].DocumentID, second.Results[0].DocumentID)
}

func TestCreateBatch_OrderWithParentIsStoredAsRoot(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	parent := uuid.New()
	input := scenarioInput()
	input.DocumentTypes = []string{"order"}
	input.ParentDocumentID = &parent
	first, err := f.svc.CreateBatch(ctx, input)
	require.NoError(t, err)
	require.True(t, first.Success)
	require.True(t, first.Results[0].IsNew)

	stored, err := f.repo.GetByID(ctx, first.Results[0].DocumentID, false)
	require.NoError(t, err)
	assert.Nil(t, stored.ParentDocumentID)

	retry := input
	retry.CartSessionID = "cart_s2"
	second, err := f.svc.CreateBatch(ctx, retry)
	require.NoError(t, err)
	require.Len(t, second.Results, 1)
	assert.False(t, second.Results[0].IsNew, "fuzzy stage finds the order under a new cart session")
	assert.Equal(t, first.Results[0].DocumentID, second.Results[0].DocumentID)
}

func TestCreateBatch_SupplierOrdersExactStageOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	input := scenarioInput()
	input.DocumentTypes = []string{"supplier_order"}
	first, err := f.svc.CreateBatch(ctx, input)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.Results[0].DocumentNumber, "SO-"))

	otherClient := input
	otherClient.ClientID = "c2"
	shared, err := f.svc.CreateBatch(ctx, otherClient)
	require.NoError(t, err)
	assert.False(t, shared.Results[0].IsNew, "supplier orders are not client scoped")
	assert.Equal(t, first.Results[0].DocumentID, shared.Results[0].DocumentID)

	newSession := input
	newSession.CartSessionID = "cart_other"
	fresh, err := f.svc.CreateBatch(ctx, newSession)
	require.NoError(t, err)
	assert.True(t, fresh.Results[0].IsNew, "no fuzzy stage for supplier orders")
}

func TestCreateBatch_NotifierFailureDoesNotFailDocument(t *testing.T) {
	f := newFixture(t, nil)
	f.notifier.err = errors.New("notifications down")

	result, err := f.svc.CreateBatch(context.Background(), scenarioInput())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, f.notifier.created, 1)
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = f.svc.Get(ctx, uuid.Nil)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	input := scenarioInput()
	input.DocumentTypes = []string{"quote", "invoice"}
	_, err = f.svc.CreateBatch(ctx, input)
	require.NoError(t, err)

	list, err := f.svc.List(ctx, ListParams{ClientID: "c1", Type: "invoice"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, enums.DocumentTypeInvoice, list.Items[0].Type)
	assert.Empty(t, list.Cursor)

	_, err = f.svc.List(ctx, ListParams{Type: "receipt"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = f.svc.List(ctx, ListParams{Cursor: "%%"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, Options{})
	assert.Error(t, err)

	_, err = NewService(NewRepository(newTestDB(t)), nil, Options{})
	assert.Error(t, err)
}

func TestCreateBatch_ConcurrentRequestsWithoutLockerShareOneDocument(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const callers = 2
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]*BatchResult, callers)
		errs    = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.svc.CreateBatch(ctx, scenarioInput())
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.True(t, results[i].Success, "caller %d: %+v", i, results[i].Errors)
		require.Len(t, results[i].Results, 1)
	}
	assert.Equal(t, results[0].Results[0].DocumentID, results[1].Results[0].DocumentID)
	assert.NotEqual(t, results[0].Results[0].IsNew, results[1].Results[0].IsNew, "exactly one caller creates")

	var count int64
	require.NoError(t, f.conn.Model(&models.Document{}).
		Where("type = ? AND client_id = ?", enums.DocumentTypeQuote, "c1").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Len(t, f.notifier.created, 1)
}
