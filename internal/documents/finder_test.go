package documents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domeo/backoffice/pkg/db/models"
	"github.com/domeo/backoffice/pkg/enums"
)

type stubFinderRepo struct {
	Repository
	exact      *models.Document
	exactErr   error
	candidates []models.Document
	lastExact  exactQuery
	lastCands  *candidateQuery
}

func (s *stubFinderRepo) FindExact(ctx context.Context, query exactQuery) (*models.Document, error) {
	s.lastExact = query
	return s.exact, s.exactErr
}

func (s *stubFinderRepo) FindCandidates(ctx context.Context, query candidateQuery) ([]models.Document, error) {
	s.lastCands = &query
	return s.candidates, nil
}

func storedDoc(t *testing.T, items []NormalizedItem) models.Document {
	t.Helper()
	data, err := encodeCartData(items, 0)
	require.NoError(t, err)
	return models.Document{Type: enums.DocumentTypeQuote, Number: "QT-1", CartData: data}
}

func TestFinder_ExactStageConfirmedByComparator(t *testing.T) {
	items := sampleCart()
	doc := storedDoc(t, items)
	repo := &stubFinderRepo{exact: &doc}
	finder := NewFinder(repo, 0, nil)

	found, stage, err := finder.Find(context.Background(), FindInput{Type: enums.DocumentTypeQuote, ClientID: "c1", CartSessionID: "s", Items: items, TotalAmount: 2200})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, StageExact, stage)
	require.NotNil(t, repo.lastExact.ClientID)
	assert.Equal(t, "c1", *repo.lastExact.ClientID)
	assert.Equal(t, 2200.0, repo.lastExact.MinTotal)
	assert.Equal(t, 2200.0, repo.lastExact.MaxTotal)
	assert.Nil(t, repo.lastCands, "fuzzy stage skipped after an exact match")
}

func TestFinder_FallsBackToFirstMatchingCandidate(t *testing.T) {
	items := sampleCart()
	mismatch := storedDoc(t, items[:1])
	match := storedDoc(t, items)
	match.Number = "QT-2"
	later := storedDoc(t, items)
	later.Number = "QT-3"
	repo := &stubFinderRepo{exact: &mismatch, candidates: []models.Document{mismatch, match, later}}
	finder := NewFinder(repo, 0, nil)

	found, stage, err := finder.Find(context.Background(), FindInput{Type: enums.DocumentTypeInvoice, ClientID: "c1", Items: items, TotalAmount: 2200})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "QT-2", found.Number)
	assert.Equal(t, StageFuzzy, stage)
	require.NotNil(t, repo.lastCands)
	assert.Equal(t, DefaultCandidateLimit, repo.lastCands.Limit)
	assert.Equal(t, "c1", repo.lastCands.ClientID)
	assert.InDelta(t, 2199.99, repo.lastCands.MinTotal, 1e-9)
	assert.InDelta(t, 2200.01, repo.lastCands.MaxTotal, 1e-9)
}

func TestFinder_SupplierOrdersSkipFuzzyStageAndClientScope(t *testing.T) {
	repo := &stubFinderRepo{}
	finder := NewFinder(repo, 5, nil)

	found, _, err := finder.Find(context.Background(), FindInput{Type: enums.DocumentTypeSupplierOrder, ClientID: "c1", Items: sampleCart(), TotalAmount: 10})
	require.NoError(t, err)
	assert.Nil(t, found)
	assert.Nil(t, repo.lastExact.ClientID)
	assert.Less(t, repo.lastExact.MinTotal, repo.lastExact.MaxTotal)
	assert.Nil(t, repo.lastCands)
}

func TestFinder_PropagatesRepositoryErrors(t *testing.T) {
	repo := &stubFinderRepo{exactErr: errors.New("db down")}
	finder := NewFinder(repo, 0, nil)

	_, _, err := finder.Find(context.Background(), FindInput{Type: enums.DocumentTypeQuote, ClientID: "c1"})
	assert.Error(t, err)
}

func TestFinder_OrdersIgnoreParent(t *testing.T) {
	repo := &stubFinderRepo{}
	finder := NewFinder(repo, 0, nil)
	parent := storedDoc(t, nil).ID

	_, _, err := finder.Find(context.Background(), FindInput{Type: enums.DocumentTypeOrder, ClientID: "c1", ParentID: &parent})
	require.NoError(t, err)
	assert.Nil(t, repo.lastExact.ParentID)
	require.NotNil(t, repo.lastCands)
	assert.Nil(t, repo.lastCands.ParentID)
}
