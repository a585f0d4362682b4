package documents

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/domeo/backoffice/pkg/db/models"
	pkgerrors "github.com/domeo/backoffice/pkg/errors"
)

// maxChainDepth bounds both walks so corrupted parent links cannot loop forever.
const maxChainDepth = 32

// Chain relations.
const (
	RelationAncestor   = "ancestor"
	RelationSelf       = "self"
	RelationDescendant = "descendant"
)

// ChainEntry places one document relative to the requested one: ancestors
// have negative positions, the document itself 0, descendants positive.
type ChainEntry struct {
	Document models.Document
	Position int
	Relation string
}

// Chain is the ordered lineage of a document.
type Chain struct {
	DocumentID uuid.UUID
	Entries    []ChainEntry
}

func (s *service) Chain(ctx context.Context, id uuid.UUID) (*Chain, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document id required")
	}

	self, err := s.repo.GetByID(ctx, id, false)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load document")
	}

	visited := map[uuid.UUID]struct{}{self.ID: {}}

	ancestors, err := s.ancestors(ctx, self, visited)
	if err != nil {
		return nil, err
	}

	chain := &Chain{DocumentID: self.ID}
	for i, doc := range ancestors {
		chain.Entries = append(chain.Entries, ChainEntry{
			Document: doc,
			Position: i - len(ancestors),
			Relation: RelationAncestor,
		})
	}
	chain.Entries = append(chain.Entries, ChainEntry{Document: *self, Position: 0, Relation: RelationSelf})

	descendants, err := s.descendants(ctx, self.ID, visited)
	if err != nil {
		return nil, err
	}
	for i, doc := range descendants {
		chain.Entries = append(chain.Entries, ChainEntry{
			Document: doc,
			Position: i + 1,
			Relation: RelationDescendant,
		})
	}
	return chain, nil
}

// ancestors returns the parents of doc, root first. A dangling parent link
// ends the walk.
func (s *service) ancestors(ctx context.Context, doc *models.Document, visited map[uuid.UUID]struct{}) ([]models.Document, error) {
	var reversed []models.Document
	current := doc
	for depth := 0; depth < maxChainDepth && current.ParentDocumentID != nil; depth++ {
		parentID := *current.ParentDocumentID
		if _, seen := visited[parentID]; seen {
			break
		}
		parent, err := s.repo.GetByID(ctx, parentID, false)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			break
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parent document")
		}
		visited[parent.ID] = struct{}{}
		reversed = append(reversed, *parent)
		current = parent
	}

	out := make([]models.Document, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		out = append(out, reversed[i])
	}
	return out, nil
}

// descendants walks children breadth-first, oldest first within a level.
func (s *service) descendants(ctx context.Context, rootID uuid.UUID, visited map[uuid.UUID]struct{}) ([]models.Document, error) {
	var out []models.Document
	frontier := []uuid.UUID{rootID}
	for depth := 0; depth < maxChainDepth && len(frontier) > 0; depth++ {
		children, err := s.repo.ListChildren(ctx, frontier)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load child documents")
		}
		frontier = frontier[:0]
		for _, child := range children {
			if _, seen := visited[child.ID]; seen {
				continue
			}
			visited[child.ID] = struct{}{}
			out = append(out, child)
			frontier = append(frontier, child.ID)
		}
	}
	return out, nil
}
