package documents

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/domeo/backoffice/pkg/enums"
)

// cartFingerprint identifies one logical cart for one document type.
type cartFingerprint struct {
	Type      enums.DocumentType
	ClientID  string
	ParentID  *uuid.UUID
	SessionID string
	Total     float64
	Items     []NormalizedItem
}

// DedupKey is stored in documents.dedup_key; its unique index rejects a
// second document for the same session and content.
func (f cartFingerprint) DedupKey() string {
	return f.hash(true)
}

// LockName ignores the session so retries with a regenerated session id
// contend for the same lock.
func (f cartFingerprint) LockName() string {
	return string(f.Type) + ":" + f.hash(false)
}

func (f cartFingerprint) hash(withSession bool) string {
	var b strings.Builder
	b.WriteString(string(f.Type))
	b.WriteByte('\n')
	if f.Type.ClientScoped() {
		b.WriteString(f.ClientID)
	}
	b.WriteByte('\n')
	if f.ParentID != nil {
		b.WriteString(f.ParentID.String())
	}
	b.WriteByte('\n')
	if withSession {
		b.WriteString(f.SessionID)
	}
	b.WriteByte('\n')
	b.WriteString(decimal.NewFromFloat(f.Total).StringFixed(2))
	for _, item := range f.Items {
		b.WriteByte('\n')
		b.WriteString(item.Type)
		b.WriteByte('|')
		b.WriteString(item.Model)
		b.WriteByte('|')
		b.WriteString(item.ID)
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(item.Quantity, 'f', -1, 64))
		b.WriteByte('|')
		b.WriteString(decimal.NewFromFloat(item.UnitPrice).StringFixed(2))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
