package enums

import (
	"fmt"
	"strings"
)

// DocumentType enumerates the commercial documents generated from a cart.
type DocumentType string

const (
	DocumentTypeQuote         DocumentType = "quote"
	DocumentTypeInvoice       DocumentType = "invoice"
	DocumentTypeOrder         DocumentType = "order"
	DocumentTypeSupplierOrder DocumentType = "supplier_order"
)

var validDocumentTypes = []DocumentType{
	DocumentTypeQuote,
	DocumentTypeInvoice,
	DocumentTypeOrder,
	DocumentTypeSupplierOrder,
}

var documentNumberPrefixes = map[DocumentType]string{
	DocumentTypeQuote:         "QT",
	DocumentTypeInvoice:       "INV",
	DocumentTypeOrder:         "ORD",
	DocumentTypeSupplierOrder: "SO",
}

// String implements fmt.Stringer.
func (d DocumentType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DocumentType.
func (d DocumentType) IsValid() bool {
	for _, candidate := range validDocumentTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// NumberPrefix is the human readable prefix used in document numbers.
func (d DocumentType) NumberPrefix() string {
	if prefix, ok := documentNumberPrefixes[d]; ok {
		return prefix
	}
	return "DOC"
}

// ClientScoped reports whether de-duplication for this type is restricted to
// the requesting client. Supplier orders aggregate across clients.
func (d DocumentType) ClientScoped() bool {
	return d != DocumentTypeSupplierOrder
}

// ParseDocumentType converts raw input into a DocumentType.
func ParseDocumentType(value string) (DocumentType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validDocumentTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document type %q", value)
}
