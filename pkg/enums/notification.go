package enums

import "fmt"

// NotificationKind classifies notifications raised by document generation.
type NotificationKind string

const (
	NotificationKindQuoteGenerated         NotificationKind = "quote_generated"
	NotificationKindInvoiceGenerated       NotificationKind = "invoice_generated"
	NotificationKindOrderCreated           NotificationKind = "order_created"
	NotificationKindSupplierOrderGenerated NotificationKind = "supplier_order_generated"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindQuoteGenerated,
	NotificationKindInvoiceGenerated,
	NotificationKindOrderCreated,
	NotificationKindSupplierOrderGenerated,
}

var notificationKindByDocumentType = map[DocumentType]NotificationKind{
	DocumentTypeQuote:         NotificationKindQuoteGenerated,
	DocumentTypeInvoice:       NotificationKindInvoiceGenerated,
	DocumentTypeOrder:         NotificationKindOrderCreated,
	DocumentTypeSupplierOrder: NotificationKindSupplierOrderGenerated,
}

// IsValid checks whether the given kind matches the canonical enum.
func (n NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw strings into NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}

// NotificationKindFor maps a freshly created document to its notification kind.
func NotificationKindFor(docType DocumentType) (NotificationKind, bool) {
	kind, ok := notificationKindByDocumentType[docType]
	return kind, ok
}
