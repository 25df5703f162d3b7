package contracts

import "context"

// AuditAppender receives one record per order attempt
type AuditAppender interface {
	Append(ctx context.Context, rec AuditRecord) error
}
