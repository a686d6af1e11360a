// Package sync implements AccountSync (C3): pulling the external
// invoice-aggregation feed and reconciling it into the internal
// Client/Account/AccountRule tables.
package sync

import (
	"context"
	"time"
)

// ExternalRow is one row of the external invoice-aggregation view (§6),
// keyed by (vm_account_id, vm_account_number).
type ExternalRow struct {
	VMAccountID        int64
	CredentialID       int32
	ExternalClientID   *int32
	ClientName         *string
	VendorCode         *string
	VMAccountNumber    string
	InterfaceAccountID *string
	LastInvoiceDate    *time.Time
	InvoiceCount       int32

	// MedianInterInvoiceDays is the external view's own cadence
	// classification figure (median days between consecutive invoices).
	// AccountSync keeps using it to classify period_type, but always
	// recomputes the next-run date and window independently via
	// BillingPeriodCalculator rather than trust the view's date
	// arithmetic, which is naive day math and drifts over time.
	MedianInterInvoiceDays float64
}

// Source abstracts the read-only external invoice-aggregation database.
// ForEachRow must stream rather than buffer the full row set — the
// production view returns on the order of 170K rows.
type Source interface {
	Count(ctx context.Context) (int64, error)
	ForEachRow(ctx context.Context, fn func(ExternalRow) error) error
}
