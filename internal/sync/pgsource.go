package sync

import (
	"context"
	"database/sql"
	"fmt"
)

// externalViewQuery is the invoice-aggregation view's row shape (§6). The
// median/cadence figure and last invoice date are computed by the source
// system itself; AccountSync only trusts the former, recomputing every
// date independently.
const externalViewQuery = `
	SELECT
		vm_account_id, credential_id, external_client_id, client_name, vendor_code,
		vm_account_number, interface_account_id, last_invoice_date, invoice_count,
		median_inter_invoice_days
	FROM invoice_aggregation_view
`

const externalCountQuery = `SELECT COUNT(*) FROM invoice_aggregation_view`

// PostgresSource reads the external invoice-aggregation view over a
// dedicated read-only connection to the source system's database.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource wraps db, a connection to the external, read-only
// invoice-aggregation database — distinct from the orchestrator's own
// Postgres pool.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, externalCountQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count external invoice rows: %w", err)
	}
	return n, nil
}

func (s *PostgresSource) ForEachRow(ctx context.Context, fn func(ExternalRow) error) error {
	rows, err := s.db.QueryContext(ctx, externalViewQuery)
	if err != nil {
		return fmt.Errorf("failed to query external invoice rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row ExternalRow
		if err := rows.Scan(
			&row.VMAccountID, &row.CredentialID, &row.ExternalClientID, &row.ClientName, &row.VendorCode,
			&row.VMAccountNumber, &row.InterfaceAccountID, &row.LastInvoiceDate, &row.InvoiceCount,
			&row.MedianInterInvoiceDays,
		); err != nil {
			return fmt.Errorf("failed to scan external invoice row: %w", err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}
