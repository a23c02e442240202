package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jacksonlee411/claimwatch/modules/procurement/domain/ports"
	"github.com/jacksonlee411/claimwatch/modules/procurement/domain/types"
	"github.com/jacksonlee411/claimwatch/pkg/forensics"
	"github.com/jacksonlee411/claimwatch/pkg/httperr"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type LedgerPGStore struct {
	pool pgBeginner
}

func NewLedgerPGStore(pool pgBeginner) ports.LedgerStore {
	return &LedgerPGStore{pool: pool}
}

// claimFilterSQL restricts procurement.claims (alias c) by the four filter
// arguments $1..$4. Empty arguments do not filter.
const claimFilterSQL = `
	($1::text = '' OR c.department_address = $1::text)
	AND ($2::text = '' OR c.vendor_address = $2::text)
	AND ($3::text = '' OR c.create_time >= NULLIF($3::text, '')::date)
	AND ($4::text = '' OR c.create_time < NULLIF($4::text, '')::date + 1)
`

type filterArgs struct {
	department string
	vendor     string
	from       string
	to         string
}

func normalizeFilter(filter types.LedgerFilter) (filterArgs, error) {
	args := filterArgs{
		department: strings.TrimSpace(filter.Department),
		vendor:     strings.TrimSpace(filter.VendorAddress),
		from:       strings.TrimSpace(filter.CreatedFrom),
		to:         strings.TrimSpace(filter.CreatedTo),
	}
	var fromDate, toDate time.Time
	if args.from != "" {
		d, err := time.Parse("2006-01-02", args.from)
		if err != nil {
			return filterArgs{}, httperr.NewBadRequest("invalid from date")
		}
		fromDate = d
	}
	if args.to != "" {
		d, err := time.Parse("2006-01-02", args.to)
		if err != nil {
			return filterArgs{}, httperr.NewBadRequest("invalid to date")
		}
		toDate = d
	}
	if !fromDate.IsZero() && !toDate.IsZero() && toDate.Before(fromDate) {
		return filterArgs{}, httperr.NewBadRequest("to date is before from date")
	}
	return args, nil
}

// begin opens a transaction scoped to the filter's agency. Row-level security
// on the procurement schema reads app.current_agency.
func (s *LedgerPGStore) begin(ctx context.Context, filter types.LedgerFilter) (pgx.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_agency', $1, true);`, strings.TrimSpace(filter.Agency)); err != nil {
		_ = tx.Rollback(context.Background())
		return nil, err
	}
	return tx, nil
}

func (s *LedgerPGStore) ListClaims(ctx context.Context, filter types.LedgerFilter) ([]forensics.Claim, error) {
	args, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	tx, err := s.begin(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
	SELECT
	  c.claim_id::text,
	  COALESCE(c.vendor_address, ''),
	  COALESCE(c.department_address, ''),
	  COALESCE(c.amount::text, ''),
	  COALESCE(to_char(c.create_time AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'), '')
	FROM procurement.claims c
	WHERE `+claimFilterSQL+`
	ORDER BY c.create_time ASC NULLS LAST, c.claim_id ASC
	`, args.department, args.vendor, args.from, args.to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []forensics.Claim
	for rows.Next() {
		var c forensics.Claim
		var amount string
		if err := rows.Scan(&c.ClaimID, &c.VendorAddress, &c.DepartmentAddress, &amount, &c.CreateTime); err != nil {
			return nil, err
		}
		c.Amount = forensics.RawValue(amount)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LedgerPGStore) ListSupplierPayments(ctx context.Context, filter types.LedgerFilter) ([]forensics.SupplierPayment, error) {
	args, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	tx, err := s.begin(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
	SELECT
	  p.payment_id::text,
	  p.claim_id::text,
	  COALESCE(p.supplier_address, ''),
	  COALESCE(p.amount::text, '')
	FROM procurement.supplier_payments p
	JOIN procurement.claims c ON c.claim_id = p.claim_id
	WHERE `+claimFilterSQL+`
	ORDER BY p.payment_id ASC
	`, args.department, args.vendor, args.from, args.to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []forensics.SupplierPayment
	for rows.Next() {
		var p forensics.SupplierPayment
		var amount string
		if err := rows.Scan(&p.SupplierPaymentID, &p.ClaimID, &p.Supplier, &amount); err != nil {
			return nil, err
		}
		p.Amount = forensics.RawValue(amount)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LedgerPGStore) ListSubSupplierPayments(ctx context.Context, filter types.LedgerFilter) ([]forensics.SubSupplierPayment, error) {
	args, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	tx, err := s.begin(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
	SELECT
	  s.supplier_payment_id::text,
	  COALESCE(s.subsupplier_address, ''),
	  COALESCE(s.amount::text, '')
	FROM procurement.sub_supplier_payments s
	JOIN procurement.supplier_payments p ON p.payment_id = s.supplier_payment_id
	JOIN procurement.claims c ON c.claim_id = p.claim_id
	WHERE `+claimFilterSQL+`
	ORDER BY s.supplier_payment_id ASC, s.subsupplier_address ASC
	`, args.department, args.vendor, args.from, args.to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []forensics.SubSupplierPayment
	for rows.Next() {
		var p forensics.SubSupplierPayment
		var amount string
		if err := rows.Scan(&p.SupplierPaymentID, &p.Subsupplier, &amount); err != nil {
			return nil, err
		}
		p.Amount = forensics.RawValue(amount)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
