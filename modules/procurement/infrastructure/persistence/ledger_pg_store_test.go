package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jacksonlee411/claimwatch/modules/procurement/domain/types"
	"github.com/jacksonlee411/claimwatch/pkg/httperr"
)

type beginFunc func(ctx context.Context) (pgx.Tx, error)

func (f beginFunc) Begin(ctx context.Context) (pgx.Tx, error) { return f(ctx) }

type txStub struct {
	pgx.Tx

	execErr   error
	queryErr  error
	commitErr error
	rows      *stubRows

	execArgs  [][]any
	querySQL  string
	queryArgs []any
	committed bool
}

func (t *txStub) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	t.execArgs = append(t.execArgs, args)
	return pgconn.CommandTag{}, t.execErr
}

func (t *txStub) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	t.querySQL = sql
	t.queryArgs = args
	if t.queryErr != nil {
		return nil, t.queryErr
	}
	if t.rows == nil {
		return &stubRows{}, nil
	}
	return t.rows, nil
}

func (t *txStub) Commit(context.Context) error {
	t.committed = t.commitErr == nil
	return t.commitErr
}

func (t *txStub) Rollback(context.Context) error { return nil }

type stubRows struct {
	pgx.Rows

	data    [][]string
	idx     int
	scanErr error
	err     error
}

func (r *stubRows) Close()     {}
func (r *stubRows) Err() error { return r.err }

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.idx-1]
	if len(row) != len(dest) {
		return fmt.Errorf("scan: got %d dest for %d values", len(dest), len(row))
	}
	for i, d := range dest {
		p, ok := d.(*string)
		if !ok {
			return fmt.Errorf("scan: dest %d is %T", i, d)
		}
		*p = row[i]
	}
	return nil
}

func storeWith(tx *txStub) *LedgerPGStore {
	return &LedgerPGStore{pool: beginFunc(func(context.Context) (pgx.Tx, error) { return tx, nil })}
}

func TestListClaims(t *testing.T) {
	tx := &txStub{rows: &stubRows{data: [][]string{
		{"c1", "V1", "D1", "9500.00", "2024-03-28T23:10:00Z"},
		{"c2", "", "D1", "", ""},
	}}}
	got, err := storeWith(tx).ListClaims(context.Background(), types.LedgerFilter{
		Agency:      " treasury ",
		Department:  " D1 ",
		CreatedFrom: "2024-03-01",
		CreatedTo:   "2024-03-31",
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(got) != 2 || got[0].ClaimID != "c1" || got[0].Amount != "9500.00" || got[0].CreateTime != "2024-03-28T23:10:00Z" {
		t.Fatalf("got=%+v", got)
	}
	if got[1].Amount != "" || got[1].VendorAddress != "" {
		t.Fatalf("got=%+v", got[1])
	}
	if !tx.committed {
		t.Fatal("expected commit")
	}
	if len(tx.execArgs) != 1 || tx.execArgs[0][0] != "treasury" {
		t.Fatalf("exec args=%v", tx.execArgs)
	}
	if tx.queryArgs[0] != "D1" || tx.queryArgs[1] != "" || tx.queryArgs[2] != "2024-03-01" || tx.queryArgs[3] != "2024-03-31" {
		t.Fatalf("query args=%v", tx.queryArgs)
	}
	if !strings.Contains(tx.querySQL, "FROM procurement.claims c") {
		t.Fatalf("sql=%s", tx.querySQL)
	}
}

func TestListSupplierPayments(t *testing.T) {
	tx := &txStub{rows: &stubRows{data: [][]string{{"p1", "c1", "S1", "9000"}}}}
	got, err := storeWith(tx).ListSupplierPayments(context.Background(), types.LedgerFilter{VendorAddress: "V1"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(got) != 1 || got[0].SupplierPaymentID != "p1" || got[0].ClaimID != "c1" || got[0].Supplier != "S1" || got[0].Amount != "9000" {
		t.Fatalf("got=%+v", got)
	}
	if !strings.Contains(tx.querySQL, "JOIN procurement.claims c") || tx.queryArgs[1] != "V1" {
		t.Fatalf("sql=%s args=%v", tx.querySQL, tx.queryArgs)
	}
}

func TestListSubSupplierPayments(t *testing.T) {
	tx := &txStub{rows: &stubRows{data: [][]string{{"p1", "X1", "100"}, {"p1", "X2", "50.5"}}}}
	got, err := storeWith(tx).ListSubSupplierPayments(context.Background(), types.LedgerFilter{})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(got) != 2 || got[1].Subsupplier != "X2" || got[1].Amount != "50.5" {
		t.Fatalf("got=%+v", got)
	}
	if !strings.Contains(tx.querySQL, "procurement.sub_supplier_payments") {
		t.Fatalf("sql=%s", tx.querySQL)
	}
}

func TestListClaims_Errors(t *testing.T) {
	boom := errors.New("boom")
	ctx := context.Background()

	t.Run("begin", func(t *testing.T) {
		s := &LedgerPGStore{pool: beginFunc(func(context.Context) (pgx.Tx, error) { return nil, boom })}
		if _, err := s.ListClaims(ctx, types.LedgerFilter{}); !errors.Is(err, boom) {
			t.Fatalf("err=%v", err)
		}
	})

	cases := []struct {
		name string
		tx   *txStub
	}{
		{name: "set_config", tx: &txStub{execErr: boom}},
		{name: "query", tx: &txStub{queryErr: boom}},
		{name: "scan", tx: &txStub{rows: &stubRows{data: [][]string{{"c1", "V", "D", "1", ""}}, scanErr: boom}}},
		{name: "rows", tx: &txStub{rows: &stubRows{err: boom}}},
		{name: "commit", tx: &txStub{commitErr: boom}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := storeWith(tc.tx).ListClaims(ctx, types.LedgerFilter{}); !errors.Is(err, boom) {
				t.Fatalf("err=%v", err)
			}
			if tc.tx.committed {
				t.Fatal("unexpected commit")
			}
		})
	}
}

func TestNormalizeFilter(t *testing.T) {
	cases := []struct {
		name   string
		filter types.LedgerFilter
		bad    bool
	}{
		{name: "empty", filter: types.LedgerFilter{}},
		{name: "range", filter: types.LedgerFilter{CreatedFrom: "2024-01-01", CreatedTo: "2024-01-01"}},
		{name: "bad from", filter: types.LedgerFilter{CreatedFrom: "01/02/2024"}, bad: true},
		{name: "bad to", filter: types.LedgerFilter{CreatedTo: "2024-13-01"}, bad: true},
		{name: "inverted", filter: types.LedgerFilter{CreatedFrom: "2024-02-01", CreatedTo: "2024-01-31"}, bad: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := normalizeFilter(tc.filter)
			if tc.bad {
				if !httperr.IsBadRequest(err) {
					t.Fatalf("err=%v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("err=%v", err)
			}
		})
	}

	tx := &txStub{}
	if _, err := storeWith(tx).ListSupplierPayments(context.Background(), types.LedgerFilter{CreatedTo: "nope"}); !httperr.IsBadRequest(err) {
		t.Fatalf("err=%v", err)
	}
	if tx.querySQL != "" {
		t.Fatal("query must not run on a bad filter")
	}
}
