package forensics

import (
	"fmt"
	"slices"
	"strings"
)

const (
	ColClaimID           = "claim_id"
	ColVendorAddress     = "vendor_address"
	ColDepartmentAddress = "department_address"
	ColAmount            = "amount"
	ColCreateTime        = "create_time"
	ColSupplierPaymentID = "supplier_payment_id"
	ColSupplier          = "supplier"
	ColSubsupplier       = "subsupplier"
)

var (
	claimColumns           = []string{ColClaimID, ColVendorAddress, ColDepartmentAddress, ColAmount, ColCreateTime}
	supplierPaymentColumns = []string{ColSupplierPaymentID, ColClaimID, ColSupplier, ColAmount}
	subSupplierColumns     = []string{ColSupplierPaymentID, ColSubsupplier, ColAmount}
)

func ClaimColumns() []string           { return slices.Clone(claimColumns) }
func SupplierPaymentColumns() []string { return slices.Clone(supplierPaymentColumns) }
func SubSupplierColumns() []string     { return slices.Clone(subSupplierColumns) }

type Claim struct {
	ClaimID           string   `json:"claim_id"`
	VendorAddress     string   `json:"vendor_address"`
	DepartmentAddress string   `json:"department_address"`
	Amount            RawValue `json:"amount"`
	CreateTime        string   `json:"create_time"`
}

type SupplierPayment struct {
	SupplierPaymentID string   `json:"supplier_payment_id"`
	ClaimID           string   `json:"claim_id"`
	Supplier          string   `json:"supplier"`
	Amount            RawValue `json:"amount"`
}

type SubSupplierPayment struct {
	SupplierPaymentID string   `json:"supplier_payment_id"`
	Subsupplier       string   `json:"subsupplier"`
	Amount            RawValue `json:"amount"`
}

// Columns lists the column names a table carries. An empty list means every
// standard column of that table is present.
type Columns []string

func (c Columns) has(all []string, name string) bool {
	if len(c) == 0 {
		return slices.Contains(all, name)
	}
	return slices.Contains(c, name)
}

func (c Columns) validate(table string, all []string) error {
	seen := make(map[string]bool, len(c))
	for _, name := range c {
		name = strings.TrimSpace(name)
		if !slices.Contains(all, name) {
			return fmt.Errorf("%w: %s: unknown column %q", ErrInvalidInput, table, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: %s: duplicate column %q", ErrInvalidInput, table, name)
		}
		seen[name] = true
	}
	return nil
}

type ClaimTable struct {
	Columns Columns `json:"columns,omitempty"`
	Rows    []Claim `json:"rows"`
}

func (t ClaimTable) Has(col string) bool { return t.Columns.has(claimColumns, col) }
func (t ClaimTable) Len() int            { return len(t.Rows) }

func (t ClaimTable) clone() ClaimTable {
	return ClaimTable{Columns: slices.Clone(t.Columns), Rows: slices.Clone(t.Rows)}
}

type SupplierPaymentTable struct {
	Columns Columns           `json:"columns,omitempty"`
	Rows    []SupplierPayment `json:"rows"`
}

func (t SupplierPaymentTable) Has(col string) bool { return t.Columns.has(supplierPaymentColumns, col) }
func (t SupplierPaymentTable) Len() int            { return len(t.Rows) }

func (t SupplierPaymentTable) clone() SupplierPaymentTable {
	return SupplierPaymentTable{Columns: slices.Clone(t.Columns), Rows: slices.Clone(t.Rows)}
}

type SubSupplierPaymentTable struct {
	Columns Columns              `json:"columns,omitempty"`
	Rows    []SubSupplierPayment `json:"rows"`
}

func (t SubSupplierPaymentTable) Has(col string) bool { return t.Columns.has(subSupplierColumns, col) }
func (t SubSupplierPaymentTable) Len() int            { return len(t.Rows) }

func (t SubSupplierPaymentTable) clone() SubSupplierPaymentTable {
	return SubSupplierPaymentTable{Columns: slices.Clone(t.Columns), Rows: slices.Clone(t.Rows)}
}

// groupKey normalizes a grouping key; the empty key means "missing" and is
// never grouped.
func groupKey(s string) string { return strings.TrimSpace(s) }

// orderedGroups groups row indexes by key in first-seen order.
type orderedGroups struct {
	keys []string
	rows map[string][]int
}

func newOrderedGroups() *orderedGroups {
	return &orderedGroups{rows: make(map[string][]int)}
}

func (g *orderedGroups) add(key string, idx int) {
	key = groupKey(key)
	if key == "" {
		return
	}
	if _, ok := g.rows[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.rows[key] = append(g.rows[key], idx)
}
