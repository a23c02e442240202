// Package tableio reads claim and payment tables from CSV or JSON files.
package tableio

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jacksonlee411/claimwatch/pkg/forensics"
)

var ErrUnsupportedFormat = errors.New("tableio: unsupported file format")

// Warehouse exports name some columns differently.
var columnAliases = map[string]string{
	"payment_id":          forensics.ColSupplierPaymentID,
	"supplier_address":    forensics.ColSupplier,
	"subsupplier_address": forensics.ColSubsupplier,
}

type tableSpec[R any] struct {
	name    string
	columns []string
	set     func(row *R, column string, value string)
}

var claimSpec = tableSpec[forensics.Claim]{
	name:    "claims",
	columns: forensics.ClaimColumns(),
	set: func(r *forensics.Claim, col, v string) {
		switch col {
		case forensics.ColClaimID:
			r.ClaimID = v
		case forensics.ColVendorAddress:
			r.VendorAddress = v
		case forensics.ColDepartmentAddress:
			r.DepartmentAddress = v
		case forensics.ColAmount:
			r.Amount = forensics.RawValue(v)
		case forensics.ColCreateTime:
			r.CreateTime = v
		}
	},
}

var supplierPaymentSpec = tableSpec[forensics.SupplierPayment]{
	name:    "supplier_payments",
	columns: forensics.SupplierPaymentColumns(),
	set: func(r *forensics.SupplierPayment, col, v string) {
		switch col {
		case forensics.ColSupplierPaymentID:
			r.SupplierPaymentID = v
		case forensics.ColClaimID:
			r.ClaimID = v
		case forensics.ColSupplier:
			r.Supplier = v
		case forensics.ColAmount:
			r.Amount = forensics.RawValue(v)
		}
	},
}

var subSupplierSpec = tableSpec[forensics.SubSupplierPayment]{
	name:    "subsupplier_payments",
	columns: forensics.SubSupplierColumns(),
	set: func(r *forensics.SubSupplierPayment, col, v string) {
		switch col {
		case forensics.ColSupplierPaymentID:
			r.SupplierPaymentID = v
		case forensics.ColSubsupplier:
			r.Subsupplier = v
		case forensics.ColAmount:
			r.Amount = forensics.RawValue(v)
		}
	},
}

func ReadClaimsCSV(r io.Reader) (forensics.ClaimTable, error) {
	cols, rows, err := readCSV(r, claimSpec)
	return forensics.ClaimTable{Columns: cols, Rows: rows}, err
}

func ReadSupplierPaymentsCSV(r io.Reader) (forensics.SupplierPaymentTable, error) {
	cols, rows, err := readCSV(r, supplierPaymentSpec)
	return forensics.SupplierPaymentTable{Columns: cols, Rows: rows}, err
}

func ReadSubSupplierPaymentsCSV(r io.Reader) (forensics.SubSupplierPaymentTable, error) {
	cols, rows, err := readCSV(r, subSupplierSpec)
	return forensics.SubSupplierPaymentTable{Columns: cols, Rows: rows}, err
}

// ReadClaimsJSON accepts either a table object {"columns": [...], "rows": [...]}
// or a bare array of row objects. For arrays the columns are the keys seen in
// any row.
func ReadClaimsJSON(r io.Reader) (forensics.ClaimTable, error) {
	cols, rows, err := readJSON(r, claimSpec)
	return forensics.ClaimTable{Columns: cols, Rows: rows}, err
}

func ReadSupplierPaymentsJSON(r io.Reader) (forensics.SupplierPaymentTable, error) {
	cols, rows, err := readJSON(r, supplierPaymentSpec)
	return forensics.SupplierPaymentTable{Columns: cols, Rows: rows}, err
}

func ReadSubSupplierPaymentsJSON(r io.Reader) (forensics.SubSupplierPaymentTable, error) {
	cols, rows, err := readJSON(r, subSupplierSpec)
	return forensics.SubSupplierPaymentTable{Columns: cols, Rows: rows}, err
}

// LoadClaims reads a .csv or .json claims file.
func LoadClaims(path string) (forensics.ClaimTable, error) {
	cols, rows, err := loadFile(path, claimSpec)
	return forensics.ClaimTable{Columns: cols, Rows: rows}, err
}

func LoadSupplierPayments(path string) (forensics.SupplierPaymentTable, error) {
	cols, rows, err := loadFile(path, supplierPaymentSpec)
	return forensics.SupplierPaymentTable{Columns: cols, Rows: rows}, err
}

func LoadSubSupplierPayments(path string) (forensics.SubSupplierPaymentTable, error) {
	cols, rows, err := loadFile(path, subSupplierSpec)
	return forensics.SubSupplierPaymentTable{Columns: cols, Rows: rows}, err
}

func loadFile[R any](path string, spec tableSpec[R]) (forensics.Columns, []R, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var (
		cols forensics.Columns
		rows []R
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		cols, rows, err = readCSV(f, spec)
	case ".json":
		cols, rows, err = readJSON(f, spec)
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return cols, rows, nil
}

func (s tableSpec[R]) column(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := columnAliases[name]; ok {
		name = alias
	}
	if !slices.Contains(s.columns, name) {
		return "", false
	}
	return name, true
}

// presence turns the recognized columns into a Columns list. A table with
// none of its standard columns is rejected because an empty list would read
// as "all present".
func (s tableSpec[R]) presence(seen []string) (forensics.Columns, error) {
	if len(seen) == 0 {
		return nil, fmt.Errorf("%s: no recognized columns (want some of %s)", s.name, strings.Join(s.columns, ", "))
	}
	out := make(forensics.Columns, 0, len(seen))
	for _, c := range s.columns {
		if slices.Contains(seen, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func readCSV[R any](r io.Reader, spec tableSpec[R]) (forensics.Columns, []R, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%s: empty file", spec.name)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	index := make([]string, len(header))
	var seen []string
	for i, h := range header {
		col, ok := spec.column(h)
		if !ok || slices.Contains(seen, col) {
			continue
		}
		index[i] = col
		seen = append(seen, col)
	}
	cols, err := spec.presence(seen)
	if err != nil {
		return nil, nil, err
	}

	rows := []R{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		var row R
		for i, v := range rec {
			if i < len(index) && index[i] != "" {
				spec.set(&row, index[i], strings.TrimSpace(v))
			}
		}
		rows = append(rows, row)
	}
	return cols, rows, nil
}

func readJSON[R any](r io.Reader, spec tableSpec[R]) (forensics.Columns, []R, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil, fmt.Errorf("%s: empty file", spec.name)
	}

	var objects []map[string]forensics.RawValue
	var declared []string
	if b[0] == '{' {
		var table struct {
			Columns []string                        `json:"columns"`
			Rows    []map[string]forensics.RawValue `json:"rows"`
		}
		if err := json.Unmarshal(b, &table); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", spec.name, err)
		}
		objects, declared = table.Rows, table.Columns
	} else if err := json.Unmarshal(b, &objects); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", spec.name, err)
	}

	var seen []string
	rows := make([]R, 0, len(objects))
	for _, obj := range objects {
		var row R
		for k, v := range obj {
			col, ok := spec.column(k)
			if !ok {
				continue
			}
			if !slices.Contains(seen, col) {
				seen = append(seen, col)
			}
			spec.set(&row, col, strings.TrimSpace(string(v)))
		}
		rows = append(rows, row)
	}

	switch {
	case declared != nil:
		return forensics.Columns(declared), rows, nil
	case len(objects) == 0:
		return nil, rows, nil
	}
	cols, err := spec.presence(seen)
	if err != nil {
		return nil, nil, err
	}
	return cols, rows, nil
}
