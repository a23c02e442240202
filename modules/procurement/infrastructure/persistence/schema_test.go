package persistence

import (
	"strings"
	"testing"
)

func TestSchemaSQL_CoversQueriedTables(t *testing.T) {
	sql := SchemaSQL()
	for _, want := range []string{
		"procurement.claims",
		"procurement.supplier_payments",
		"procurement.sub_supplier_payments",
		"payment_id text PRIMARY KEY",
		"subsupplier_address text",
		"current_setting('app.current_agency', true)",
		"FORCE ROW LEVEL SECURITY",
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("schema missing %q", want)
		}
	}
}

func TestSchemaSQL_ExcludesDown(t *testing.T) {
	sql := SchemaSQL()
	if strings.Contains(sql, "DROP TABLE") || strings.Contains(sql, "+goose") {
		t.Fatalf("schema=%s", sql)
	}
	if !strings.HasPrefix(sql, "CREATE SCHEMA") {
		t.Fatalf("schema starts %q", sql[:20])
	}
}
