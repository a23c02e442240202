package persistence

import (
	_ "embed"
	"strings"
)

// migration is a goose migration; run it with
// go tool goose -dir modules/procurement/infrastructure/persistence/migrations postgres "$DATABASE_URL" up
//
//go:embed migrations/00001_procurement_ledger.sql
var migration string

// SchemaSQL returns the Up section of the ledger migration: the procurement
// tables and the agency row policy. It is idempotent.
func SchemaSQL() string {
	up, _, _ := strings.Cut(migration, "-- +goose Down")
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(up), "-- +goose Up"))
}
