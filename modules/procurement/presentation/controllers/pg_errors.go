package controllers

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

func pgErrorMessage(err error) string {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		msg := strings.TrimSpace(pgErr.Message)
		if msg != "" {
			return msg
		}
	}
	return "UNKNOWN"
}

func pgErrorCode(err error) string {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		return strings.TrimSpace(pgErr.Code)
	}
	return ""
}

func isPgInvalidInput(err error) bool {
	switch pgErrorCode(err) {
	case "22P02", "22003", "22007", "22008":
		return true
	default:
		return false
	}
}

// stablePgMessage returns a machine code for a ledger failure: a code raised
// by the database itself, a mapped SQLSTATE, or "" when there is none.
func stablePgMessage(err error) string {
	if msg := pgErrorMessage(err); isStableDBCode(msg) {
		return msg
	}
	switch pgErrorCode(err) {
	case "42P01", "3F000":
		return "LEDGER_SCHEMA_MISSING"
	case "42501":
		return "LEDGER_ACCESS_DENIED"
	case "57014":
		return "LEDGER_QUERY_CANCELED"
	}
	return ""
}

func isStableDBCode(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" || code == "UNKNOWN" {
		return false
	}
	for i := 0; i < len(code); i++ {
		ch := code[i]
		if ch >= 'A' && ch <= 'Z' {
			continue
		}
		if ch >= '0' && ch <= '9' {
			continue
		}
		if ch == '_' {
			continue
		}
		return false
	}
	return code[0] >= 'A' && code[0] <= 'Z'
}
