package httperr

import (
	"fmt"
	"testing"
)

func TestIsBadRequest(t *testing.T) {
	if IsBadRequest(nil) {
		t.Fatalf("expected false for nil")
	}
	if IsBadRequest(NewBadRequest("bad")) != true {
		t.Fatalf("expected true for BadRequestError")
	}
	if !IsBadRequest(fmt.Errorf("load claims: %w", NewBadRequest("bad"))) {
		t.Fatalf("expected true for wrapped BadRequestError")
	}
	if IsBadRequest(assertErr("other")) {
		t.Fatalf("expected false for non-BadRequestError")
	}
	if IsBadRequest(NewPrecondition("empty")) {
		t.Fatalf("expected false for PreconditionError")
	}
}

func TestIsPrecondition(t *testing.T) {
	if IsPrecondition(nil) {
		t.Fatalf("expected false for nil")
	}
	err := fmt.Errorf("ledger: %w", NewPrecondition("no claims matched"))
	if !IsPrecondition(err) {
		t.Fatalf("expected true for wrapped PreconditionError")
	}
	if err.Error() != "ledger: no claims matched" {
		t.Fatalf("err=%q", err.Error())
	}
	if IsPrecondition(NewBadRequest("bad")) {
		t.Fatalf("expected false for BadRequestError")
	}
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
