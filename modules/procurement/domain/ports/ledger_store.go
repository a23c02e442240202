package ports

import (
	"context"

	"github.com/jacksonlee411/claimwatch/modules/procurement/domain/types"
	"github.com/jacksonlee411/claimwatch/pkg/forensics"
)

// LedgerStore reads the three ledger tiers. Payment listings return the rows
// reachable from the claims the same filter selects.
type LedgerStore interface {
	ListClaims(ctx context.Context, filter types.LedgerFilter) ([]forensics.Claim, error)
	ListSupplierPayments(ctx context.Context, filter types.LedgerFilter) ([]forensics.SupplierPayment, error)
	ListSubSupplierPayments(ctx context.Context, filter types.LedgerFilter) ([]forensics.SubSupplierPayment, error)
}
