package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/storage"
)

// PeersMerchantName is the shared merchant all mobile peer payments collapse into.
const PeersMerchantName = "MobilePay - Peers"

// Reconciler retries merchant assignment for transactions that were stored
// without a merchant or sender.
type Reconciler struct {
	merchants MerchantResolver

	// ReconcileMPPB enables merchant derivation for mppb records. When false
	// mppb rows are left untouched.
	ReconcileMPPB bool
}

// Reconcile assigns a merchant to an existing unresolved transaction when the
// record's type allows it. It reports whether the transaction was updated.
func (r *Reconciler) Reconcile(ctx context.Context, repo storage.Repository, rec domain.RawTransactionRecord, existing *storage.TransactionRow) (bool, error) {
	if existing == nil || !existing.Unresolved() {
		return false, nil
	}

	var in MerchantInput
	switch rec.TransactionType {
	case domain.TypeMobilePayPeer:
		in = MerchantInput{Name: PeersMerchantName}

	case domain.TypeMobilePayPurchase:
		if !r.ReconcileMPPB {
			return false, nil
		}
		name := MerchantNameFromText(rec.TransactionText)
		if name == "" {
			return false, nil
		}
		in = MerchantInput{Name: name}

	default:
		return false, nil
	}

	merchantID, err := r.merchants.Resolve(ctx, repo, in)
	if err != nil {
		return false, fmt.Errorf("Reconciler.Reconcile: %s: %w", existing.TransactionKey, err)
	}

	updated, err := repo.SetTransactionMerchant(ctx, existing.TransactionKey, merchantID)
	if err != nil {
		return false, fmt.Errorf("Reconciler.Reconcile: %s: %w", existing.TransactionKey, err)
	}

	if updated {
		log := logger.FromContext(ctx)
		log.Debug().
			Str("transaction_key", existing.TransactionKey).
			Str("transaction_type", rec.TransactionType).
			Int64("merchant_id", merchantID).
			Msg("Reconciled unresolved transaction")
	}
	return updated, nil
}
