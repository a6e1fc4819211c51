package notification

import (
	"go.uber.org/zap"

	"github.com/tixera/tixera-api/internal/domain"
)

// Noop is used when no SMTP host is configured; it only logs.
type Noop struct{}

func (Noop) TransactionApproved(user domain.User, txn domain.Transaction) error {
	zap.L().Info("notification skipped (no mailer configured)",
		zap.String("kind", "approved"),
		zap.Uint("transaction_id", txn.ID),
		zap.Uint("user_id", user.ID))
	return nil
}

func (Noop) TransactionRejected(user domain.User, txn domain.Transaction) error {
	zap.L().Info("notification skipped (no mailer configured)",
		zap.String("kind", "rejected"),
		zap.Uint("transaction_id", txn.ID),
		zap.Uint("user_id", user.ID))
	return nil
}
