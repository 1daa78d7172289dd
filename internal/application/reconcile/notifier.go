package reconcile

import (
	"context"
	"log/slog"

	"github.com/brightbooks/recon-engine/internal/domain/ledger"
)

// Notifier receives link notifications after a run commits. The engine
// itself never consumes them; they exist for reporting surfaces.
type Notifier interface {
	NotifyLink(ctx context.Context, n ledger.LinkNotification)
}

// LogNotifier writes link notifications to the structured log. It is
// the default when no other notifier is wired in.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) NotifyLink(_ context.Context, notification ledger.LinkNotification) {
	attrs := []any{
		"transaction_id", notification.TransactionID,
		"confidence", notification.Confidence,
		"rule", notification.RuleApplied,
	}
	if notification.ReceiptID != nil {
		attrs = append(attrs, "receipt_id", *notification.ReceiptID)
	}
	if notification.SplitGroupID != nil {
		attrs = append(attrs, "split_group_id", notification.SplitGroupID.String())
	}
	n.log.Info("linked", attrs...)
}
