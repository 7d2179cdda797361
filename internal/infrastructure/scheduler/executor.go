package scheduler

import (
	"context"
	"fmt"
	"time"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"go.uber.org/zap"
)

// OverdueMarker is the document operation run by the overdue sweep
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (*ledgerapp.OverdueSweepResult, error)
}

// TrialBalanceExporter archives the trial balance
type TrialBalanceExporter interface {
	ExportTrialBalance(ctx context.Context, asOf time.Time) (*ledgerapp.ReportExport, error)
}

// LedgerJobExecutor runs ledger maintenance jobs against the application services
type LedgerJobExecutor struct {
	documents OverdueMarker
	reports   TrialBalanceExporter
	logger    *zap.Logger
}

var _ JobExecutor = (*LedgerJobExecutor)(nil)

// NewLedgerJobExecutor builds an executor; reports may be nil when report storage is off
func NewLedgerJobExecutor(documents OverdueMarker, reports TrialBalanceExporter, logger *zap.Logger) *LedgerJobExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerJobExecutor{documents: documents, reports: reports, logger: logger}
}

func (e *LedgerJobExecutor) Execute(ctx context.Context, job *Job) error {
	switch job.Kind {
	case JobOverdueSweep:
		res, err := e.documents.MarkOverdue(ctx, job.AsOf)
		if err != nil {
			return fmt.Errorf("overdue sweep as of %s: %w", job.AsOf.Format("2006-01-02"), err)
		}
		e.logger.Info("Overdue sweep finished",
			zap.String("job_id", job.ID.String()),
			zap.Int("bills", res.Bills),
			zap.Int("invoices", res.Invoices),
		)
		return nil
	case JobTrialBalanceExport:
		if e.reports == nil {
			e.logger.Debug("Trial balance export skipped, report storage disabled")
			return nil
		}
		export, err := e.reports.ExportTrialBalance(ctx, job.AsOf)
		if err != nil {
			return fmt.Errorf("trial balance export as of %s: %w", job.AsOf.Format("2006-01-02"), err)
		}
		e.logger.Info("Trial balance archived",
			zap.String("job_id", job.ID.String()),
			zap.String("key", export.Key),
		)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownJobKind, job.Kind)
	}
}
