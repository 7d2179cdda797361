package router

import (
	"github.com/erp/ledger/internal/infrastructure/auth"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers served under the versioned API. Outbox and
// System are optional.
type Handlers struct {
	Account        *handler.AccountHandler
	Journal        *handler.JournalHandler
	Document       *handler.DocumentHandler
	Payment        *handler.PaymentHandler
	Reconciliation *handler.ReconciliationHandler
	Report         *handler.ReportHandler
	Outbox         *handler.OutboxHandler
	System         *handler.SystemHandler
}

// LedgerGroups builds the ledger route groups. Every route except the system
// health endpoints names the permission it requires.
func LedgerGroups(h Handlers, log *zap.Logger) []*DomainGroup {
	perm := func(permissions ...string) gin.HandlerFunc {
		return middleware.RequirePermissionWithConfig(middleware.PermissionConfig{Logger: log}, permissions...)
	}
	var (
		read      = perm(auth.PermissionRead)
		post      = perm(auth.PermissionPost)
		approve   = perm(auth.PermissionApprove)
		reconcile = perm(auth.PermissionReconcile)
		admin     = perm(auth.PermissionAdmin)
	)

	// Chart of accounts
	accounts := NewDomainGroup("accounts", "/accounts")
	accounts.GET("", read, h.Account.List)
	accounts.GET("/hierarchy", read, h.Account.Hierarchy)
	accounts.GET("/verify", read, h.Journal.VerifyAll)
	accounts.GET("/code/:code", read, h.Account.GetByCode)
	accounts.GET("/:id", read, h.Account.Get)
	accounts.GET("/:id/verify", read, h.Journal.VerifyBalance)
	accounts.GET("/:id/ledger", read, h.Report.AccountLedger)
	accounts.POST("", admin, h.Account.Create)
	accounts.POST("/import", admin, h.Account.ImportChart)
	accounts.PATCH("/:id", admin, h.Account.Update)
	accounts.PUT("/:id/parent", admin, h.Account.Reparent)
	accounts.POST("/:id/activate", admin, h.Account.Activate)
	accounts.POST("/:id/deactivate", admin, h.Account.Deactivate)
	accounts.POST("/:id/close", admin, h.Account.Close)

	// Journal
	journal := NewDomainGroup("journal", "/journal-entries")
	journal.GET("", read, h.Journal.List)
	journal.GET("/number/:number", read, h.Journal.GetByNumber)
	journal.GET("/:id", read, h.Journal.Get)
	journal.POST("", post, h.Journal.CreateDraft)
	journal.POST("/post-batch", post, h.Journal.PostBatch)
	journal.POST("/:id/lines", post, h.Journal.AddLines)
	journal.DELETE("/:id/lines/:line", post, h.Journal.RemoveLine)
	journal.POST("/:id/post", post, h.Journal.Post)
	journal.POST("/:id/reverse", post, h.Journal.Reverse)

	trialBalance := NewDomainGroup("trial-balance", "/trial-balance")
	trialBalance.GET("", read, h.Journal.TrialBalance)

	// Bills and invoices
	documents := NewDomainGroup("documents", "/documents")
	documents.GET("", read, h.Document.List)
	documents.GET("/number/:kind/:number", read, h.Document.GetByNumber)
	documents.GET("/:id", read, h.Document.Get)
	documents.POST("", post, h.Document.Create)
	documents.POST("/overdue-sweep", admin, h.Document.MarkOverdue)
	documents.POST("/:id/lines", post, h.Document.AddLineItem)
	documents.DELETE("/:id/lines/:index", post, h.Document.RemoveLineItem)
	documents.PUT("/:id/discount", post, h.Document.SetDiscount)
	documents.PUT("/:id/early-payment", post, h.Document.SetEarlyPaymentTerms)
	documents.POST("/:id/submit", post, h.Document.Submit)
	documents.POST("/:id/return-to-draft", post, h.Document.ReturnToDraft)
	documents.POST("/:id/payments", post, h.Document.ProcessPayment)
	documents.POST("/:id/approve", approve, h.Document.Approve)
	documents.POST("/:id/reject", approve, h.Document.Reject)
	documents.POST("/:id/issue", approve, h.Document.Issue)
	documents.POST("/:id/void", approve, h.Document.Void)

	// Payments
	payments := NewDomainGroup("payments", "/payments")
	payments.GET("", read, h.Payment.List)
	payments.GET("/number/:number", read, h.Payment.GetByNumber)
	payments.GET("/:id", read, h.Payment.Get)
	payments.POST("", post, h.Payment.Create)
	payments.PUT("/:id/allocations", post, h.Payment.Allocate)
	payments.POST("/:id/submit", post, h.Payment.Submit)
	payments.POST("/:id/approve", approve, h.Payment.Approve)
	payments.POST("/:id/issue", approve, h.Payment.Issue)
	payments.POST("/:id/void", approve, h.Payment.Void)

	// Bank reconciliation
	reconciliations := NewDomainGroup("reconciliations", "/reconciliations")
	reconciliations.GET("", read, h.Reconciliation.List)
	reconciliations.GET("/:id", read, h.Reconciliation.Get)
	reconciliations.POST("", reconcile, h.Reconciliation.Start)
	reconciliations.POST("/:id/bank-lines", reconcile, h.Reconciliation.AddBankLines)
	reconciliations.POST("/:id/bank-lines/import", reconcile, h.Reconciliation.ImportBankStatement)
	reconciliations.POST("/:id/outstanding-items", reconcile, h.Reconciliation.AddOutstandingItem)
	reconciliations.POST("/:id/adjustments", reconcile, h.Reconciliation.AddAdjustment)
	reconciliations.POST("/:id/auto-match", reconcile, h.Reconciliation.AutoMatch)
	reconciliations.POST("/:id/complete", reconcile, h.Reconciliation.Complete)
	reconciliations.POST("/:id/variance-pending", reconcile, h.Reconciliation.MarkVariancePending)
	reconciliations.POST("/:id/reject", reconcile, h.Reconciliation.Reject)
	reconciliations.POST("/:id/reopen", reconcile, h.Reconciliation.Reopen)
	reconciliations.POST("/:id/accept-variance", approve, h.Reconciliation.AcceptVariance)

	// Report archive
	reports := NewDomainGroup("reports", "/reports")
	reports.POST("/trial-balance", read, h.Report.ExportTrialBalance)
	reports.POST("/account-ledger/:id", read, h.Report.ExportAccountLedger)
	reports.POST("/reconciliation/:id", read, h.Report.ExportReconciliation)
	reports.GET("/files/*key", read, h.Report.Download)

	groups := []*DomainGroup{accounts, journal, trialBalance, documents, payments, reconciliations, reports}

	if h.System != nil || h.Outbox != nil {
		system := NewDomainGroup("system", "/system")
		if h.System != nil {
			system.GET("/info", h.System.GetSystemInfo)
			system.GET("/ping", h.System.Ping)
		}
		if h.Outbox != nil {
			outbox := system.Group("outbox", "/outbox").Use(admin)
			outbox.GET("/stats", h.Outbox.GetStats)
			outbox.GET("/dead", h.Outbox.GetDeadLetterEntries)
			outbox.POST("/dead/retry-all", h.Outbox.RetryAllDeadEntries)
			outbox.GET("/:id", h.Outbox.GetEntry)
			outbox.POST("/:id/retry", h.Outbox.RetryDeadEntry)
		}
		groups = append(groups, system)
	}
	return groups
}

// RegisterLedger registers every ledger route group on r
func RegisterLedger(r *Router, h Handlers, log *zap.Logger) *Router {
	for _, g := range LedgerGroups(h, log) {
		r.Register(g)
	}
	return r
}
