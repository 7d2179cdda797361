package handler

import (
	"net/http"
	"strings"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/gin-gonic/gin"
)

// ReportHandler serves ledger reports and their archived exports
type ReportHandler struct {
	BaseHandler
	reportService *ledgerapp.ReportService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService *ledgerapp.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// AccountLedger godoc
// @ID           getAccountLedger
// @Summary      Account ledger with running balance
// @Tags         reports
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Param        from query string false "First date" format(date)
// @Param        to query string false "Last date" format(date)
// @Success      200 {object} APIResponse[ledgerapp.AccountLedger]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /accounts/{id}/ledger [get]
func (h *ReportHandler) AccountLedger(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	from, ok := h.queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := h.queryDate(c, "to")
	if !ok {
		return
	}
	report, err := h.reportService.AccountLedger(c.Request.Context(), id, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// ExportTrialBalance godoc
// @ID           exportTrialBalance
// @Summary      Archive a trial balance
// @Tags         reports
// @Produce      json
// @Param        as_of query string false "Balances at the end of this day" format(date)
// @Success      201 {object} APIResponse[ledgerapp.ReportExport]
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reports/trial-balance [post]
func (h *ReportHandler) ExportTrialBalance(c *gin.Context) {
	asOf, ok := h.queryDate(c, "as_of")
	if !ok {
		return
	}
	export, err := h.reportService.ExportTrialBalance(c.Request.Context(), derefTime(asOf))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, export)
}

// ExportAccountLedger godoc
// @ID           exportAccountLedger
// @Summary      Archive an account ledger
// @Tags         reports
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Param        from query string false "First date" format(date)
// @Param        to query string false "Last date" format(date)
// @Success      201 {object} APIResponse[ledgerapp.ReportExport]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reports/account-ledger/{id} [post]
func (h *ReportHandler) ExportAccountLedger(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	from, ok := h.queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := h.queryDate(c, "to")
	if !ok {
		return
	}
	export, err := h.reportService.ExportAccountLedger(c.Request.Context(), id, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, export)
}

// ExportReconciliation godoc
// @ID           exportReconciliation
// @Summary      Archive a reconciliation report
// @Tags         reports
// @Produce      json
// @Param        id path string true "Reconciliation ID" format(uuid)
// @Success      201 {object} APIResponse[ledgerapp.ReportExport]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reports/reconciliation/{id} [post]
func (h *ReportHandler) ExportReconciliation(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	export, err := h.reportService.ExportReconciliation(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, export)
}

// Download godoc
// @ID           downloadReport
// @Summary      Download an archived report
// @Tags         reports
// @Produce      json
// @Param        key path string true "Report key"
// @Success      200 {file} file
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reports/files/{key} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" || strings.Contains(key, "..") {
		h.BadRequest(c, "Invalid report key")
		return
	}
	body, err := h.reportService.GetReport(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}
