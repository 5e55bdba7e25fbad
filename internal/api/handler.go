package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adiwira/cashflow-server/internal/ledger"
	"github.com/adiwira/cashflow-server/internal/models"
	"github.com/adiwira/cashflow-server/internal/ratelimit"
	"github.com/adiwira/cashflow-server/internal/service"
)

// Handler holds the API handlers
type Handler struct {
	svc       service.Service
	limiter   *ratelimit.Limiter
	rateLimit int
	rateWin   time.Duration
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service, limiter *ratelimit.Limiter, rateLimit int, rateWindow time.Duration) *Handler {
	return &Handler{
		svc:       svc,
		limiter:   limiter,
		rateLimit: rateLimit,
		rateWin:   rateWindow,
	}
}

// SetupRoutes registers all API routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware())
	v1.Use(RateLimitMiddleware(h.limiter, h.rateLimit, h.rateWin))

	v1.GET("/accounts", h.listAccounts)
	v1.POST("/accounts", h.createAccount)
	v1.PUT("/accounts/:id", h.renameAccount)
	v1.DELETE("/accounts/:id", h.deleteAccount)

	v1.POST("/transactions", h.createTransaction)
	v1.PUT("/transactions/:id", h.updateTransaction)
	v1.DELETE("/transactions/:id", h.deleteTransaction)
	v1.GET("/transactions/audit", h.listAuditRecords)

	v1.POST("/switch", h.createSwitch)
	v1.GET("/switch/:id", h.getSwitch)
	v1.PUT("/switch/:id", h.updateSwitch)
	v1.DELETE("/switch/:id", h.deleteSwitch)

	v1.GET("/budgets", h.listBudgets)
	v1.POST("/budgets", h.upsertBudget)
	v1.PUT("/budgets/:id", h.updateBudget)
	v1.DELETE("/budgets/:id", h.deleteBudget)

	v1.GET("/payday", h.getPayday)
	v1.PUT("/payday", h.setPayday)

	v1.GET("/ledger", h.ledgerPage)
	v1.GET("/summary", h.monthSummary)
	v1.GET("/analysis", h.analysis)
	v1.GET("/analysis/budget-shift", h.budgetShift)
	v1.POST("/balances/recompute", h.recomputeBalances)
}

func username(c *gin.Context) string {
	return c.GetString("username")
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, ledger.ErrSwitchNotFound),
		errors.Is(err, ledger.ErrBudgetNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ledger.ErrAccountExists):
		status, code = http.StatusBadRequest, "ACCOUNT_EXISTS"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		status, code = http.StatusBadRequest, "INSUFFICIENT_BALANCE"
	case errors.Is(err, ledger.ErrIsTransfer):
		status, code = http.StatusBadRequest, "IS_TRANSFER"
	case errors.Is(err, ledger.ErrInvalidCursor), errors.Is(err, ledger.ErrCursorMismatch):
		status, code = http.StatusBadRequest, "INVALID_CURSOR"
	case errors.Is(err, ledger.ErrValidation):
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, ledger.ErrConflict):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, ledger.ErrRateLimited):
		status, code = http.StatusTooManyRequests, "RATE_LIMITED"
	default:
		status, code = http.StatusInternalServerError, "INTERNAL_ERROR"
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	c.JSON(status, models.ErrorResponse{Status: "error", Code: code, Message: message})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "VALIDATION_ERROR",
		Message: err.Error(),
	})
}

// Account handlers
func (h *Handler) listAccounts(c *gin.Context) {
	accounts, err := h.svc.ListAccounts(c.Request.Context(), username(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *Handler) createAccount(c *gin.Context) {
	var req models.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	account, err := h.svc.CreateAccount(c.Request.Context(), username(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "accountId": account.ID})
}

func (h *Handler) renameAccount(c *gin.Context) {
	var req models.RenameAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.svc.RenameAccount(c.Request.Context(), username(c), c.Param("id"), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) deleteAccount(c *gin.Context) {
	if err := h.svc.DeleteAccount(c.Request.Context(), username(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Transaction handlers
func (h *Handler) createTransaction(c *gin.Context) {
	var req models.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	txn, err := h.svc.CreateTransaction(c.Request.Context(), username(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "transactionId": txn.ID})
}

func (h *Handler) updateTransaction(c *gin.Context) {
	var req models.UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.svc.UpdateTransaction(c.Request.Context(), username(c), c.Param("id"), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) deleteTransaction(c *gin.Context) {
	if err := h.svc.DeleteTransaction(c.Request.Context(), username(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) listAuditRecords(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := h.svc.ListAuditRecords(c.Request.Context(), username(c), c.Query("transaction_id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []models.AuditRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"audit": records})
}

// Switch handlers
func (h *Handler) createSwitch(c *gin.Context) {
	var req models.CreateSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	transferID, err := h.svc.CreateSwitch(c.Request.Context(), username(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "transferId": transferID})
}

func (h *Handler) getSwitch(c *gin.Context) {
	sw, err := h.svc.GetSwitch(c.Request.Context(), username(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sw)
}

func (h *Handler) updateSwitch(c *gin.Context) {
	var req models.UpdateSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.svc.UpdateSwitch(c.Request.Context(), username(c), c.Param("id"), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) deleteSwitch(c *gin.Context) {
	if err := h.svc.DeleteSwitch(c.Request.Context(), username(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Budget handlers
func (h *Handler) listBudgets(c *gin.Context) {
	month, budgets, err := h.svc.ListBudgets(c.Request.Context(), username(c), c.Query("month"))
	if err != nil {
		respondError(c, err)
		return
	}
	if budgets == nil {
		budgets = []models.Budget{}
	}
	c.JSON(http.StatusOK, gin.H{"month": month, "budgets": budgets})
}

func (h *Handler) upsertBudget(c *gin.Context) {
	var req models.UpsertBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	budgetID, err := h.svc.UpsertBudget(c.Request.Context(), username(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "budgetId": budgetID})
}

func (h *Handler) updateBudget(c *gin.Context) {
	var req models.UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.svc.UpdateBudget(c.Request.Context(), username(c), c.Param("id"), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) deleteBudget(c *gin.Context) {
	if err := h.svc.DeleteBudget(c.Request.Context(), username(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Payday handlers
func (h *Handler) getPayday(c *gin.Context) {
	info, err := h.svc.GetPayday(c.Request.Context(), username(c), c.Query("month"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) setPayday(c *gin.Context) {
	var req models.SetPaydayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.svc.SetPayday(c.Request.Context(), username(c), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Read handlers
func (h *Handler) ledgerPage(c *gin.Context) {
	var req models.LedgerPageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := h.svc.LedgerPage(c.Request.Context(), username(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) monthSummary(c *gin.Context) {
	summary, err := h.svc.MonthSummary(c.Request.Context(), username(c), c.Query("month"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) analysis(c *gin.Context) {
	result, err := h.svc.Analysis(c.Request.Context(), username(c), c.Query("month"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) budgetShift(c *gin.Context) {
	report, err := h.svc.BudgetShift(c.Request.Context(), username(c), c.Query("month"), c.Query("strategy"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) recomputeBalances(c *gin.Context) {
	report, err := h.svc.RecomputeBalances(c.Request.Context(), username(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "report": report})
}
