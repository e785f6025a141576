package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clubhub/internal/apperr"
	"clubhub/internal/auth"
	"clubhub/internal/budgets"
)

type budgetView struct {
	budgets.Budget
	Summary budgets.Summary `json:"summary"`
}

func viewOf(b budgets.Budget) budgetView {
	return budgetView{Budget: b, Summary: budgets.Derive(b)}
}

func (h *handler) listBudgets(c *gin.Context) {
	list, err := h.Budgets.List(c.Request.Context(), auth.CurrentIdentity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]budgetView, 0, len(list))
	for _, b := range list {
		out = append(out, viewOf(b))
	}
	c.JSON(http.StatusOK, gin.H{"budgets": out})
}

func (h *handler) allocateBudget(c *gin.Context) {
	var req struct {
		ClubID string   `json:"club_id" binding:"required"`
		Amount *float64 `json:"amount"`
	}
	if !h.bind(c, &req) {
		return
	}
	if req.Amount == nil {
		h.fail(c, apperr.Validation("amount is required"))
		return
	}
	b, err := h.Budgets.Allocate(c.Request.Context(), auth.CurrentIdentity(c), req.ClubID, *req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(b))
}

func (h *handler) getBudget(c *gin.Context) {
	b, err := h.Budgets.Get(c.Request.Context(), auth.CurrentIdentity(c), c.Param("clubId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(b))
}

func (h *handler) recordExpense(c *gin.Context) {
	var in budgets.ExpenseInput
	if !h.bind(c, &in) {
		return
	}
	b, err := h.Budgets.RecordExpense(c.Request.Context(), auth.CurrentIdentity(c), c.Param("clubId"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(b))
}
