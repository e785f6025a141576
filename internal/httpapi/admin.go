package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"clubhub/internal/access"
	"clubhub/internal/auth"
	"clubhub/internal/queue"
)

const defaultActivityLimit = 50

func (h *handler) adminStats(c *gin.Context) {
	counts, err := h.Stats.Counts(c.Request.Context(), auth.CurrentIdentity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *handler) adminActivity(c *gin.Context) {
	if err := auth.CurrentIdentity(c).Require(access.ViewStats); err != nil {
		h.fail(c, err)
		return
	}
	limit := defaultActivityLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	if h.Feed == nil {
		c.JSON(http.StatusOK, gin.H{"activity": []queue.Activity{}})
		return
	}
	acts, err := h.Feed.Recent(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if acts == nil {
		acts = []queue.Activity{}
	}
	c.JSON(http.StatusOK, gin.H{"activity": acts})
}
