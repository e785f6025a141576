package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"clubhub/internal/apperr"
	"clubhub/internal/auth"
	"clubhub/internal/events"
)

func (h *handler) listEvents(c *gin.Context) {
	f := events.ListFilter{
		Status:       c.Query("status"),
		ClubID:       c.Query("club_id"),
		UpcomingOnly: true,
	}
	if v := c.Query("upcoming"); v != "" {
		upcoming, err := strconv.ParseBool(v)
		if err != nil {
			h.fail(c, apperr.Validation("upcoming must be true or false"))
			return
		}
		f.UpcomingOnly = upcoming
	}
	list, err := h.Events.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": list})
}

func (h *handler) getEvent(c *gin.Context) {
	e, err := h.Events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *handler) createEvent(c *gin.Context) {
	var in events.CreateInput
	if !h.bind(c, &in) {
		return
	}
	e, err := h.Events.Create(c.Request.Context(), auth.CurrentIdentity(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *handler) updateEvent(c *gin.Context) {
	var in events.UpdateInput
	if !h.bind(c, &in) {
		return
	}
	e, err := h.Events.Update(c.Request.Context(), auth.CurrentIdentity(c), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *handler) deleteEvent(c *gin.Context) {
	if err := h.Events.Delete(c.Request.Context(), auth.CurrentIdentity(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) moderateEvent(c *gin.Context) {
	var req struct {
		Action string `json:"action" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	e, err := h.Events.SetStatus(c.Request.Context(), auth.CurrentIdentity(c), c.Param("id"), req.Action)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *handler) registerEvent(c *gin.Context) {
	actor := auth.CurrentIdentity(c)
	userID, ok := h.targetUser(c, actor.UserID)
	if !ok {
		return
	}
	regs, err := h.Events.Register(c.Request.Context(), actor, c.Param("id"), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event_id": c.Param("id"), "registrants": regs})
}

func (h *handler) adminEvents(c *gin.Context) {
	list, err := h.Events.ListAll(c.Request.Context(), auth.CurrentIdentity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": list})
}
