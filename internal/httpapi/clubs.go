package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clubhub/internal/auth"
	"clubhub/internal/clubs"
)

func (h *handler) listClubs(c *gin.Context) {
	list, err := h.Clubs.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clubs": list})
}

func (h *handler) getClub(c *gin.Context) {
	club, err := h.Clubs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, club)
}

func (h *handler) createClub(c *gin.Context) {
	var in clubs.CreateInput
	if !h.bind(c, &in) {
		return
	}
	club, err := h.Clubs.Create(c.Request.Context(), auth.CurrentIdentity(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, club)
}

func (h *handler) updateClub(c *gin.Context) {
	var in clubs.UpdateInput
	if !h.bind(c, &in) {
		return
	}
	club, err := h.Clubs.Update(c.Request.Context(), auth.CurrentIdentity(c), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, club)
}

func (h *handler) deleteClub(c *gin.Context) {
	if err := h.Clubs.Delete(c.Request.Context(), auth.CurrentIdentity(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) joinClub(c *gin.Context) {
	actor := auth.CurrentIdentity(c)
	userID, ok := h.targetUser(c, actor.UserID)
	if !ok {
		return
	}
	club, err := h.Clubs.Join(c.Request.Context(), actor, c.Param("id"), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, club)
}

func (h *handler) clubLogo(c *gin.Context) {
	var req struct {
		ContentType string `json:"content_type" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	up, err := h.Clubs.RequestLogoUpload(c.Request.Context(), auth.CurrentIdentity(c), c.Param("id"), req.ContentType)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, up)
}

// targetUser reads an optional {"user_id"} body, defaulting to the caller.
func (h *handler) targetUser(c *gin.Context, fallback string) (string, bool) {
	if c.Request.ContentLength <= 0 {
		return fallback, true
	}
	var req struct {
		UserID string `json:"user_id"`
	}
	if !h.bind(c, &req) {
		return "", false
	}
	if req.UserID == "" {
		return fallback, true
	}
	return req.UserID, true
}
