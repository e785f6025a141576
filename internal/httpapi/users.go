package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clubhub/internal/access"
	"clubhub/internal/auth"
	"clubhub/internal/users"
)

func (h *handler) register(c *gin.Context) {
	var in users.RegisterInput
	if !h.bind(c, &in) {
		return
	}
	u, err := h.Users.Register(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *handler) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	u, pair, err := h.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "tokens": pair})
}

func (h *handler) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	pair, err := h.Users.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *handler) me(c *gin.Context) {
	u, err := h.Users.Get(c.Request.Context(), auth.CurrentIdentity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handler) myEvents(c *gin.Context) {
	evts, err := h.Events.ListForUser(c.Request.Context(), auth.CurrentIdentity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evts})
}

// getUser returns a profile to its owner or an admin.
func (h *handler) getUser(c *gin.Context) {
	id := c.Param("id")
	actor := auth.CurrentIdentity(c)
	if actor.UserID != id {
		if err := actor.Require(access.ManageUsers); err != nil {
			h.fail(c, err)
			return
		}
	}
	u, err := h.Users.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handler) adminUsers(c *gin.Context) {
	list, err := h.Users.List(c.Request.Context(), auth.CurrentIdentity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

func (h *handler) adminDeleteUser(c *gin.Context) {
	if err := h.Users.Delete(c.Request.Context(), auth.CurrentIdentity(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) adminSetRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	u, err := h.Users.SetRole(c.Request.Context(), auth.CurrentIdentity(c), c.Param("id"), req.Role)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
