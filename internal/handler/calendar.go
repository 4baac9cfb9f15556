package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hr-workflow/internal/calendar"
)

type CalendarHandler struct {
	projector *calendar.Projector
}

// Own handles GET /calendar.
func (h *CalendarHandler) Own(c *gin.Context) {
	h.query(c, calendar.ScopeOwn)
}

// Team handles GET /calendar/team. Admins pick the team with ?chef=.
func (h *CalendarHandler) Team(c *gin.Context) {
	h.query(c, calendar.ScopeTeam)
}

// All handles GET /calendar/all.
func (h *CalendarHandler) All(c *gin.Context) {
	h.query(c, calendar.ScopeAll)
}

func (h *CalendarHandler) query(c *gin.Context, scope calendar.Scope) {
	events, err := h.projector.Query(c.Request.Context(), calendar.Query{
		ViewerID: ActorID(c),
		Scope:    scope,
		ChefID:   c.Query("chef"),
		From:     c.Query("from"),
		To:       c.Query("to"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
