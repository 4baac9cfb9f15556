package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"hr-workflow/internal/apperr"
	"hr-workflow/internal/model"
	"hr-workflow/internal/workflow"
)

type RequestHandler struct {
	engine *workflow.Engine
}

type createRequestBody struct {
	Type        string         `json:"type"`
	StartDate   string         `json:"start_date"`
	EndDate     string         `json:"end_date"`
	WorkingDays int            `json:"working_days"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details"`
	Source      model.Source   `json:"source"`
}

// statusBody accepts either an outcome or the status the caller wants to reach.
type statusBody struct {
	Status      string `json:"status"`
	Outcome     string `json:"outcome"`
	Observation string `json:"observation"`
}

type transitionResponse struct {
	Request  *model.Request `json:"request"`
	Event    model.Event    `json:"event"`
	Replayed bool           `json:"replayed"`
}

// Create handles POST /requests.
func (h *RequestHandler) Create(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	res, err := h.engine.Create(c.Request.Context(), workflow.CreateInput{
		RequesterID: ActorID(c),
		Type:        body.Type,
		StartDate:   body.StartDate,
		EndDate:     body.EndDate,
		Description: body.Description,
		Details:     body.Details,
		WorkingDays: body.WorkingDays,
		Source:      body.Source,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res.Request)
}

// UpdateStatus handles PATCH /requests/:id/status.
func (h *RequestHandler) UpdateStatus(c *gin.Context) {
	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	raw := body.Outcome
	if raw == "" {
		raw = body.Status
	}
	outcome, err := ParseOutcome(raw)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := h.engine.Transition(c.Request.Context(), workflow.TransitionInput{
		RequestID:   c.Param("id"),
		Outcome:     outcome,
		ActorID:     ActorID(c),
		Observation: body.Observation,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, transitionResponse{Request: res.Request, Event: res.Event, Replayed: res.Replayed})
}

// outcomeWords holds the folded decision and status words accepted on
// PATCH /requests/:id/status.
var outcomeWords = map[string]model.Outcome{
	"approve":       model.OutcomeApprove,
	"approved":      model.OutcomeApprove,
	"chef_approved": model.OutcomeApprove,
	"approuve":      model.OutcomeApprove,
	"approuvee":     model.OutcomeApprove,
	"approuver":     model.OutcomeApprove,
	"accepte":       model.OutcomeApprove,
	"accepter":      model.OutcomeApprove,
	"valide":        model.OutcomeApprove,
	"valider":       model.OutcomeApprove,

	"reject":        model.OutcomeReject,
	"rejected":      model.OutcomeReject,
	"chef_rejected": model.OutcomeReject,
	"rejete":        model.OutcomeReject,
	"rejetee":       model.OutcomeReject,
	"rejeter":       model.OutcomeReject,
	"refuse":        model.OutcomeReject,
	"refused":       model.OutcomeReject,
	"refusee":       model.OutcomeReject,
	"refuser":       model.OutcomeReject,
}

// ParseOutcome maps a decision or a target status to an outcome. Clients send
// either "approve"/"reject" or the status they expect, in English or French.
// Only whole words are recognised.
func ParseOutcome(s string) (model.Outcome, error) {
	folded := strings.NewReplacer(" ", "_", "-", "_").Replace(workflow.Fold(s))
	if folded == "" {
		return "", apperr.Validation("status is required")
	}
	if o, ok := outcomeWords[folded]; ok {
		return o, nil
	}
	return "", apperr.Validation("unknown status %q", s)
}

// List handles GET /requests. ?review=true lists the requests awaiting the
// caller's decision instead of the caller's own.
func (h *RequestHandler) List(c *gin.Context) {
	in := workflow.ListInput{ViewerID: ActorID(c)}
	if v := c.Query("review"); v != "" {
		review, err := strconv.ParseBool(v)
		if err != nil {
			writeError(c, apperr.Validation("review must be a boolean"))
			return
		}
		in.Review = review
	}
	for _, raw := range c.QueryArray("status") {
		for _, s := range strings.Split(raw, ",") {
			st := model.Status(strings.TrimSpace(s))
			if !st.Valid() {
				writeError(c, apperr.Validation("unknown status %q", s))
				return
			}
			in.Statuses = append(in.Statuses, st)
		}
	}
	limit, err := queryLimit(c)
	if err != nil {
		writeError(c, err)
		return
	}
	in.Limit = limit

	reqs, err := h.engine.List(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

// Get handles GET /requests/:id.
func (h *RequestHandler) Get(c *gin.Context) {
	req, err := h.engine.Get(c.Request.Context(), ActorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// History handles GET /requests/:id/history.
func (h *RequestHandler) History(c *gin.Context) {
	events, err := h.engine.History(c.Request.Context(), ActorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	c.JSON(http.StatusOK, events)
}

// Delete handles DELETE /requests/:id.
func (h *RequestHandler) Delete(c *gin.Context) {
	if err := h.engine.Delete(c.Request.Context(), ActorID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func queryLimit(c *gin.Context) (int, error) {
	v := c.Query("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.Validation("limit must be a non-negative integer")
	}
	return n, nil
}
