package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"hr-workflow/internal/i18n"
	"hr-workflow/internal/mattermost"
	"hr-workflow/internal/model"
	"hr-workflow/internal/notify"
	"hr-workflow/internal/workflow"
)

// ActionRequest is the Mattermost interactive action request.
type ActionRequest struct {
	UserID    string         `json:"user_id"`
	UserName  string         `json:"user_name"`
	ChannelID string         `json:"channel_id"`
	PostID    string         `json:"post_id"`
	TriggerID string         `json:"trigger_id"`
	Type      string         `json:"type"`
	Context   map[string]any `json:"context"`
}

// DialogSubmission is the Mattermost dialog submission.
type DialogSubmission struct {
	Type       string            `json:"type"`
	CallbackID string            `json:"callback_id"`
	UserID     string            `json:"user_id"`
	UserName   string            `json:"user_name"`
	ChannelID  string            `json:"channel_id"`
	TeamID     string            `json:"team_id"`
	Submission map[string]string `json:"submission"`
	Cancelled  bool              `json:"cancelled"`
}

// ActionResponse is the response to an interactive action.
type ActionResponse struct {
	Update        *ActionUpdate `json:"update,omitempty"`
	EphemeralText string        `json:"ephemeral_text,omitempty"`
}

// ActionUpdate replaces the original post.
type ActionUpdate struct {
	Message string            `json:"message,omitempty"`
	Props   *mattermost.Props `json:"props,omitempty"`
}

// MattermostHandler turns approve/reject buttons on notification DMs into
// workflow transitions. Mattermost user ids are directory ids.
type MattermostHandler struct {
	engine *workflow.Engine
	mm     *mattermost.Client
	botURL string
}

func NewMattermostHandler(engine *workflow.Engine, mm *mattermost.Client, botURL string) *MattermostHandler {
	return &MattermostHandler{engine: engine, mm: mm, botURL: botURL}
}

// HandleApprove approves the request from the button context (no dialog).
func (h *MattermostHandler) HandleApprove(c *gin.Context) {
	var req ActionRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	ctx := c.Request.Context()
	requestID, _ := req.Context["request_id"].(string)

	res, err := h.engine.Transition(ctx, workflow.TransitionInput{
		RequestID: requestID,
		Outcome:   model.OutcomeApprove,
		ActorID:   req.UserID,
	})
	if err != nil {
		log.Printf("WARN [mattermost] approve %s by %s: %v", requestID, req.UserID, err)
		c.JSON(http.StatusOK, ActionResponse{EphemeralText: i18n.T(ctx, "mattermost.failed", map[string]any{"Error": err.Error()})})
		return
	}
	c.JSON(http.StatusOK, decidedResponse(ctx, res.Request))
}

// HandleReject opens the rejection reason dialog.
func (h *MattermostHandler) HandleReject(c *gin.Context) {
	var req ActionRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	ctx := c.Request.Context()
	requestID, _ := req.Context["request_id"].(string)

	if !h.mm.Enabled() {
		c.JSON(http.StatusOK, ActionResponse{EphemeralText: i18n.T(ctx, "mattermost.open_form_failed")})
		return
	}
	err := h.mm.OpenDialog(ctx, &mattermost.DialogRequest{
		TriggerID: req.TriggerID,
		URL:       h.botURL + notify.RejectSubmitPath,
		Dialog: mattermost.Dialog{
			Title:       i18n.T(ctx, "mattermost.reject_title"),
			CallbackID:  requestID,
			SubmitLabel: i18n.T(ctx, "mattermost.reject"),
			Elements: []mattermost.DialogElement{
				{DisplayName: i18n.T(ctx, "mattermost.reject_reason"), Name: "reason", Type: "textarea", Optional: true},
			},
		},
	})
	if err != nil {
		log.Printf("ERROR [mattermost] open reject dialog for %s: %v", requestID, err)
		c.JSON(http.StatusOK, ActionResponse{EphemeralText: i18n.T(ctx, "mattermost.open_form_failed")})
		return
	}
	c.JSON(http.StatusOK, ActionResponse{})
}

// HandleRejectSubmit processes the rejection dialog submission.
func (h *MattermostHandler) HandleRejectSubmit(c *gin.Context) {
	var sub DialogSubmission
	if err := json.NewDecoder(c.Request.Body).Decode(&sub); err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	if sub.Cancelled {
		c.Status(http.StatusOK)
		return
	}
	ctx := c.Request.Context()

	_, err := h.engine.Transition(ctx, workflow.TransitionInput{
		RequestID:   sub.CallbackID,
		Outcome:     model.OutcomeReject,
		ActorID:     sub.UserID,
		Observation: sub.Submission["reason"],
	})
	if err != nil {
		log.Printf("WARN [mattermost] reject %s by %s: %v", sub.CallbackID, sub.UserID, err)
		c.JSON(http.StatusOK, gin.H{"error": i18n.T(ctx, "mattermost.failed", map[string]any{"Error": err.Error()})})
		return
	}
	c.Status(http.StatusOK)
}

func decidedResponse(ctx context.Context, req *model.Request) ActionResponse {
	return ActionResponse{Update: &ActionUpdate{
		Message: i18n.T(ctx, "mattermost.decided", map[string]any{"Status": i18n.T(ctx, "status."+string(req.Status))}),
		Props:   &mattermost.Props{},
	}}
}
