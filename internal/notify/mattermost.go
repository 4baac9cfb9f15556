package notify

import (
	"context"
	"fmt"

	"hr-workflow/internal/i18n"
	"hr-workflow/internal/mattermost"
	"hr-workflow/internal/model"
)

// Mattermost action callback paths, relative to the service base URL.
const (
	ApprovePath      = "/api/mattermost/actions/approve"
	RejectPath       = "/api/mattermost/actions/reject"
	RejectSubmitPath = "/api/mattermost/actions/reject-submit"
)

// MattermostPusher mirrors notifications into the recipient's bot DM.
// Directory user ids are Mattermost user ids.
type MattermostPusher struct {
	client *mattermost.Client
	botURL string
}

func NewMattermostPusher(client *mattermost.Client, botURL string) *MattermostPusher {
	return &MattermostPusher{client: client, botURL: botURL}
}

func (p *MattermostPusher) Push(ctx context.Context, d Delivery) error {
	n := d.Notification
	att := mattermost.Attachment{
		Title: n.Title,
		Text:  n.Message,
		Color: colorOf(n.Kind),
	}
	if req := d.Request; req != nil {
		att.Fields = []mattermost.Field{
			{Title: "Type", Value: req.Type, Short: true},
			{Title: "Status", Value: string(req.Status), Short: true},
			{Title: "Dates", Value: req.StartDate + " → " + req.EndDate, Short: true},
			{Title: "Days", Value: fmt.Sprint(req.WorkingDays), Short: true},
		}
		if d.Actionable {
			actx := map[string]any{"request_id": req.ID}
			att.Actions = []mattermost.Action{
				{Name: i18n.T(ctx, "mattermost.approve"), Type: "button", Style: "success", Integration: mattermost.Integration{
					URL: p.botURL + ApprovePath, Context: actx,
				}},
				{Name: i18n.T(ctx, "mattermost.reject"), Type: "button", Style: "danger", Integration: mattermost.Integration{
					URL: p.botURL + RejectPath, Context: actx,
				}},
			}
		}
	}

	_, err := p.client.SendDM(ctx, n.RecipientID, &mattermost.Post{
		Props: mattermost.Props{Attachments: []mattermost.Attachment{att}},
	})
	return err
}

func colorOf(kind model.NotificationKind) string {
	switch kind {
	case model.NotificationSuccess:
		return "#2e7d32"
	case model.NotificationWarning:
		return "#f9a825"
	case model.NotificationError:
		return "#c62828"
	}
	return "#1565c0"
}
