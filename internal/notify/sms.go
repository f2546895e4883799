// Package notify tells citizens when their grievances change status.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/emilythestrangee/grievance-portal/backend/internal/config"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

const maxTitleLen = 60

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMS sends status updates through Twilio.
type SMS struct {
	api  messageCreator
	from string
	logg logrus.FieldLogger
}

func NewSMS(cfg config.TwilioConfig, logg logrus.FieldLogger) *SMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &SMS{api: client.Api, from: cfg.FromNumber, logg: logg}
}

// StatusChanged texts the author. Authors without a phone number are skipped.
func (s *SMS) StatusChanged(ctx context.Context, author models.User, g models.Grievance, from models.Status) error {
	to := strings.TrimSpace(author.Phone)
	if to == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(StatusMessage(g, from))

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send status sms for grievance %d: %w", g.ID, err)
	}

	entry := s.logg.WithFields(logrus.Fields{"grievanceId": g.ID, "userId": author.ID})
	if resp != nil && resp.Sid != nil {
		entry = entry.WithField("sid", *resp.Sid)
	}
	entry.Info("status sms sent")
	return nil
}

// StatusMessage renders the text sent on a status change.
func StatusMessage(g models.Grievance, from models.Status) string {
	title := g.Title
	if r := []rune(title); len(r) > maxTitleLen {
		title = string(r[:maxTitleLen-1]) + "…"
	}
	return fmt.Sprintf("Grievance #%d %q changed from %s to %s.", g.ID, title, from, g.Status)
}

// Noop drops every notification.
type Noop struct{}

func (Noop) StatusChanged(context.Context, models.User, models.Grievance, models.Status) error {
	return nil
}
