// Package notify delivers best-effort admin notifications when a form
// handshake completes. Delivery failures are logged, never surfaced.
package notify

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"recruithub/internal/common/aws"
	"recruithub/internal/common/config"
	"recruithub/internal/common/logger"
	"recruithub/internal/models"
)

// Notifier sends form-bound notifications over the channels enabled in
// configuration. A nil SES or SNS client disables that channel.
type Notifier struct {
	ses         *aws.SESClient
	sns         *aws.SNSClient
	cfg         config.NotificationConfig
	adminEmails []string
	logger      logger.Logger
}

func New(sesClient *aws.SESClient, snsClient *aws.SNSClient, cfg config.NotificationConfig, adminEmails []string, log logger.Logger) *Notifier {
	return &Notifier{
		ses:         sesClient,
		sns:         snsClient,
		cfg:         cfg,
		adminEmails: adminEmails,
		logger:      log,
	}
}

// NotifyFormBound announces a completed handshake to the configured admins.
func (n *Notifier) NotifyFormBound(ctx context.Context, form *models.Form) {
	subject := "Form connected to recruitment process"
	body := fmt.Sprintf(
		"A form was bound to recruitment process %s.\n\nForm ID: %s\nProvider: %s\nScript ID: %s\n",
		form.RecruitmentID, form.ID, form.Provider, form.ScriptID,
	)

	if n.cfg.Email.Enabled && n.ses != nil && len(n.adminEmails) > 0 {
		n.sendEmail(ctx, subject, body)
	}
	if n.cfg.SMS.Enabled && n.sns != nil {
		n.sendSMS(ctx, fmt.Sprintf("Form %s bound to recruitment %s", form.ID, form.RecruitmentID))
	}
}

func (n *Notifier) sendEmail(ctx context.Context, subject, body string) {
	addresses := make([]string, len(n.adminEmails))
	copy(addresses, n.adminEmails)

	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Source: awssdk.String(n.cfg.Email.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: addresses,
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{
				Data:    awssdk.String(subject),
				Charset: awssdk.String("UTF-8"),
			},
			Body: &sestypes.Body{
				Text: &sestypes.Content{
					Data:    awssdk.String(body),
					Charset: awssdk.String("UTF-8"),
				},
			},
		},
	})
	if err != nil {
		n.logger.Warn("failed to send form-bound email", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	n.logger.Info("form-bound email sent", map[string]interface{}{
		"recipients": len(addresses),
	})
}

func (n *Notifier) sendSMS(ctx context.Context, message string) {
	for _, number := range n.cfg.SMS.PhoneNumbers {
		_, err := n.sns.Publish(ctx, &sns.PublishInput{
			Message:     awssdk.String(message),
			PhoneNumber: awssdk.String(number),
		})
		if err != nil {
			n.logger.Warn("failed to send form-bound sms", map[string]interface{}{
				"phone": number,
				"error": err.Error(),
			})
		}
	}
}
