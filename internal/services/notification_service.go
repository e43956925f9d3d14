package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESClient is the subset of the SES API used to send notices
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSuspensionNotifier emails account holders when their account is suspended
type SESSuspensionNotifier struct {
	client      SESClient
	fromAddress string
	logger      *slog.Logger
}

// NewSESSuspensionNotifier loads the default AWS config for region and builds a notifier
func NewSESSuspensionNotifier(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESSuspensionNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESSuspensionNotifierWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

func NewSESSuspensionNotifierWithClient(client SESClient, fromAddress string, logger *slog.Logger) *SESSuspensionNotifier {
	return &SESSuspensionNotifier{
		client:      client,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

// NotifySuspension sends the suspension notice to the account's email
func (n *SESSuspensionNotifier) NotifySuspension(ctx context.Context, account *models.Account, until time.Time) error {
	untilText := until.UTC().Format(time.RFC1123)

	textBody := fmt.Sprintf(`Your account has been temporarily suspended

We detected several failed sign-in attempts on your account and suspended it until %s.

You can sign in again after that time. If these attempts were not made by you, consider changing your password once the suspension ends.

This is an automated message. Please do not reply to this email.
`, untilText)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <h1>Your account has been temporarily suspended</h1>
    <p>We detected several failed sign-in attempts on your account and suspended it until <strong>%s</strong>.</p>
    <p>You can sign in again after that time. If these attempts were not made by you, consider changing your password once the suspension ends.</p>
    <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
</body>
</html>
`, untilText)

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{account.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Your account has been temporarily suspended"),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send suspension notice: %w", err)
	}

	n.logger.Info("suspension notice sent",
		slog.String("email", pkglogger.SanitizedEmail(account.Email)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
