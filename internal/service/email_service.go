package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"pickupmap/internal/models"
)

// UserLookup resolves user profiles for email delivery.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type sesSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService delivers notifications by email via Amazon SES
type EmailService struct {
	client     sesSender
	users      UserLookup
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	logger     *slog.Logger
}

// NewEmailService creates an email notifier. An empty fromEmail yields a
// disabled service that accepts and drops every notification.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName, appBaseURL string, users UserLookup, logger *slog.Logger) (*EmailService, error) {
	if fromEmail == "" {
		logger.Info("email notifications disabled: SES_FROM_EMAIL not configured")
		return &EmailService{users: users, logger: logger}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("email notifications enabled", "from", fromEmail, "region", awsRegion)
	return newEmailService(sesv2.NewFromConfig(cfg), fromEmail, fromName, appBaseURL, users, logger), nil
}

func newEmailService(client sesSender, fromEmail, fromName, appBaseURL string, users UserLookup, logger *slog.Logger) *EmailService {
	return &EmailService{
		client:     client,
		users:      users,
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		enabled:    true,
		logger:     logger,
	}
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// Notify emails the recipient of n. Recipients without an address on file
// are skipped.
func (s *EmailService) Notify(ctx context.Context, n models.Notification) error {
	if !s.enabled {
		return nil
	}

	recipient, err := s.users.GetByID(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("failed to look up recipient: %w", err)
	}
	if recipient == nil || recipient.Email == "" {
		s.logger.Debug("skipping email: no address on file", "user_id", n.UserID)
		return nil
	}

	subject, text, err := s.render(ctx, n)
	if err != nil {
		return err
	}
	link := s.gameLink(n)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<p>Hi %s,</p>
	<p>%s</p>
	<p><a href="%s">View the game</a></p>
</body>
</html>
`, html.EscapeString(recipient.DisplayName()), html.EscapeString(text), html.EscapeString(link))

	textBody := fmt.Sprintf("Hi %s,\n\n%s\n\nView the game: %s\n", recipient.DisplayName(), text, link)

	return s.sendEmail(ctx, recipient.Email, subject, htmlBody, textBody)
}

// render builds the subject and message line for a notification.
func (s *EmailService) render(ctx context.Context, n models.Notification) (subject, text string, err error) {
	title, _ := n.Data["postTitle"].(string)

	switch n.Type {
	case models.NotificationJoinedYourPost:
		joinedID, _ := n.Data["joinedUserId"].(string)
		name := "Someone"
		if joiner, err := s.users.GetByID(ctx, joinedID); err != nil {
			return "", "", fmt.Errorf("failed to look up joining user: %w", err)
		} else if joiner != nil {
			name = joiner.DisplayName()
		}
		return "New player for " + title, fmt.Sprintf("%s joined your game %q.", name, title), nil

	case models.NotificationTaggedInPost:
		taggedBy, _ := n.Data["taggedBy"].(string)
		name := "Someone"
		if host, err := s.users.GetByID(ctx, taggedBy); err != nil {
			return "", "", fmt.Errorf("failed to look up host: %w", err)
		} else if host != nil {
			name = host.DisplayName()
		}
		return "You're invited: " + title, fmt.Sprintf("%s invited you to %q.", name, title), nil
	}
	return "", "", fmt.Errorf("unsupported notification type %q", n.Type)
}

func (s *EmailService) gameLink(n models.Notification) string {
	postID, _ := n.Data["postId"].(string)
	return fmt.Sprintf("%s/games/%s", s.appBaseURL, postID)
}

// sendEmail sends an email using SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	messageID := ""
	if result != nil && result.MessageId != nil {
		messageID = *result.MessageId
	}
	s.logger.Info("email sent", "to", toEmail, "subject", subject, "message_id", messageID)
	return nil
}
