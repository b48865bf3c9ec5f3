package services

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/username/cambitax/backend/src/config"
	"github.com/username/cambitax/backend/src/logger"
)

// NewEmailService picks the email backend from configuration. Unknown providers
// fall back to the mock sender so development setups never need credentials.
func NewEmailService() EmailService {
	switch config.Cfg.EmailServiceProvider {
	case "mailgun":
		return newMailgunEmailService()
	case "smtp":
		return newSMTPEmailService()
	default:
		logger.L.Warn("Using mock email service; emails will only be logged", "provider", config.Cfg.EmailServiceProvider)
		return &mockEmailService{}
	}
}

func verificationLink(token string) string {
	return fmt.Sprintf("%s?token=%s", config.Cfg.VerificationEmailBaseURL, token)
}

func verificationBody(username, token string) string {
	return fmt.Sprintf(
		"Hello %s,\n\nPlease verify your email address by clicking the link below:\n\n%s\n\nThis link expires in %s.\n\nIf you did not create an account, you can ignore this message.\n",
		username, verificationLink(token), config.Cfg.VerificationTokenExpiry)
}

type mailgunEmailService struct {
	client *mailgun.MailgunImpl
}

func newMailgunEmailService() EmailService {
	mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
	return &mailgunEmailService{client: mg}
}

func (s *mailgunEmailService) SendVerificationEmail(toEmail, username, token string) error {
	sender := fmt.Sprintf("%s <%s>", config.Cfg.SenderName, config.Cfg.SenderEmail)
	message := mailgun.NewMessage(sender, "Verify your email address", verificationBody(username, token), toEmail)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, id, err := s.client.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send verification email via Mailgun", "to", toEmail, "error", err)
		return fmt.Errorf("sending verification email: %w", err)
	}
	logger.L.Info("Verification email sent via Mailgun", "to", toEmail, "messageID", id)
	return nil
}

type smtpEmailService struct{}

func newSMTPEmailService() EmailService {
	return &smtpEmailService{}
}

func (s *smtpEmailService) SendVerificationEmail(toEmail, username, token string) error {
	addr := fmt.Sprintf("%s:%d", config.Cfg.SMTPServer, config.Cfg.SMTPPort)
	auth := smtp.PlainAuth("", config.Cfg.SMTPUser, config.Cfg.SMTPPassword, config.Cfg.SMTPServer)

	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: Verify your email address\r\n\r\n%s",
		config.Cfg.SenderName, config.Cfg.SenderEmail, toEmail, verificationBody(username, token))

	if err := smtp.SendMail(addr, auth, config.Cfg.SenderEmail, []string{toEmail}, []byte(msg)); err != nil {
		logger.L.Error("Failed to send verification email via SMTP", "to", toEmail, "error", err)
		return fmt.Errorf("sending verification email: %w", err)
	}
	logger.L.Info("Verification email sent via SMTP", "to", toEmail)
	return nil
}

type mockEmailService struct{}

func (s *mockEmailService) SendVerificationEmail(toEmail, username, token string) error {
	logger.L.Info("MOCK EMAIL: verification email",
		"to", toEmail,
		"username", username,
		"verificationLink", verificationLink(token))
	return nil
}
