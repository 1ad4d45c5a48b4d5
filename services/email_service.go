package services

import (
	"crypto/tls"
	"fmt"
	"log"
	"net/smtp"
	"os"
	"strings"

	"github.com/learnhub/lms-api/model"
)

// EmailService handles sending transactional emails via SMTP
type EmailService struct {
	host     string
	port     int
	username string
	password string
	from     string
	appURL   string
}

// NewEmailService creates a new email service instance
func NewEmailService() *EmailService {
	port := 587
	if p := os.Getenv("SMTP_PORT"); p != "" {
		fmt.Sscanf(p, "%d", &port)
	}

	return &EmailService{
		host:     getEnvOrDefault("SMTP_HOST", "smtp.gmail.com"),
		port:     port,
		username: os.Getenv("SMTP_USERNAME"),
		password: os.Getenv("SMTP_PASSWORD"),
		from:     getEnvOrDefault("SMTP_FROM", "noreply@learnhub.app"),
		appURL:   getEnvOrDefault("APP_URL", "http://localhost:3000"),
	}
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// IsConfigured checks if SMTP is properly configured
func (e *EmailService) IsConfigured() bool {
	return e.username != "" && e.password != ""
}

// SendPaymentReceipt emails a receipt once a payment settles
func (e *EmailService) SendPaymentReceipt(toEmail, userName string, payment *model.Payment, courseTitle string) error {
	if !e.IsConfigured() {
		log.Printf("SMTP not configured. Skipping receipt for %s (transaction %s)", toEmail, payment.TransactionID)
		return fmt.Errorf("SMTP not configured")
	}

	subject := "Payment Receipt - LearnHub"
	body := e.buildEmailBody(userName,
		"Payment received",
		fmt.Sprintf("We received your payment of %.2f %s for <strong>%s</strong>.", payment.Amount, payment.Currency, courseTitle),
		fmt.Sprintf("Transaction reference: %s", payment.TransactionID))

	return e.sendEmail(toEmail, subject, body)
}

// SendRefundProcessed emails a confirmation once a refund completes
func (e *EmailService) SendRefundProcessed(toEmail, userName string, payment *model.Payment) error {
	if !e.IsConfigured() {
		log.Printf("SMTP not configured. Skipping refund email for %s (refund %s)", toEmail, payment.RefundRefID)
		return fmt.Errorf("SMTP not configured")
	}

	amount := payment.Amount
	if payment.RefundAmount != nil {
		amount = *payment.RefundAmount
	}

	subject := "Refund Processed - LearnHub"
	body := e.buildEmailBody(userName,
		"Refund processed",
		fmt.Sprintf("Your refund of %.2f %s has been processed. Depending on your bank it may take a few business days to appear.", amount, payment.Currency),
		fmt.Sprintf("Refund reference: %s", payment.RefundRefID))

	return e.sendEmail(toEmail, subject, body)
}

// SendCourseCompleted congratulates a student on finishing a course
func (e *EmailService) SendCourseCompleted(toEmail, userName, courseTitle string) error {
	if !e.IsConfigured() {
		log.Printf("SMTP not configured. Skipping completion email for %s", toEmail)
		return fmt.Errorf("SMTP not configured")
	}

	subject := "Course Completed - LearnHub"
	body := e.buildEmailBody(userName,
		"Congratulations!",
		fmt.Sprintf("You have completed <strong>%s</strong>. Head to your dashboard to see what's next.", courseTitle),
		"")

	return e.sendEmail(toEmail, subject, body)
}

// buildEmailBody creates a simple HTML email body
func (e *EmailService) buildEmailBody(userName, heading, message, footnote string) string {
	if userName == "" {
		userName = "there"
	}

	var footnoteHTML string
	if footnote != "" {
		footnoteHTML = fmt.Sprintf(`<p class="footnote">%s</p>`, footnote)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .container { background-color: #ffffff; border-radius: 8px; padding: 32px; border: 1px solid #eee; }
        h2 { color: #1a4d8f; margin-top: 0; }
        .footnote { color: #666; font-size: 12px; background-color: #f5f5f5; padding: 10px; border-radius: 4px; }
        .footer { margin-top: 24px; font-size: 12px; color: #666; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h2>%s</h2>
        <p>Hi %s,</p>
        <p>%s</p>
        %s
    </div>
    <div class="footer">LearnHub &middot; <a href="%s">%s</a></div>
</body>
</html>`, heading, userName, message, footnoteHTML, e.appURL, e.appURL)
}

// sendEmail delivers an HTML email over SMTP with STARTTLS
func (e *EmailService) sendEmail(to, subject, htmlBody string) error {
	headers := make(map[string]string)
	headers["From"] = fmt.Sprintf("LearnHub <%s>", e.from)
	headers["To"] = to
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"

	var message strings.Builder
	for k, v := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	message.WriteString("\r\n")
	message.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	auth := smtp.PlainAuth("", e.username, e.password, e.host)

	tlsConfig := &tls.Config{
		ServerName: e.host,
	}

	conn, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	if err := conn.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}
	if err := conn.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err := conn.Mail(e.from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := conn.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := conn.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err := w.Write([]byte(message.String())); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return conn.Quit()
}
