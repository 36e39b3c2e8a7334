// Package mailer sends single plain-text notifications through SMTP.
package mailer

import "context"

// Mailer performs one synchronous send attempt. Failures are returned as
// models.KindMail errors.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Config holds connection parameters for the SMTP transport.
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Encryption string // "none", "starttls", "ssl_tls"
}
