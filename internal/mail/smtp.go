package mail

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/idhub/authserver/config"
)

// SMTPDeliverer sends queued mail jobs over SMTP. It runs in the worker
// process, behind the queue boundary.
type SMTPDeliverer struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPDeliverer constructs an SMTP deliverer from config.
func NewSMTPDeliverer(cfg config.SMTPConfig) *SMTPDeliverer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPDeliverer{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth: auth,
		from: cfg.From,
	}
}

// Deliver sends a single mail job.
func (d *SMTPDeliverer) Deliver(job Job) error {
	if strings.TrimSpace(job.To) == "" {
		return fmt.Errorf("mail job missing recipient")
	}
	msg := strings.Join([]string{
		"From: " + d.from,
		"To: " + job.To,
		"Subject: " + job.Subject,
		"",
		job.Body,
	}, "\r\n")
	return smtp.SendMail(d.addr, d.auth, d.from, []string{job.To}, []byte(msg))
}
