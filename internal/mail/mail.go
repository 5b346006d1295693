// Package mail defines the outbound email capability used to deliver
// verification codes. The server side only enqueues; actual SMTP
// delivery happens in the worker process.
package mail

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/idhub/authserver/internal/mq"
)

// Sender delivers a verification code to an address. Implementations
// report failure synchronously; the core owns no retry logic.
type Sender interface {
	SendOTP(ctx context.Context, toAddress, code string) error
}

// Job is the queued mail payload exchanged between server and worker.
type Job struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// QueueSender publishes OTP mail jobs to the message queue. A failed
// publish is the delivery failure surfaced to the registration flow.
type QueueSender struct {
	backend mq.Backend
	channel string
}

// NewQueueSender constructs a QueueSender for the given queue channel.
func NewQueueSender(backend mq.Backend, channel string) *QueueSender {
	return &QueueSender{backend: backend, channel: channel}
}

// SendOTP enqueues a verification mail job.
func (s *QueueSender) SendOTP(ctx context.Context, toAddress, code string) error {
	job := Job{
		To:      toAddress,
		Subject: "Your verification code",
		Body:    fmt.Sprintf("Your verification code is %s. It expires shortly.", code),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if _, err := s.backend.Publish(ctx, s.channel, data, map[string]string{"kind": "otp"}); err != nil {
		return fmt.Errorf("publish mail job: %w", err)
	}
	return nil
}
