package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/creatia-api/pkg/jobs"
)

// Job types handled by the dispatcher.
const (
	JobTypeEmail = "notify.email"
	JobTypeSMS   = "notify.sms"
)

type emailJob struct {
	To, Subject, Body, SenderName string
}

type smsJob struct {
	To, Body string
}

// enqueuer is satisfied by *jobs.Queue.
type enqueuer interface {
	Enqueue(job jobs.Job) error
}

// Dispatcher fans a Message out to email and SMS jobs. Notify never fails the caller.
type Dispatcher struct {
	sender Sender
	queue  enqueuer
	logger *zap.Logger
}

// NewDispatcher wires sender behind queue. Register must be called on the
// queue's mux so the jobs are executed.
func NewDispatcher(sender Sender, queue enqueuer, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sender: sender, queue: queue, logger: logger}
}

// Register installs the job handlers on mux.
func (d *Dispatcher) Register(mux *jobs.Mux) {
	mux.Handle(JobTypeEmail, d.handleEmail)
	mux.Handle(JobTypeSMS, d.handleSMS)
}

// Notify schedules delivery of msg to recipient on every channel the recipient can receive.
func (d *Dispatcher) Notify(recipient Recipient, msg Message) {
	if recipient.Email == "" && recipient.Phone == "" {
		d.logger.Info("notification skipped, recipient has no contact details", zap.String("subject", msg.Subject))
		return
	}
	if recipient.Email != "" {
		d.enqueue(JobTypeEmail, emailJob{
			To:         recipient.Email,
			Subject:    msg.Subject,
			Body:       msg.Body,
			SenderName: msg.SenderName,
		})
	}
	if recipient.Phone != "" {
		body := msg.SMSBody
		if body == "" {
			body = msg.Subject
		}
		d.enqueue(JobTypeSMS, smsJob{To: recipient.Phone, Body: body})
	}
}

func (d *Dispatcher) enqueue(jobType string, payload interface{}) {
	job := jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: payload}
	if err := d.queue.Enqueue(job); err != nil {
		d.logger.Warn("notification not queued", zap.String("type", jobType), zap.Error(err))
	}
}

func (d *Dispatcher) handleEmail(ctx context.Context, job jobs.Job) error {
	p, ok := job.Payload.(emailJob)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	return d.skipUnconfigured(job, d.sender.SendEmail(ctx, p.To, p.Subject, p.Body, p.SenderName))
}

func (d *Dispatcher) handleSMS(ctx context.Context, job jobs.Job) error {
	p, ok := job.Payload.(smsJob)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	return d.skipUnconfigured(job, d.sender.SendSMS(ctx, p.To, p.Body))
}

func (d *Dispatcher) skipUnconfigured(job jobs.Job, err error) error {
	if errors.Is(err, ErrNotConfigured) {
		d.logger.Info("notification skipped, channel not configured", zap.String("type", job.Type))
		return nil
	}
	return err
}
