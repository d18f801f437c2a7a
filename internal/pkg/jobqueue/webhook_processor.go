package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/greatplr/membersync/app/models"
	"github.com/greatplr/membersync/app/repository"
	"github.com/greatplr/membersync/internal/pkg/reconcile"
)

// WebhookProcessor applies queued webhook events through the reconciliation
// engine and writes the terminal audit entry for each job.
type WebhookProcessor struct {
	engine *reconcile.Engine
	repos  *repository.Repositories
}

func NewWebhookProcessor(engine *reconcile.Engine, repos *repository.Repositories) *WebhookProcessor {
	return &WebhookProcessor{
		engine: engine,
		repos:  repos,
	}
}

// ProcessWebhookEvent handles one queued webhook event. A missing
// installation turns into a discard: the job references state that no longer
// exists and retrying cannot bring it back.
func (p *WebhookProcessor) ProcessWebhookEvent(ctx context.Context, job *Job) error {
	payload, err := WebhookEventJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid webhook job payload: %w", err)
	}
	if payload.Event == nil {
		return errors.New("webhook job payload has no event")
	}

	installation, err := p.repos.Installation.GetByID(payload.InstallationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: installation %d: %s", ErrDiscardJob, payload.InstallationID, reconcile.ErrInstallationGone)
		}
		return fmt.Errorf("failed to load installation %d: %w", payload.InstallationID, err)
	}

	outcome, err := p.engine.Apply(ctx, installation, payload.Event)
	if err != nil {
		if errors.Is(err, reconcile.ErrInstallationGone) {
			return fmt.Errorf("%w: %s", ErrDiscardJob, err)
		}
		return err
	}

	status := models.WebhookStatusProcessed
	if outcome.Skipped {
		status = models.WebhookStatusIgnored
	}
	p.audit(payload, status, outcome.Message)

	log.Infof("[Webhook] Processed %s for installation %s: %s", payload.EventName, installation.Slug, outcome.Message)
	return nil
}

// HandlePermanentFailure audits a job whose retry budget is exhausted.
func (p *WebhookProcessor) HandlePermanentFailure(_ context.Context, job *Job, jobErr error) {
	payload, err := WebhookEventJobPayloadFromMap(job.Payload)
	if err != nil {
		log.Errorf("[Webhook] Cannot audit failed job %s: %v", job.ID, err)
		return
	}
	p.audit(payload, models.WebhookStatusError,
		fmt.Sprintf("permanently failed after %d attempts: %s", job.RetryCount, jobErr))
}

func (p *WebhookProcessor) audit(payload *WebhookEventJobPayload, status, message string) {
	raw, _ := json.Marshal(payload.Event)
	entry := &models.WebhookLog{
		EventType: payload.EventName,
		Status:    status,
		Payload:   string(raw),
		Message:   message,
		IPAddress: payload.ClientIP,
	}
	if err := p.repos.WebhookLog.Insert(entry); err != nil {
		log.Errorf("[Webhook] Failed to write audit entry for %s: %v", payload.EventName, err)
	}
}
