package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/greatplr/membersync/app/models"
	"github.com/greatplr/membersync/app/repository"
	"github.com/greatplr/membersync/internal/pkg/config"
	"github.com/greatplr/membersync/internal/pkg/jobqueue"
	"github.com/greatplr/membersync/internal/pkg/reconcile"
	"github.com/greatplr/membersync/internal/pkg/webhook"
)

// SignatureHeader carries the hex encoded HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Amember-Signature"

// WebhookController ingests aMember webhooks: resolve the sending
// installation by IP, verify the signature, normalize the event, then either
// enqueue it or apply it inline. Every terminal path writes exactly one
// audit entry.
type WebhookController struct {
	repos  *repository.Repositories
	engine *reconcile.Engine
	queue  *jobqueue.Queue
	cfg    config.Settings
}

func NewWebhookController(repos *repository.Repositories, engine *reconcile.Engine, queue *jobqueue.Queue, cfg config.Settings) *WebhookController {
	return &WebhookController{
		repos:  repos,
		engine: engine,
		queue:  queue,
		cfg:    cfg,
	}
}

// HandleWebhook is the single ingestion endpoint.
func (wc *WebhookController) HandleWebhook(c *fiber.Ctx) error {
	clientIP := c.IP()
	rawBody := append([]byte(nil), c.BodyRaw()...)

	installation, err := wc.repos.Installation.GetActiveByIP(clientIP)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Webhook] Request from unknown IP %s", clientIP)
			wc.audit(rawBody, "", clientIP, models.WebhookStatusFailed, "unknown installation ip")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown installation"})
		}
		log.Errorf("[Webhook] Installation lookup failed for %s: %v", clientIP, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Processing failed"})
	}

	if installation.HasWebhookSecret() {
		if !webhook.VerifySignature(rawBody, c.Get(SignatureHeader), installation.WebhookSecret) {
			wc.audit(rawBody, "", clientIP, models.WebhookStatusFailed, "invalid signature")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Invalid signature"})
		}
	} else {
		log.Warnf("[Webhook] Installation %s accepts unsigned webhooks", installation.Slug)
	}

	payload, err := webhook.DecodePayload(rawBody, c.Get(fiber.HeaderContentType))
	if err != nil {
		wc.audit(rawBody, "", clientIP, models.WebhookStatusFailed, "malformed payload")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Malformed payload"})
	}

	eventName := webhook.EventName(payload)
	ev := webhook.Normalize(eventName, payload)

	if ev.IsUnknown() {
		wc.audit(rawBody, eventName, clientIP, models.WebhookStatusIgnored, fmt.Sprintf("unknown event type: %s", eventName))
		return c.JSON(fiber.Map{"status": "success"})
	}

	wc.audit(rawBody, eventName, clientIP, models.WebhookStatusReceived, fmt.Sprintf("Event: %s from %s", eventName, installation.Name))

	if wc.cfg.WebhookUseQueue {
		return wc.enqueue(c, installation, eventName, clientIP, rawBody, ev)
	}
	return wc.applyInline(c, installation, eventName, clientIP, rawBody, ev)
}

func (wc *WebhookController) enqueue(c *fiber.Ctx, installation *models.Installation, eventName, clientIP string, rawBody []byte, ev *webhook.CanonicalEvent) error {
	job, err := wc.queue.EnqueueWebhookEvent(jobqueue.WebhookEventJobPayload{
		InstallationID: installation.ID,
		EventName:      eventName,
		ClientIP:       clientIP,
		Event:          ev,
	})
	if err != nil {
		log.Errorf("[Webhook] Failed to enqueue %s: %v", eventName, err)
		wc.audit(rawBody, eventName, clientIP, models.WebhookStatusError, fmt.Sprintf("enqueue failed: %s", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Processing failed"})
	}

	wc.audit(rawBody, eventName, clientIP, models.WebhookStatusQueued, fmt.Sprintf("job %s", job.ID))
	return c.JSON(fiber.Map{"status": "success"})
}

func (wc *WebhookController) applyInline(c *fiber.Ctx, installation *models.Installation, eventName, clientIP string, rawBody []byte, ev *webhook.CanonicalEvent) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 30*time.Second)
	defer cancel()

	outcome, err := wc.engine.Apply(ctx, installation, ev)
	if err != nil {
		log.Errorf("[Webhook] Processing %s failed: %v", eventName, err)
		wc.audit(rawBody, eventName, clientIP, models.WebhookStatusError, err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Processing failed"})
	}

	status := models.WebhookStatusProcessed
	if outcome.Skipped {
		status = models.WebhookStatusIgnored
	}
	wc.audit(rawBody, eventName, clientIP, status, outcome.Message)
	return c.JSON(fiber.Map{"status": "success"})
}

// audit appends one log row. Audit failures are logged, never surfaced; the
// webhook outcome must not depend on the audit trail being writable.
func (wc *WebhookController) audit(rawBody []byte, eventType, clientIP, status, message string) {
	entry := &models.WebhookLog{
		EventType: eventType,
		Status:    status,
		Payload:   string(rawBody),
		Message:   message,
		IPAddress: clientIP,
	}
	if err := wc.repos.WebhookLog.Insert(entry); err != nil {
		log.Errorf("[Webhook] Failed to write audit entry: %v", err)
	}
}
