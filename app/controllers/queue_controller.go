package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/greatplr/membersync/internal/pkg/jobqueue"
)

// QueueController exposes queue health to operators.
type QueueController struct {
	queue *jobqueue.Queue
}

func NewQueueController(queue *jobqueue.Queue) *QueueController {
	return &QueueController{queue: queue}
}

// HandleQueueStats returns counters plus current list depths.
// GET /api/v1/queue/stats
func (qc *QueueController) HandleQueueStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	stats, err := qc.queue.GetJobStats(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats unavailable"})
	}

	pending, _ := qc.queue.GetQueueSize(ctx)
	processing, _ := qc.queue.GetProcessingSize(ctx)
	retrying, _ := qc.queue.GetRetrySize(ctx)
	failed, _ := qc.queue.GetFailedSize(ctx)

	return c.JSON(fiber.Map{
		"counters":   stats,
		"pending":    pending,
		"processing": processing,
		"retrying":   retrying,
		"failed":     failed,
	})
}

// HandleFailedJobs lists permanently failed jobs for inspection.
// GET /api/v1/queue/failed
func (qc *QueueController) HandleFailedJobs(c *fiber.Ctx) error {
	jobs, err := qc.queue.GetFailedJobs(c.UserContext(), int64(c.QueryInt("limit", 50)))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed jobs unavailable"})
	}
	return c.JSON(fiber.Map{"jobs": jobs})
}
