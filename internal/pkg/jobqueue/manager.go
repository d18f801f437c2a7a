package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Manager owns the job queue lifecycle and the background stats reporter.
type Manager struct {
	queue       *Queue
	statsTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
}

func NewManager(queue *Queue) *Manager {
	return &Manager{
		queue:  queue,
		stopCh: make(chan struct{}),
	}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	m.statsTicker = time.NewTicker(time.Minute)
	m.wg.Add(1)
	go m.statsWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.statsTicker != nil {
		m.statsTicker.Stop()
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// statsWorker periodically logs queue depth so a stalled queue shows up in
// the logs before consumers notice stale entitlements.
func (m *Manager) statsWorker() {
	defer m.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Stats worker stopping")
			return
		case <-m.statsTicker.C:
			pending, err := m.queue.GetQueueSize(ctx)
			if err != nil {
				log.Errorf("[JobQueue Manager] Failed to read queue size: %v", err)
				continue
			}
			processing, _ := m.queue.GetProcessingSize(ctx)
			failed, _ := m.queue.GetFailedSize(ctx)
			if pending > 0 || processing > 0 || failed > 0 {
				log.Infof("[JobQueue Manager] Queue depth: pending=%d processing=%d failed=%d", pending, processing, failed)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
