package orchestrator

import (
	"time"

	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/models"
)

// retentionWindow returns how long a terminal job stays visible to
// job_status after completion, per spec.md §4.1/§8: the base window is
// 3600s, shortened to 600s if the run took longer than 300s, and extended
// to 7200s if any retry occurred. The longer window wins when both apply,
// since a slow-but-retried job is the case operators most want to inspect.
func retentionWindow(job *models.Job) time.Duration {
	window := 3600 * time.Second
	if job.CompletedAt != nil && job.CompletedAt.Sub(job.StartedAt) > 300*time.Second {
		window = 600 * time.Second
	}
	if job.RetryCount > 0 {
		window = 7200 * time.Second
	}
	return window
}

func (o *Orchestrator) runJanitor() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.sweep()
		case <-o.stopChan:
			return
		}
	}
}

// sweep copies candidate job ids under a read lock, decides which have
// exceeded their retention window without holding the lock, then removes
// them under a second, short write-lock acquisition — avoiding a long lock
// hold across the whole map during the scan.
func (o *Orchestrator) sweep() {
	now := time.Now()

	o.mu.RLock()
	type candidate struct {
		id   string
		job  models.Job
	}
	candidates := make([]candidate, 0, len(o.jobs))
	for id, j := range o.jobs {
		if j.IsTerminal() {
			candidates = append(candidates, candidate{id: id, job: *j})
		}
	}
	o.mu.RUnlock()

	var expired []string
	for _, c := range candidates {
		completedAt := c.job.StartedAt
		if c.job.CompletedAt != nil {
			completedAt = *c.job.CompletedAt
		}
		if now.Sub(completedAt) >= retentionWindow(&c.job) {
			expired = append(expired, c.id)
		}
	}
	if len(expired) == 0 {
		return
	}

	o.mu.Lock()
	for _, id := range expired {
		delete(o.jobs, id)
	}
	active := len(o.jobs)
	o.mu.Unlock()

	o.logger.Info("janitor reaped expired jobs",
		zap.Int("reaped", len(expired)), zap.Int("active_jobs", active))
}
