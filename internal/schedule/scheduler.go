package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// SpecDisabled turns a job off in config.
const SpecDisabled = "off"

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job     Job
	spec    string
	id      cron.EntryID
	running atomic.Bool
}

// CronScheduler runs maintenance jobs on five-field cron specs. A job never
// overlaps with itself; a tick that finds it still running is dropped.
type CronScheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]*entry
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		ctx:     context.Background(),
		entries: make(map[string]*entry),
	}
}

// AddJob registers job under spec. Blank or "off" specs are skipped and a
// second job with the same name is rejected.
func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	spec = strings.TrimSpace(spec)
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	if spec == "" || strings.EqualFold(spec, SpecDisabled) {
		logger.Info("job disabled")
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}
	e := &entry{job: job, spec: spec}
	id, err := c.cron.AddFunc(spec, func() { c.execute(e) })
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	e.id = id
	c.entries[name] = e
	logger.Info("job scheduled")
	return nil
}

// Scheduled lists registered job names in sorted order.
func (c *CronScheduler) Scheduled() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for name := range c.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RunNow executes a registered job synchronously, outside its cron cadence.
func (c *CronScheduler) RunNow(name string) error {
	c.mu.Lock()
	e, ok := c.entries[name]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not scheduled", name)
	}
	c.execute(e)
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx != nil {
		c.mu.Lock()
		c.ctx = ctx
		c.mu.Unlock()
	}
	c.cron.Start()
}

// Stop waits for running jobs to return.
func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

func (c *CronScheduler) execute(e *entry) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	logger := logutil.GetLogger(ctx).With(zap.String("job", e.job.Name()), zap.String("spec", e.spec))
	if !e.running.CompareAndSwap(false, true) {
		logger.Info("job skipped: still running")
		return
	}
	defer e.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", zap.Any("panic", r))
		}
	}()
	start := time.Now()
	if err := e.job.Run(ctx); err != nil {
		logger.Error("job failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	logger.Debug("job finished", zap.Duration("duration", time.Since(start)))
}
