package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultAutoRefresh is the schedule used when auto-refresh is enabled
// without an explicit spec.
const DefaultAutoRefresh = "@every 30s"

// Poller runs fn on a cron schedule.
type Poller struct {
	spec  string
	sched cron.Schedule
	cron  *cron.Cron
}

// NewPoller parses spec (standard 5-field cron or a descriptor such as
// "@every 30s") and schedules fn.
func NewPoller(spec string, fn func(ctx context.Context)) (*Poller, error) {
	if spec == "" {
		spec = DefaultAutoRefresh
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("refresh: poller: parse %q: %w", spec, err)
	}
	c := cron.New()
	p := &Poller{spec: spec, sched: sched, cron: c}
	c.Schedule(sched, cron.FuncJob(func() { fn(context.Background()) }))
	return p, nil
}

// Next returns the first fire time after t.
func (p *Poller) Next(t time.Time) time.Time {
	return p.sched.Next(t)
}

// Spec returns the schedule expression.
func (p *Poller) Spec() string {
	return p.spec
}

// Start runs the schedule until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	p.cron.Start()
	go func() {
		<-ctx.Done()
		<-p.cron.Stop().Done()
	}()
}
