package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/samvad-hq/samvad-feed-digest/internal/logger"
)

// scheduleParser accepts six-field specs (with seconds) and descriptors such as @weekly.
var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule validates a cron spec, evaluated in UTC.
func ParseSchedule(spec string) (cron.Schedule, error) {
	sched, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return sched, nil
}

// Run executes RunOnce on the configured schedule until ctx is cancelled.
// Overlapping runs are skipped, not queued.
func (d *Digest) Run(ctx context.Context) error {
	if d == nil || d.crawl == nil {
		return fmt.Errorf("digest is not initialized")
	}
	sched, err := ParseSchedule(d.schedule)
	if err != nil {
		return err
	}

	cl := cronLogger{log: d.log}
	c := cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(sched, cron.FuncJob(func() {
		if _, err := d.RunOnce(ctx, d.clock()); err != nil {
			d.log.ErrorObj("scheduled digest run failed", "run_error", err.Error())
		}
	}))

	d.log.InfoObj("digest scheduler starting", "scheduler_state", map[string]any{
		"schedule":         d.schedule,
		"next_run":         sched.Next(d.clock().UTC()),
		"feeds_count":      len(d.sources),
		"publishers_count": d.deliver.Size(),
	})

	c.Start()
	<-ctx.Done()

	d.log.InfoObj("digest scheduler exiting", "reason", ctx.Err().Error())
	<-c.Stop().Done()
	return nil
}

// cronLogger routes cron's own logging through the structured logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.DebugObj("cron: "+msg, "cron", kvMap(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := kvMap(keysAndValues)
	fields["error"] = err.Error()
	l.log.ErrorObj("cron: "+msg, "cron", fields)
}

func kvMap(kv []interface{}) map[string]any {
	out := make(map[string]any, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
