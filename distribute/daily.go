package distribute

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/lucknot3/transfer-tea-multi-address/config"
	"github.com/lucknot3/transfer-tea-multi-address/fetch"
	"github.com/lucknot3/transfer-tea-multi-address/notify"
	"github.com/lucknot3/transfer-tea-multi-address/util"
)

// runner is what the driver repeats, satisfied by *Engine.
type runner interface {
	Run(ctx context.Context) (Summary, error)
}

// Driver repeats distribution runs forever, sleeping from run completion
// until the next scheduled wall-clock boundary plus jitter.
type Driver struct {
	engine   runner
	schedule config.Schedule
	notifier notify.Notifier
	rng      *rand.Rand
	log      *logrus.Entry
}

func NewDriver(engine runner, schedule config.Schedule, notifier notify.Notifier) *Driver {
	return &Driver{
		engine:   engine,
		schedule: schedule,
		notifier: notifier,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      logrus.WithField("module", "daily"),
	}
}

// Start loops until ctx is cancelled or a fatal error occurs. A failed
// candidate fetch aborts only the current run; the next cadence retries.
func (d *Driver) Start(ctx context.Context) error {
	for {
		_, err := d.engine.Run(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return nil
		case isFetchError(err):
			d.log.Errorf("run aborted: %v", err)
			d.notifier.Notify(ctx, fmt.Sprintf("Run aborted: %v", err))
		default:
			return err
		}

		next := d.nextWake(time.Now().In(d.schedule.Location))
		d.log.WithField("until", next.Format(time.RFC3339)).Info("sleeping until next run")
		if err := util.Sleep(ctx, time.Until(next)); err != nil {
			return nil
		}
	}
}

func isFetchError(err error) bool {
	var fe *fetch.Error
	return errors.As(err, &fe)
}

func (d *Driver) nextWake(now time.Time) time.Time {
	return nextOccurrence(now, d.schedule.Hour, d.schedule.Minute).Add(d.jitter())
}

// nextOccurrence returns the next time the wall clock reads hour:minute in
// now's location, strictly after now.
func nextOccurrence(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (d *Driver) jitter() time.Duration {
	if d.schedule.JitterMax <= 0 {
		return 0
	}
	return time.Duration(d.rng.Int63n(int64(d.schedule.JitterMax)))
}
