// Package distribute orchestrates distribution runs: it computes the
// candidate set, caps it to the daily quota, randomizes the order and routes
// every recipient through sender rotation, the throttle gate and the transfer
// executor, recording each outcome durably.
package distribute

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/lucknot3/transfer-tea-multi-address/account"
	"github.com/lucknot3/transfer-tea-multi-address/config"
	"github.com/lucknot3/transfer-tea-multi-address/fetch"
	"github.com/lucknot3/transfer-tea-multi-address/notify"
	"github.com/lucknot3/transfer-tea-multi-address/store"
	"github.com/lucknot3/transfer-tea-multi-address/throttle"
	"github.com/lucknot3/transfer-tea-multi-address/util"
)

// Executor performs one transfer attempt. Satisfied by chain.Executor.
type Executor interface {
	Execute(ctx context.Context, sender account.Sender, recipient common.Address, amount *big.Int) (common.Hash, error)
}

// Summary is the outcome of one run.
type Summary struct {
	Succeeded int
	Failed    int
}

func (s Summary) String() string {
	return fmt.Sprintf("succeeded %v, failed %v", s.Succeeded, s.Failed)
}

// Engine runs one distribution pass at a time. Recipients are processed
// strictly sequentially as pacing against external rate limits.
type Engine struct {
	cfg      *config.Config
	store    *store.Store
	source   fetch.Source
	sampler  throttle.Sampler
	pool     *account.Pool
	exec     Executor
	notifier notify.Notifier

	rng      *rand.Rand
	log      *logrus.Entry
	attempts int // global round-robin counter over the sender pool
}

func NewEngine(cfg *config.Config, st *store.Store, source fetch.Source, sampler throttle.Sampler,
	pool *account.Pool, exec Executor, notifier notify.Notifier) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    st,
		source:   source,
		sampler:  sampler,
		pool:     pool,
		exec:     exec,
		notifier: notifier,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      logrus.WithField("module", "distribute"),
	}
}

// Run executes one full distribution pass. A candidate fetch failure aborts
// the run before any state mutation. Store failures are returned as-is and
// terminate the process: proceeding with a partial view of the sent set
// risks double payments.
func (g *Engine) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	fetched, err := g.source.Fetch(ctx)
	if err != nil {
		return sum, err
	}

	sent, err := g.store.Load(store.KindSent)
	if err != nil {
		return sum, err
	}
	pending, err := g.store.Load(store.KindPending)
	if err != nil {
		return sum, err
	}

	candidates := store.Candidates(fetched, sent, pending)
	if len(candidates) == 0 {
		g.log.Info("every fetched address has already been paid")
		g.notifier.Notify(ctx, "All recipients already paid, nothing to send today.")
		return sum, nil
	}

	quota := g.quota(len(candidates))
	g.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	g.log.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"quota":      quota,
	}).Info("run started")
	g.notifier.Notify(ctx, fmt.Sprintf("Run started: %v candidates, sending to %v today.", len(candidates), quota))

	var failed []string
	runErr := g.iterate(ctx, candidates[:quota], sent, &sum, &failed)

	// The pending record is replaced wholesale with exactly this run's
	// failures and deferrals, even when the run was cut short, so no retry
	// information is lost across restarts.
	if err := g.store.Save(store.KindPending, failed); err != nil {
		g.log.Errorf("persist pending list: %v", err)
		if runErr == nil {
			runErr = err
		}
	}

	g.log.WithFields(logrus.Fields{
		"succeeded": sum.Succeeded,
		"failed":    sum.Failed,
	}).Info("run finished")
	g.notifier.Notify(ctx, fmt.Sprintf("Distribution finished: %v.", sum))
	return sum, runErr
}

func (g *Engine) iterate(ctx context.Context, recipients, sent []string, sum *Summary, failed *[]string) error {
	for _, recipient := range recipients {
		if err := util.Sleep(ctx, g.randDelay(g.cfg.Delays.PreMin, g.cfg.Delays.PreMax)); err != nil {
			return err
		}

		reading, err := g.sampler.Sample(ctx)
		if err != nil {
			g.deferRecipient(ctx, recipient, sum, failed, fmt.Sprintf("throttle reading unavailable: %v", err))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		if !g.cfg.Gas.Band.Admit(reading) {
			g.deferRecipient(ctx, recipient, sum, failed,
				fmt.Sprintf("gas price %v gwei outside band %v", reading, g.cfg.Gas.Band))
			continue
		}

		sender := g.pool.At(g.attempts)
		g.attempts++

		amount := g.randAmount()
		hash, err := g.exec.Execute(ctx, sender, common.HexToAddress(recipient), util.ToBaseUnits(amount, g.cfg.Amount.Decimals))
		if err != nil {
			// containment: one recipient's failure never aborts the run
			*failed = append(*failed, recipient)
			sum.Failed++
			g.log.WithFields(logrus.Fields{
				"recipient": recipient,
				"from":      sender.Address.Hex(),
			}).Errorf("transfer failed: %v", err)
			g.notifier.Notify(ctx, fmt.Sprintf("Transfer to %v FAILED: %v", recipient, err))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		sent = append(sent, recipient)
		if err := g.store.Save(store.KindSent, sent); err != nil {
			return err
		}
		sum.Succeeded++
		g.log.WithFields(logrus.Fields{
			"recipient": recipient,
			"from":      sender.Address.Hex(),
			"amount":    amount.String(),
			"hash":      hash.Hex(),
		}).Info("transfer confirmed")
		g.notifier.Notify(ctx, fmt.Sprintf("Sent %v to %v from %v\nhash: %v",
			amount, recipient, sender.Address.Hex(), hash.Hex()))

		if err := util.Sleep(ctx, g.randDelay(g.cfg.Delays.PostMin, g.cfg.Delays.PostMax)); err != nil {
			return err
		}
	}
	return nil
}

func (g *Engine) deferRecipient(ctx context.Context, recipient string, sum *Summary, failed *[]string, reason string) {
	*failed = append(*failed, recipient)
	sum.Failed++
	g.log.WithField("recipient", recipient).Warn(reason)
	g.notifier.Notify(ctx, fmt.Sprintf("Deferred %v: %v", recipient, reason))
}

// quota draws the run cap uniformly from the configured range, never above
// the candidate count.
func (g *Engine) quota(candidates int) int {
	span := g.cfg.Quota.Max - g.cfg.Quota.Min
	q := g.cfg.Quota.Min + g.rng.Intn(span+1)
	if q > candidates {
		q = candidates
	}
	return q
}

// randAmount samples the attempt amount uniformly from the configured closed
// range in token units.
func (g *Engine) randAmount() decimal.Decimal {
	a := g.cfg.Amount
	if a.Max.Equal(a.Min) {
		return a.Min
	}
	span := a.Max.Sub(a.Min)
	v := a.Min.Add(span.Mul(decimal.NewFromFloat(g.rng.Float64()))).Truncate(6)
	if v.LessThan(a.Min) {
		return a.Min
	}
	return v
}

func (g *Engine) randDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(g.rng.Int63n(int64(max-min)+1))
}
