package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/spf13/cobra"

	"github.com/ManuelReschke/PropFox/internal/pkg/billing"
	"github.com/ManuelReschke/PropFox/internal/pkg/cache"
	"github.com/ManuelReschke/PropFox/internal/pkg/database"
	"github.com/ManuelReschke/PropFox/internal/pkg/env"
	"github.com/ManuelReschke/PropFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PropFox/internal/pkg/timewindow"
)

const sweepLockTTL = 48 * time.Hour

// dayLock marks a day as swept across every instance
type dayLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type redisDayLock struct{}

func (redisDayLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return cache.Acquire(ctx, key, ttl)
}

func (redisDayLock) Release(ctx context.Context, key string) error {
	return cache.Release(ctx, key)
}

type sweepFunc func(ctx context.Context, day time.Time) (billing.SweepResult, error)

func billingSweepCmd() *cobra.Command {
	var (
		date  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "billing-sweep",
		Short: "Generate the invoices of every contract due on the given day",
		Long: "Runs the daily billing sweep once. Meant for an external cron; a day that " +
			"was already swept by any instance is skipped unless --force is given. " +
			"A sweep with failed contracts releases the day so the cron can retry it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			day := timewindow.DateOf(time.Now().UTC())
			if date != "" {
				parsed, err := timewindow.ParseDate(date)
				if err != nil {
					return err
				}
				day = parsed
			}

			env.SetupEnvFile()
			database.SetupDatabase()
			cache.SetupCache()

			// the queue is only used as a producer here; nothing is consumed
			svc, err := billing.NewServiceFromDB(database.GetDB(), jobqueue.NewQueue(1))
			if err != nil {
				return err
			}
			return sweepDay(cmd.Context(), cmd.OutOrStdout(), redisDayLock{}, day, force, svc.RunDueSweep)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "day to sweep as YYYY-MM-DD (default: today, UTC)")
	cmd.Flags().BoolVar(&force, "force", false, "run even if the day was already swept")
	return cmd
}

// sweepDay runs the sweep under the day lock. The lock is kept only when
// every due contract was invoiced.
func sweepDay(ctx context.Context, out io.Writer, lock dayLock, day time.Time, force bool, sweep sweepFunc) error {
	lockKey := jobqueue.SweepLockPrefix + day.Format(time.DateOnly)
	locked := false
	if !force {
		won, err := lock.Acquire(ctx, lockKey, sweepLockTTL)
		switch {
		case err != nil:
			log.Warnf("[Billing] Sweep lock unavailable, continuing without it: %v", err)
		case !won:
			fmt.Fprintf(out, "billing sweep for %s already ran\n", day.Format(time.DateOnly))
			return nil
		default:
			locked = true
		}
	}

	res, err := sweep(ctx, day)
	if err == nil {
		fmt.Fprintf(out, "billing sweep %s: due=%d generated=%d existing=%d skipped=%d failed=%d\n",
			day.Format(time.DateOnly), res.Due, res.Generated, res.Existing, res.Skipped, res.Failed)
		if res.Failed == 0 {
			return nil
		}
		err = fmt.Errorf("%d contracts failed to invoice", res.Failed)
	}

	if locked {
		if rerr := lock.Release(ctx, lockKey); rerr != nil {
			log.Errorf("[Billing] Failed to release sweep lock %s: %v", lockKey, rerr)
		}
	}
	return err
}
