package jobs

import (
	"context"
	"fmt"
	"time"

	"creditline-backend/internal/logger"
	"creditline-backend/internal/utils"
)

const jobTimeout = 5 * time.Minute

// FailStalePayments fails pending purchases nobody finished paying for.
// Transactions whose payment attempt still holds a lease are left alone.
func (jr *JobRunner) FailStalePayments() {
	jr.runWithRecovery("FailStalePayments", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		age := jr.config.Scheduler.StalePendingAge()
		n, err := jr.services.Transactions.FailStalePending(ctx, age)
		if err != nil {
			return fmt.Errorf("fail stale pending transactions: %w", err)
		}
		logger.Info("Stale pending transactions failed", "count", n, "older_than", age.String())
		return nil
	})
}

// SendDailyDigest mails yesterday's ledger summary to the admin address
func (jr *JobRunner) SendDailyDigest() {
	jr.runWithRecovery("SendDailyDigest", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		r := utils.DateRangePreset(utils.PresetYesterday, jr.now())
		digest, err := jr.services.Reports.GetDailyDigest(ctx, r)
		if err != nil {
			return fmt.Errorf("build daily digest: %w", err)
		}
		if err := jr.services.Notifier.SendDailyDigest(ctx, digest); err != nil {
			return fmt.Errorf("send daily digest: %w", err)
		}
		logger.Info("Daily digest sent",
			"day", r.Start.Format("2006-01-02"),
			"open_chargebacks", digest.OpenChargebacks)
		return nil
	})
}
