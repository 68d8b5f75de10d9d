package util

import (
	"context"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// CreateUsageCommand creates a command to display help.
func CreateUsageCommand(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
}

// ToBaseUnits converts a token amount to its integer base-unit representation,
// i.e. value * 10^decimals. Fractional dust below one base unit is truncated.
func ToBaseUnits(value decimal.Decimal, decimals int32) *big.Int {
	return value.Shift(decimals).Truncate(0).BigInt()
}

// FromBaseUnits is the inverse of ToBaseUnits, used for display.
func FromBaseUnits(raw *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -decimals)
}

// Sleep blocks for d or until ctx is cancelled, whichever comes first.
// It returns ctx.Err() when interrupted and nil when the delay elapsed.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
