package util

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	v := decimal.RequireFromString("0.07")
	assert.Equal(t, big.NewInt(70000000000000000).String(), ToBaseUnits(v, 18).String())

	v = decimal.RequireFromString("1000")
	assert.Equal(t, "1000000000000000000000", ToBaseUnits(v, 18).String())

	// sub-unit dust truncates instead of rounding up
	v = decimal.RequireFromString("0.0000001")
	assert.Equal(t, big.NewInt(100).String(), ToBaseUnits(v, 9).String())
}

func TestFromBaseUnits(t *testing.T) {
	raw, ok := new(big.Int).SetString("120000000000000000", 10)
	require.True(t, ok)
	assert.Equal(t, "0.12", FromBaseUnits(raw, 18).String())
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleepElapsed(t *testing.T) {
	err := Sleep(context.Background(), time.Millisecond)
	assert.NoError(t, err)
}
