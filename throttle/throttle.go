// Package throttle gates transfer attempts on the current network gas price.
// The reading is sampled fresh immediately before each send so the engine
// never commits to stale pricing.
package throttle

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Sampler reads the current congestion measure in gwei.
type Sampler interface {
	Sample(ctx context.Context) (decimal.Decimal, error)
}

// GasPricer is the chain call the sampler relies on, satisfied by ethclient.
type GasPricer interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// GasPriceSampler converts the node's suggested gas price from wei to gwei.
type GasPriceSampler struct {
	backend GasPricer
}

func NewGasPriceSampler(backend GasPricer) *GasPriceSampler {
	return &GasPriceSampler{backend: backend}
}

func (s *GasPriceSampler) Sample(ctx context.Context) (decimal.Decimal, error) {
	wei, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "sample gas price")
	}
	return decimal.NewFromBigInt(wei, -9), nil
}

// Band is the closed interval of acceptable gwei readings.
type Band struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Admit reports whether the reading falls inside the band, bounds included.
func (b Band) Admit(reading decimal.Decimal) bool {
	return reading.GreaterThanOrEqual(b.Min) && reading.LessThanOrEqual(b.Max)
}

func (b Band) String() string {
	return b.Min.String() + "-" + b.Max.String() + " gwei"
}
