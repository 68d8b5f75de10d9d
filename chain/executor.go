package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/lucknot3/transfer-tea-multi-address/account"
	"github.com/lucknot3/transfer-tea-multi-address/util"
)

const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

// SubmitError reports that a transfer was rejected before or at submission.
// Nothing reached the network under a handle the engine could track, so the
// attempt fails fast and is never retried here.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string { return fmt.Sprintf("submit transfer: %v", e.Err) }
func (e *SubmitError) Unwrap() error { return e.Err }

// ConfirmTimeoutError reports that a submitted transaction did not reach the
// required confirmation depth within the configured window.
type ConfirmTimeoutError struct {
	Hash common.Hash
}

func (e *ConfirmTimeoutError) Error() string {
	return fmt.Sprintf("transaction %v not confirmed in time", e.Hash.Hex())
}

// RetryPolicy bounds the recovery from transient poll failures, such as
// upstream rate limiting, while waiting for confirmation.
type RetryPolicy struct {
	Max     int
	Backoff time.Duration
}

// Options tunes a single executor.
type Options struct {
	GasLimit       uint64 // native value transfer
	TokenGasLimit  uint64 // ERC-20 transfer call
	ConfirmDepth   uint64 // confirmations required on top of inclusion
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Retry          RetryPolicy
}

// Executor performs one transfer attempt for a (sender, recipient, amount)
// triple. It does not guarantee idempotency: executing twice for the same
// logical payment sends twice. Duplicate prevention belongs to the caller.
type Executor struct {
	backend Backend
	signer  types.Signer
	erc20   abi.ABI
	opts    Options
	log     *logrus.Entry
}

func NewExecutor(backend Backend, chainID *big.Int, opts Options) (*Executor, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse erc20 abi")
	}
	if opts.ConfirmDepth == 0 {
		opts.ConfirmDepth = 1
	}
	return &Executor{
		backend: backend,
		signer:  types.NewLondonSigner(chainID),
		erc20:   parsed,
		opts:    opts,
		log:     logrus.WithField("module", "executor"),
	}, nil
}

// Execute submits one transfer and waits for it to reach the configured
// confirmation depth. Amount is in base units. It returns the transaction
// hash on success, a *SubmitError when the network rejected the submission,
// and a *ConfirmTimeoutError when confirmation did not arrive in time.
func (e *Executor) Execute(ctx context.Context, sender account.Sender, recipient common.Address, amount *big.Int) (common.Hash, error) {
	signed, err := e.submit(ctx, sender, recipient, amount)
	if err != nil {
		return common.Hash{}, &SubmitError{Err: err}
	}

	e.log.WithFields(logrus.Fields{
		"from": sender.Address.Hex(),
		"to":   recipient.Hex(),
		"hash": signed.Hash().Hex(),
	}).Debug("transaction submitted")

	if err := e.confirm(ctx, signed.Hash()); err != nil {
		return signed.Hash(), err
	}
	return signed.Hash(), nil
}

func (e *Executor) submit(ctx context.Context, sender account.Sender, recipient common.Address, amount *big.Int) (*types.Transaction, error) {
	gasPrice, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "suggest gas price")
	}

	nonce, err := e.backend.PendingNonceAt(ctx, sender.Address)
	if err != nil {
		return nil, errors.Wrapf(err, "nonce of %v", sender.Address.Hex())
	}

	var tx *types.Transaction
	if sender.Token != nil {
		data, err := e.erc20.Pack("transfer", recipient, amount)
		if err != nil {
			return nil, errors.Wrap(err, "pack transfer call")
		}
		tx = types.NewTransaction(nonce, *sender.Token, big.NewInt(0), e.opts.TokenGasLimit, gasPrice, data)
	} else {
		tx = types.NewTransaction(nonce, recipient, amount, e.opts.GasLimit, gasPrice, nil)
	}

	signed, err := types.SignTx(tx, e.signer, sender.Key())
	if err != nil {
		return nil, errors.Wrap(err, "sign transaction")
	}

	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return nil, errors.Wrap(err, "send transaction")
	}
	return signed, nil
}

// pollState is the typed outcome of one confirmation check.
type pollState int

const (
	pollWaiting pollState = iota
	pollConfirmed
	pollRetryable
	pollFatal
)

type pollResult struct {
	state pollState
	err   error
}

func (e *Executor) confirm(ctx context.Context, hash common.Hash) error {
	deadline := time.Now().Add(e.opts.ConfirmTimeout)
	retriesLeft := e.opts.Retry.Max

	for {
		res := e.checkOnce(ctx, hash)
		switch res.state {
		case pollConfirmed:
			return nil

		case pollFatal:
			return res.err

		case pollRetryable:
			if retriesLeft == 0 {
				e.log.WithField("hash", hash.Hex()).Warn("poll retries exhausted")
				return &ConfirmTimeoutError{Hash: hash}
			}
			retriesLeft--
			e.log.WithFields(logrus.Fields{
				"hash": hash.Hex(),
				"left": retriesLeft,
			}).Warnf("transient poll failure, backing off: %v", res.err)
			if err := util.Sleep(ctx, e.opts.Retry.Backoff); err != nil {
				return err
			}

		case pollWaiting:
			if err := util.Sleep(ctx, e.opts.PollInterval); err != nil {
				return err
			}
		}

		if time.Now().After(deadline) {
			return &ConfirmTimeoutError{Hash: hash}
		}
	}
}

func (e *Executor) checkOnce(ctx context.Context, hash common.Hash) pollResult {
	receipt, err := e.backend.TransactionReceipt(ctx, hash)
	switch {
	case errors.Is(err, ethereum.NotFound):
		return pollResult{state: pollWaiting}
	case ctx.Err() != nil:
		return pollResult{state: pollFatal, err: ctx.Err()}
	case err != nil:
		return pollResult{state: pollRetryable, err: err}
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return pollResult{state: pollFatal, err: errors.Errorf("transaction %v reverted", hash.Hex())}
	}

	head, err := e.backend.BlockNumber(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return pollResult{state: pollFatal, err: ctx.Err()}
		}
		return pollResult{state: pollRetryable, err: err}
	}

	included := receipt.BlockNumber.Uint64()
	if head >= included && head-included+1 >= e.opts.ConfirmDepth {
		return pollResult{state: pollConfirmed}
	}
	return pollResult{state: pollWaiting}
}
