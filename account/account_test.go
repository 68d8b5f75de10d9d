package account

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// well-known test vector
const (
	testKey  = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddr = "0x96216849c49358B10257cb55b28eA603c874b05E"
)

func TestNewPoolDerivesAddress(t *testing.T) {
	pool, err := NewPool([]Spec{{PrivateKey: testKey}})
	require.NoError(t, err)
	require.Equal(t, 1, pool.Size())

	s := pool.At(0)
	assert.Equal(t, common.HexToAddress(testAddr), s.Address)
	assert.Nil(t, s.Token)
	assert.NotNil(t, s.Key())
}

func TestNewPoolAccepts0xPrefix(t *testing.T) {
	pool, err := NewPool([]Spec{{PrivateKey: "0x" + testKey}})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddr), pool.At(0).Address)
}

func TestNewPoolTokenSender(t *testing.T) {
	token := "0x2ECF31eCe36ccaC2d3222A303b1409233ECBB225"
	pool, err := NewPool([]Spec{{PrivateKey: testKey, Token: token}})
	require.NoError(t, err)
	require.NotNil(t, pool.At(0).Token)
	assert.Equal(t, common.HexToAddress(token), *pool.At(0).Token)
}

func TestNewPoolRejectsBadInput(t *testing.T) {
	_, err := NewPool(nil)
	assert.Error(t, err)

	_, err = NewPool([]Spec{{}})
	assert.Error(t, err)

	_, err = NewPool([]Spec{{PrivateKey: "zz"}})
	assert.Error(t, err)

	_, err = NewPool([]Spec{{PrivateKey: testKey, Token: "not-an-address"}})
	assert.Error(t, err)
}

func TestRotationWrapsRoundRobin(t *testing.T) {
	// three distinct keys
	keys := []string{
		"4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
		"8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f",
		"df57089febbacf7ba0bc227dafbffa9fc08a93fdc68e1e42411a14efcf23656e",
	}
	specs := make([]Spec, len(keys))
	for i, k := range keys {
		specs[i] = Spec{PrivateKey: k}
	}

	pool, err := NewPool(specs)
	require.NoError(t, err)
	require.Equal(t, 3, pool.Size())

	for i := 0; i < 9; i++ {
		assert.Equal(t, pool.At(i%3).Address, pool.At(i).Address, "attempt %d", i)
	}
	assert.NotEqual(t, pool.At(0).Address, pool.At(1).Address)
	assert.NotEqual(t, pool.At(1).Address, pool.At(2).Address)
}
