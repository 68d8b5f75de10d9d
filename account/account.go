// Package account manages the fixed pool of sender identities used in
// rotation. Keys come from the configuration, either as raw hex or as an
// encrypted go-ethereum keystore file.
package account

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/howeyc/gopass"
	"github.com/pkg/errors"
)

// Spec describes one sender entry from the configuration.
type Spec struct {
	PrivateKey string // hex encoded key, with or without 0x prefix
	Keystore   string // path to a keystore file, alternative to PrivateKey
	Password   string // keystore password; prompted for when empty
	Token      string // optional ERC-20 contract this sender distributes
}

// Sender is one identity with the capability to sign transfers. Token is nil
// for native currency senders.
type Sender struct {
	Address common.Address
	Token   *common.Address

	key *ecdsa.PrivateKey
}

// Key returns the signing key.
func (s Sender) Key() *ecdsa.PrivateKey { return s.key }

// Pool is the fixed, ordered sender pool.
type Pool struct {
	senders []Sender
}

// NewPool loads every configured sender. The pool order is the configuration
// order and never changes afterwards.
func NewPool(specs []Spec) (*Pool, error) {
	if len(specs) == 0 {
		return nil, errors.New("sender pool is empty")
	}

	senders := make([]Sender, 0, len(specs))
	for i, spec := range specs {
		key, err := loadKey(spec)
		if err != nil {
			return nil, errors.Wrapf(err, "load sender %v", i+1)
		}

		s := Sender{
			Address: crypto.PubkeyToAddress(key.PublicKey),
			key:     key,
		}
		if spec.Token != "" {
			if !common.IsHexAddress(spec.Token) {
				return nil, errors.Errorf("sender %v: invalid token address %v", i+1, spec.Token)
			}
			token := common.HexToAddress(spec.Token)
			s.Token = &token
		}
		senders = append(senders, s)
	}
	return &Pool{senders: senders}, nil
}

// Size returns the pool cardinality N.
func (p *Pool) Size() int { return len(p.senders) }

// At returns the sender for attempt index i, deterministic round-robin over
// the pool.
func (p *Pool) At(i int) Sender {
	return p.senders[i%len(p.senders)]
}

func loadKey(spec Spec) (*ecdsa.PrivateKey, error) {
	switch {
	case spec.PrivateKey != "":
		return crypto.HexToECDSA(strings.TrimPrefix(spec.PrivateKey, "0x"))
	case spec.Keystore != "":
		return decryptKeystore(spec.Keystore, spec.Password)
	default:
		return nil, errors.New("neither private_key nor keystore is set")
	}
}

func decryptKeystore(path, password string) (*ecdsa.PrivateKey, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read keystore %v", path)
	}

	if password == "" {
		password, err = InputPassword(fmt.Sprintf("Enter password for %v: ", path))
		if err != nil {
			return nil, err
		}
	}

	key, err := keystore.DecryptKey(content, password)
	if err != nil {
		return nil, errors.Wrapf(err, "decrypt keystore %v", path)
	}
	return key.PrivateKey, nil
}

// InputPassword prompts the user to input a password.
func InputPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	passwd, err := gopass.GetPasswd()
	if err != nil {
		return "", errors.Wrap(err, "read password")
	}
	return string(passwd), nil
}
