package solana

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

const publicKeyLength = ed25519.PublicKeySize

// ErrInvalidAddress indicates that an account address is not a base58 encoded 32-byte key.
var ErrInvalidAddress = errors.New("solana: invalid address")

// ValidateAddress checks that the value decodes to a 32-byte public key.
func ValidateAddress(address string) error {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	decoded, err := base58.Decode(trimmed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(decoded) != publicKeyLength {
		return fmt.Errorf("%w: decoded to %d bytes", ErrInvalidAddress, len(decoded))
	}
	return nil
}

// Keypair is an ed25519 keypair addressed by its base58 public key.
type Keypair struct {
	PublicKey  string
	PrivateKey ed25519.PrivateKey
}

// SecretKeyBase58 encodes the 64-byte secret key the way wallets import it.
func (k Keypair) SecretKeyBase58() string {
	return base58.Encode(k.PrivateKey)
}

// NewKeypair generates a fresh keypair, used as the address of a new token mint.
func NewKeypair() (Keypair, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("solana: generate keypair: %w", err)
	}
	return Keypair{
		PublicKey:  base58.Encode(publicKey),
		PrivateKey: privateKey,
	}, nil
}

// LamportsToSOL scales a lamport amount to SOL without float rounding.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9)
}
