package ledger

import (
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
)

// Signer signs for one account. Implementations never expose key material.
type Signer interface {
	PublicKey() solanago.PublicKey
	Sign(message []byte) (solanago.Signature, error)
}

// Keypair is an in-process ed25519 signer.
type Keypair struct {
	key solanago.PrivateKey
}

var _ Signer = (*Keypair)(nil)

// NewKeypair generates a random keypair.
func NewKeypair() (*Keypair, error) {
	key, err := solanago.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keypair{key: key}, nil
}

// KeypairFromFile loads a solana-keygen JSON keypair file.
func KeypairFromFile(path string) (*Keypair, error) {
	key, err := solanago.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return &Keypair{key: key}, nil
}

// KeypairFromBase58 decodes a base58 encoded 64-byte secret key.
func KeypairFromBase58(secret string) (*Keypair, error) {
	key, err := solanago.PrivateKeyFromBase58(secret)
	if err != nil {
		return nil, errors.New("decode keypair: malformed secret")
	}
	return &Keypair{key: key}, nil
}

// PublicKey returns the account address.
func (k *Keypair) PublicKey() solanago.PublicKey {
	return k.key.PublicKey()
}

// Sign signs message.
func (k *Keypair) Sign(message []byte) (solanago.Signature, error) {
	return k.key.Sign(message)
}

// Wipe zeroes the secret key. The keypair is unusable afterwards.
func (k *Keypair) Wipe() {
	for i := range k.key {
		k.key[i] = 0
	}
}

// String never renders the secret.
func (k *Keypair) String() string {
	return "Keypair(" + k.PublicKey().String() + ")"
}

// GoString never renders the secret.
func (k *Keypair) GoString() string {
	return k.String()
}

// SignTransaction fills the signature slot of every signer in tx. Signers
// that are not required by the message are an error; required signers not
// passed keep their existing (possibly empty) slot, so a transaction can be
// signed in several passes.
func SignTransaction(tx *solanago.Transaction, signers ...Signer) error {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Message.AccountKeys) < required {
		return fmt.Errorf("sign: message lists %d keys for %d signatures", len(tx.Message.AccountKeys), required)
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("sign: marshal message: %w", err)
	}

	if len(tx.Signatures) != required {
		sigs := make([]solanago.Signature, required)
		copy(sigs, tx.Signatures)
		tx.Signatures = sigs
	}

	for _, s := range signers {
		idx := -1
		for i, key := range tx.Message.AccountKeys[:required] {
			if key.Equals(s.PublicKey()) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("sign: %s is not a required signer", s.PublicKey())
		}

		sig, err := s.Sign(msg)
		if err != nil {
			return fmt.Errorf("sign with %s: %w", s.PublicKey(), err)
		}
		tx.Signatures[idx] = sig
	}

	return nil
}

// RequiredSigners returns the accounts whose signatures tx requires.
func RequiredSigners(tx *solanago.Transaction) []solanago.PublicKey {
	n := int(tx.Message.Header.NumRequiredSignatures)
	if n > len(tx.Message.AccountKeys) {
		n = len(tx.Message.AccountKeys)
	}
	out := make([]solanago.PublicKey, n)
	copy(out, tx.Message.AccountKeys[:n])
	return out
}
