// Package program encodes the instructions of the programs the exchange
// talks to: the system, SPL token, associated token and Metaplex token
// metadata programs, and the carbon credit exchange program itself.
package program

import (
	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
)

// DefaultExchangeProgramID is the deployed carbon credit exchange program.
const DefaultExchangeProgramID = "G1oyFNSMSHRBPG6LWWpAMhJJNf23HWjNpq8FALJSUqs3"

func meta(key solanago.PublicKey, writable, signer bool) *solanago.AccountMeta {
	return solanago.NewAccountMeta(key, writable, signer)
}

func encode(v interface{}) []byte {
	data, err := bin.MarshalBorsh(v)
	if err != nil {
		// Fixed-shape structs only; failure is a bug in this package.
		panic(err)
	}
	return data
}

// Decode unmarshals instruction data into v.
func Decode(data []byte, v interface{}) error {
	return bin.UnmarshalBorsh(v, data)
}
