package program

import "crypto/sha256"

// Discriminator is the 8-byte Anchor type tag.
type Discriminator [8]byte

// AccountDiscriminator is sha256("account:<name>")[:8].
func AccountDiscriminator(name string) Discriminator {
	return hashDiscriminator("account:" + name)
}

// InstructionDiscriminator is sha256("global:<name>")[:8].
func InstructionDiscriminator(name string) Discriminator {
	return hashDiscriminator("global:" + name)
}

// EventDiscriminator is sha256("event:<name>")[:8].
func EventDiscriminator(name string) Discriminator {
	return hashDiscriminator("event:" + name)
}

func hashDiscriminator(preimage string) Discriminator {
	sum := sha256.Sum256([]byte(preimage))
	var d Discriminator
	copy(d[:], sum[:8])
	return d
}
