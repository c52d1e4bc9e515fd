// Package events decodes the Anchor events the exchange program emits
// through "Program data:" log lines.
package events

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"

	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/idhash"
	"carbon-credit-exchange/internal/program"
)

// LogPrefix marks a log line carrying a base64 encoded event.
const LogPrefix = "Program data: "

// Event is one decoded exchange event.
type Event interface {
	// EventName is the Anchor struct name, e.g. "SaleCompletedEvent".
	EventName() string
	// Activity converts the event to a marketplace activity record.
	Activity(signature string, index int, slot int64) domain.ActivityEvent
}

// ListingCreated is emitted by list_for_sale.
type ListingCreated struct {
	Mint      solanago.PublicKey
	Owner     solanago.PublicKey
	Price     uint64
	Timestamp int64
}

// SaleCompleted is emitted by buy_carbon_credit.
type SaleCompleted struct {
	Mint          solanago.PublicKey
	Seller        solanago.PublicKey
	Buyer         solanago.PublicKey
	Price         uint64
	Timestamp     int64
	ListingClosed bool
}

// CreditRetired is emitted by retire_carbon_credit.
type CreditRetired struct {
	Mint           solanago.PublicKey
	Owner          solanago.PublicKey
	Beneficiary    solanago.PublicKey
	RetirementDate int64
}

// CreditMinted is emitted by the program-side mint.
type CreditMinted struct {
	Mint        solanago.PublicKey
	Owner       solanago.PublicKey
	ProjectName string
	ProjectID   string
	VintageYear uint16
	MetricTons  uint64
}

func (ListingCreated) EventName() string { return "ListingCreatedEvent" }
func (SaleCompleted) EventName() string  { return "SaleCompletedEvent" }
func (CreditRetired) EventName() string  { return "CreditRetiredEvent" }
func (CreditMinted) EventName() string   { return "CarbonCreditMintedEvent" }

func (e ListingCreated) Activity(sig string, index int, slot int64) domain.ActivityEvent {
	return activity(sig, index, slot, domain.ActivityList, e.Mint, e.Owner, solanago.PublicKey{}, e.Price, e.Timestamp)
}

func (e SaleCompleted) Activity(sig string, index int, slot int64) domain.ActivityEvent {
	return activity(sig, index, slot, domain.ActivitySale, e.Mint, e.Seller, e.Buyer, e.Price, e.Timestamp)
}

func (e CreditRetired) Activity(sig string, index int, slot int64) domain.ActivityEvent {
	return activity(sig, index, slot, domain.ActivityRetire, e.Mint, e.Owner, e.Beneficiary, 0, e.RetirementDate)
}

// Activity of a mint has no timestamp in the event; the caller fills it
// from the block time when known.
func (e CreditMinted) Activity(sig string, index int, slot int64) domain.ActivityEvent {
	return activity(sig, index, slot, domain.ActivityMint, e.Mint, e.Owner, solanago.PublicKey{}, 0, 0)
}

func activity(sig string, index int, slot int64, kind domain.ActivityKind, mint, actor, counterparty solanago.PublicKey, price uint64, unixSec int64) domain.ActivityEvent {
	ev := domain.ActivityEvent{
		EventID:   idhash.ComputeActivityID(sig, index, kind, mint.String()),
		Kind:      kind,
		Mint:      mint.String(),
		Actor:     actor.String(),
		Price:     price,
		Signature: sig,
		Slot:      slot,
		Timestamp: unixSec * 1000,
	}
	if !counterparty.IsZero() {
		ev.Counterparty = counterparty.String()
	}
	return ev
}

var registry = map[program.Discriminator]func() Event{
	program.EventDiscriminator("ListingCreatedEvent"):     func() Event { return &ListingCreated{} },
	program.EventDiscriminator("SaleCompletedEvent"):      func() Event { return &SaleCompleted{} },
	program.EventDiscriminator("CreditRetiredEvent"):      func() Event { return &CreditRetired{} },
	program.EventDiscriminator("CarbonCreditMintedEvent"): func() Event { return &CreditMinted{} },
}

// Decode decodes one event payload (discriminator followed by the borsh
// body). Unknown discriminators return (nil, nil).
func Decode(data []byte) (Event, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("decode event: %d bytes", len(data))
	}
	var disc program.Discriminator
	copy(disc[:], data[:8])

	mk, ok := registry[disc]
	if !ok {
		return nil, nil
	}
	ev := mk()
	if err := bin.UnmarshalBorsh(ev, data[8:]); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ev.EventName(), err)
	}
	return deref(ev), nil
}

func deref(ev Event) Event {
	switch e := ev.(type) {
	case *ListingCreated:
		return *e
	case *SaleCompleted:
		return *e
	case *CreditRetired:
		return *e
	case *CreditMinted:
		return *e
	}
	return ev
}

// Parse extracts every known event from a transaction's logs, in order.
// Lines that are not event data, carry foreign events, or fail to decode
// are skipped; the count of undecodable lines is returned.
func Parse(logs []string) ([]Event, int) {
	var out []Event
	var bad int
	for _, line := range logs {
		payload, ok := strings.CutPrefix(line, LogPrefix)
		if !ok {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			bad++
			continue
		}
		ev, err := Decode(data)
		if err != nil {
			bad++
			continue
		}
		if ev != nil {
			out = append(out, ev)
		}
	}
	return out, bad
}

// Encode renders ev as the log line the program would print.
func Encode(ev Event) (string, error) {
	body, err := bin.MarshalBorsh(ev)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	disc := program.EventDiscriminator(ev.EventName())

	var buf bytes.Buffer
	buf.Write(disc[:])
	buf.Write(body)
	return LogPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
