package model

import (
	"fmt"

	"github.com/efficientgo/core/errors"
)

// TransferType is the USB transfer type of an endpoint.
type TransferType string

const (
	TransferControl     TransferType = "Control"
	TransferBulk        TransferType = "Bulk"
	TransferInterrupt   TransferType = "Interrupt"
	TransferIsochronous TransferType = "Isochronous"
)

// TransferTypeFromSysfs parses the sysfs endpoint "type" attribute.
func TransferTypeFromSysfs(s string) (TransferType, bool) {
	switch s {
	case "Control":
		return TransferControl, true
	case "Bulk":
		return TransferBulk, true
	case "Interrupt":
		return TransferInterrupt, true
	case "Isoc", "Isochronous":
		return TransferIsochronous, true
	default:
		return "", false
	}
}

// ReservesBandwidth reports whether this transfer type participates in
// periodic bandwidth reservation. Only Interrupt and Isochronous do.
func (t TransferType) ReservesBandwidth() bool {
	return t == TransferInterrupt || t == TransferIsochronous
}

// Direction is the endpoint data direction.
type Direction string

const (
	DirIn  Direction = "in"
	DirOut Direction = "out"
)

// DirectionFromSysfs parses the sysfs endpoint "direction" attribute.
func DirectionFromSysfs(s string) (Direction, bool) {
	switch s {
	case "in":
		return DirIn, true
	case "out":
		return DirOut, true
	default:
		return "", false
	}
}

// Endpoint is one endpoint of a device with its bandwidth-relevant
// attributes already decoded from the raw descriptor: MaxPacketSize is
// the base packet size in bytes, ExtraTransactions the additional
// high-bandwidth transactions per microframe (USB 2.0 high speed only,
// 0 for everything else), and IntervalUS the polling interval in
// microseconds.
type Endpoint struct {
	Address           uint8
	Type              TransferType
	Direction         Direction
	MaxPacketSize     int
	ExtraTransactions int
	IntervalUS        int
	// IntervalLabel is the human-readable interval from sysfs
	// (e.g. "4ms", "125us"), kept for display only.
	IntervalLabel string
}

// NewEndpoint validates and builds an endpoint. Periodic endpoints
// with a zero or negative interval fail with ErrInvalidEndpoint; the
// interval of Control and Bulk endpoints is not meaningful and is not
// validated.
func NewEndpoint(address uint8, typ TransferType, dir Direction, maxPacket, extraTx, intervalUS int) (Endpoint, error) {
	if typ.ReservesBandwidth() && intervalUS <= 0 {
		return Endpoint{}, errors.Wrapf(ErrInvalidEndpoint, "ep 0x%02x: interval %dus", address, intervalUS)
	}
	if maxPacket < 0 || extraTx < 0 {
		return Endpoint{}, errors.Wrapf(ErrInvalidEndpoint, "ep 0x%02x: negative descriptor field", address)
	}
	return Endpoint{
		Address:           address,
		Type:              typ,
		Direction:         dir,
		MaxPacketSize:     maxPacket,
		ExtraTransactions: extraTx,
		IntervalUS:        intervalUS,
	}, nil
}

// Bandwidth returns the periodic bandwidth this endpoint reserves, in
// bits per second. Control and Bulk endpoints reserve nothing and
// always return 0; callers must not filter by transfer type
// themselves.
func (e Endpoint) Bandwidth() uint64 {
	if !e.Type.ReservesBandwidth() {
		return 0
	}
	mult := uint64(1 + e.ExtraTransactions)
	bitsPerInterval := uint64(e.MaxPacketSize) * mult * 8
	return bitsPerInterval * 1_000_000 / uint64(e.IntervalUS)
}

// Number is the endpoint number without the direction bit.
func (e Endpoint) Number() uint8 {
	return e.Address & 0x0f
}

func (e Endpoint) String() string {
	return fmt.Sprintf("EP%02X %s %s %dB @ %dus", e.Address, e.Type, e.Direction, e.MaxPacketSize, e.IntervalUS)
}
