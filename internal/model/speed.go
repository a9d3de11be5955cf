package model

// Speed is a USB link speed class.
type Speed int

const (
	SpeedUnknown Speed = iota
	// SpeedLow is USB 1.0 low speed (1.5 Mbps).
	SpeedLow
	// SpeedFull is USB 1.1 full speed (12 Mbps).
	SpeedFull
	// SpeedHigh is USB 2.0 high speed (480 Mbps).
	SpeedHigh
	// SpeedSuper is USB 3.x Gen 1 SuperSpeed (5 Gbps).
	SpeedSuper
	// SpeedSuperPlus is USB 3.1 Gen 2 SuperSpeed+ (10 Gbps).
	SpeedSuperPlus
	// SpeedSuperPlus2 is USB 3.2 Gen 2x2 SuperSpeed+ (20 Gbps).
	SpeedSuperPlus2
)

// SpeedFromMbps maps the sysfs "speed" attribute (Mbps) to a Speed.
// The kernel reports low speed as 1.5 truncated to "1.5"; both "1"
// and "2" roundings are accepted.
func SpeedFromMbps(mbps int) (Speed, bool) {
	switch mbps {
	case 1, 2:
		return SpeedLow, true
	case 12:
		return SpeedFull, true
	case 480:
		return SpeedHigh, true
	case 5000:
		return SpeedSuper, true
	case 10000:
		return SpeedSuperPlus, true
	case 20000:
		return SpeedSuperPlus2, true
	default:
		return SpeedUnknown, false
	}
}

// RawBPS returns the nominal link rate in bits per second.
func (s Speed) RawBPS() uint64 {
	switch s {
	case SpeedLow:
		return 1_500_000
	case SpeedFull:
		return 12_000_000
	case SpeedHigh:
		return 480_000_000
	case SpeedSuper:
		return 5_000_000_000
	case SpeedSuperPlus:
		return 10_000_000_000
	case SpeedSuperPlus2:
		return 20_000_000_000
	default:
		return 0
	}
}

// IsSuperSpeed reports whether this is a USB 3.x speed class.
func (s Speed) IsSuperSpeed() bool {
	return s >= SpeedSuper
}

// FramePeriodUS returns the frame (Low/Full) or microframe period in
// microseconds for this speed class.
func (s Speed) FramePeriodUS() int {
	if s == SpeedLow || s == SpeedFull {
		return 1000
	}
	return 125
}

// ShortName returns a compact rate label for tables and tree views.
func (s Speed) ShortName() string {
	switch s {
	case SpeedLow:
		return "1.5M"
	case SpeedFull:
		return "12M"
	case SpeedHigh:
		return "480M"
	case SpeedSuper:
		return "5G"
	case SpeedSuperPlus:
		return "10G"
	case SpeedSuperPlus2:
		return "20G"
	default:
		return "?"
	}
}

func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "Low Speed (1.5 Mbps)"
	case SpeedFull:
		return "Full Speed (12 Mbps)"
	case SpeedHigh:
		return "High Speed (480 Mbps)"
	case SpeedSuper:
		return "SuperSpeed (5 Gbps)"
	case SpeedSuperPlus:
		return "SuperSpeed+ (10 Gbps)"
	case SpeedSuperPlus2:
		return "SuperSpeed+ 2x2 (20 Gbps)"
	default:
		return "Unknown Speed"
	}
}
