package model

import "fmt"

// FormatBPS renders a bit rate with a scaled unit.
func FormatBPS(bps uint64) string {
	switch {
	case bps >= 1_000_000_000:
		return fmt.Sprintf("%.2f Gbps", float64(bps)/1_000_000_000)
	case bps >= 1_000_000:
		return fmt.Sprintf("%.2f Mbps", float64(bps)/1_000_000)
	case bps >= 1_000:
		return fmt.Sprintf("%.2f Kbps", float64(bps)/1_000)
	default:
		return fmt.Sprintf("%d bps", bps)
	}
}

// FormatRate renders a rate either as bits per second or, when the
// use_bits display setting is off, as bytes per second.
func FormatRate(bps uint64, useBits bool) string {
	if useBits {
		return FormatBPS(bps)
	}
	bytes := bps / 8
	switch {
	case bytes >= 1_000_000_000:
		return fmt.Sprintf("%.2f GB/s", float64(bytes)/1_000_000_000)
	case bytes >= 1_000_000:
		return fmt.Sprintf("%.2f MB/s", float64(bytes)/1_000_000)
	case bytes >= 1_000:
		return fmt.Sprintf("%.2f KB/s", float64(bytes)/1_000)
	default:
		return fmt.Sprintf("%d B/s", bytes)
	}
}
