package model

import "testing"

func TestSpeedFromMbps(t *testing.T) {
	tests := []struct {
		mbps int
		want Speed
		ok   bool
	}{
		{1, SpeedLow, true},
		{12, SpeedFull, true},
		{480, SpeedHigh, true},
		{5000, SpeedSuper, true},
		{10000, SpeedSuperPlus, true},
		{20000, SpeedSuperPlus2, true},
		{999, SpeedUnknown, false},
	}

	for _, tt := range tests {
		got, ok := SpeedFromMbps(tt.mbps)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SpeedFromMbps(%d) = %v, %v, want %v, %v", tt.mbps, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSpeedClasses(t *testing.T) {
	if SpeedHigh.IsSuperSpeed() {
		t.Error("high speed is not a USB 3.x class")
	}
	if !SpeedSuper.IsSuperSpeed() || !SpeedSuperPlus2.IsSuperSpeed() {
		t.Error("USB 3.x speeds not detected")
	}
	if SpeedHigh.RawBPS() != 480_000_000 {
		t.Errorf("high speed raw rate = %d", SpeedHigh.RawBPS())
	}
	if SpeedFull.FramePeriodUS() != 1000 || SpeedHigh.FramePeriodUS() != 125 {
		t.Error("frame periods wrong")
	}
}

func TestNewPoolCapacity(t *testing.T) {
	// Any USB 2.x-class root speed gets the fixed 384 Mbps periodic
	// budget; USB 3.x buses get 80% of their own link rate.
	for _, s := range []Speed{SpeedLow, SpeedFull, SpeedHigh} {
		p := NewPool(s)
		if p.Class != PoolUSB2 || p.Capacity != 384_000_000 {
			t.Errorf("NewPool(%v) = %+v, want USB 2.x / 384000000", s, p)
		}
	}

	tests := []struct {
		speed Speed
		want  uint64
	}{
		{SpeedSuper, 4_000_000_000},
		{SpeedSuperPlus, 8_000_000_000},
		{SpeedSuperPlus2, 16_000_000_000},
	}
	for _, tt := range tests {
		p := NewPool(tt.speed)
		if p.Class != PoolUSB3 || p.Capacity != tt.want {
			t.Errorf("NewPool(%v) = %+v, want USB 3.x / %d", tt.speed, p, tt.want)
		}
	}
}

func TestPoolOversubscription(t *testing.T) {
	p := NewPool(SpeedHigh)
	p.Used = 400_000_000

	if !p.Oversubscribed() {
		t.Error("pool with used > capacity should report oversubscription")
	}
	if p.Available() != 0 {
		t.Errorf("Available() = %d, want 0", p.Available())
	}
	if p.UsagePercent() <= 100 {
		t.Errorf("UsagePercent() = %f, want > 100", p.UsagePercent())
	}
	// Used keeps the true sum, never clamped.
	if p.Used != 400_000_000 {
		t.Errorf("Used = %d, want 400000000", p.Used)
	}
}

func TestFormatBPS(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{500, "500 bps"},
		{64_000, "64.00 Kbps"},
		{480_000_000, "480.00 Mbps"},
		{5_000_000_000, "5.00 Gbps"},
	}
	for _, tt := range tests {
		if got := FormatBPS(tt.in); got != tt.want {
			t.Errorf("FormatBPS(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		bps     uint64
		useBits bool
		want    string
	}{
		{480_000_000, true, "480.00 Mbps"},
		{480_000_000, false, "60.00 MB/s"},
		{5_000_000_000, false, "625.00 MB/s"},
		{64_000, false, "8.00 KB/s"},
		{500, false, "62 B/s"},
	}
	for _, tt := range tests {
		if got := FormatRate(tt.bps, tt.useBits); got != tt.want {
			t.Errorf("FormatRate(%d, %v) = %q, want %q", tt.bps, tt.useBits, got, tt.want)
		}
	}
}
