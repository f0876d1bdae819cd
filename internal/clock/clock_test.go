package clock

import (
	"testing"
	"time"
)

func TestNow_RealTime(t *testing.T) {
	c := New()
	before := time.Now()
	got := c.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestSetOffset_ShiftsNow(t *testing.T) {
	c := New()
	c.SetOffset(6 * time.Hour)
	diff := time.Until(c.Now())
	if diff < 6*time.Hour-time.Second || diff > 6*time.Hour+time.Second {
		t.Errorf("offset clock is %v ahead, want ~6h", diff)
	}
}

func TestSetOffset_ClearReturnsToRealTime(t *testing.T) {
	c := New()
	c.SetOffset(-48 * time.Hour)
	c.SetOffset(0)
	if c.Simulated() {
		t.Error("Simulated() = true after clearing offset")
	}
	diff := time.Since(c.Now())
	if diff < -time.Second || diff > time.Second {
		t.Errorf("cleared clock differs from real time by %v", diff)
	}
}

func TestNow_NoDriftAccumulation(t *testing.T) {
	// Two reads far apart in call count must stay anchored to the system
	// clock plus the fixed offset, not compound per call.
	c := New()
	c.SetOffset(time.Hour)
	first := c.Now()
	for i := 0; i < 10000; i++ {
		c.Now()
	}
	last := c.Now()
	if last.Sub(first) > time.Second {
		t.Errorf("clock advanced %v across reads, offset is compounding", last.Sub(first))
	}
}

func TestNewAt_ReadsTargetTime(t *testing.T) {
	target := time.Date(2026, 3, 14, 10, 15, 0, 0, time.Local)
	c := NewAt(target)
	diff := c.Now().Sub(target)
	if diff < 0 {
		diff = -diff
	}
	if diff > time.Second {
		t.Errorf("NewAt clock reads %v, want ~%v", c.Now(), target)
	}
}
