package nci

import (
	"testing"
	"time"
)

func TestFakeClockTickerFiresRepeatedly(t *testing.T) {
	fc := NewFakeClock(time.Unix(0, 0))
	ticker := fc.NewTicker(250 * time.Millisecond)

	fc.Advance(250 * time.Millisecond)
	select {
	case <-ticker.C():
	default:
		t.Fatalf("expected ticker to fire after one interval")
	}

	fc.Advance(500 * time.Millisecond)
	fired := 0
	for {
		select {
		case <-ticker.C():
			fired++
			continue
		default:
		}
		break
	}
	if fired == 0 {
		t.Fatalf("expected ticker to fire again after two more intervals")
	}
}

func TestFakeClockTickerStop(t *testing.T) {
	fc := NewFakeClock(time.Unix(0, 0))
	ticker := fc.NewTicker(100 * time.Millisecond)
	ticker.Stop()

	fc.Advance(time.Second)
	select {
	case <-ticker.C():
		t.Fatalf("stopped ticker must not fire")
	default:
	}
}

func TestFakeClockAfterFunc(t *testing.T) {
	fc := NewFakeClock(time.Unix(0, 0))
	fired := false
	timer := fc.AfterFunc(0, func() { fired = true })

	fc.Advance(0)
	if !fired {
		t.Fatalf("expected zero-delay AfterFunc to fire on the next Advance")
	}
	if timer.Stop() {
		t.Fatalf("Stop on an already-fired timer should report false")
	}
}

func TestFakeClockTimerStopPreventsDelivery(t *testing.T) {
	fc := NewFakeClock(time.Unix(0, 0))
	called := false
	timer := fc.AfterFunc(time.Second, func() { called = true })
	if !timer.Stop() {
		t.Fatalf("Stop on a pending timer should report true")
	}

	fc.Advance(2 * time.Second)
	if called {
		t.Fatalf("stopped AfterFunc must not run")
	}
}
