/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

import "testing"

func TestSerialGT(t *testing.T) {
	cases := []struct {
		a, b uint32
		want bool
	}{
		{2, 1, true},
		{1, 2, false},
		{1, 1, false},
		{0, 0xFFFFFFFF, true},
		{0xFFFFFFFF, 0, false},
	}
	for _, c := range cases {
		if got := serialGT(c.a, c.b); got != c.want {
			t.Errorf("serialGT(%d, %d) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestAdvanceSerialUnixtimeAdvances(t *testing.T) {
	next, initialized, err := advanceSerial(SerialUnixtime, 100, 50, true, 200, 0)
	if err != nil {
		t.Fatalf("advanceSerial: %v", err)
	}
	if next != 200 {
		t.Errorf("expected serial to jump to now (200), got %d", next)
	}
	if !initialized {
		t.Errorf("expected initialized to stay true")
	}
}

func TestAdvanceSerialUnixtimeFallsBackToIncrement(t *testing.T) {
	next, _, err := advanceSerial(SerialUnixtime, 1000, 50, true, 200, 0)
	if err != nil {
		t.Fatalf("advanceSerial: %v", err)
	}
	if next != 1001 {
		t.Errorf("expected a bare increment when now/inbound don't exceed prev, got %d", next)
	}
}

func TestAdvanceSerialCounterFirstRun(t *testing.T) {
	next, initialized, err := advanceSerial(SerialCounter, 5, 5, false, 0, 0)
	if err != nil {
		t.Fatalf("advanceSerial: %v", err)
	}
	if next != 6 {
		t.Errorf("expected first counter run to be prev+1=6, got %d", next)
	}
	if !initialized {
		t.Errorf("expected initialized to become true")
	}
}

func TestAdvanceSerialDateCounter(t *testing.T) {
	next, _, err := advanceSerial(SerialDateCounter, 2026073000, 0, true, 0, 2026073100)
	if err != nil {
		t.Fatalf("advanceSerial: %v", err)
	}
	if next != 2026073100 {
		t.Errorf("expected datecounter serial %d, got %d", 2026073100, next)
	}
}

func TestAdvanceSerialKeepAcceptsAdvancingInbound(t *testing.T) {
	next, _, err := advanceSerial(SerialKeep, 10, 11, true, 0, 0)
	if err != nil {
		t.Fatalf("advanceSerial: %v", err)
	}
	if next != 11 {
		t.Errorf("expected SerialKeep to adopt the inbound serial 11, got %d", next)
	}
}

func TestAdvanceSerialKeepRejectsNonAdvancingInbound(t *testing.T) {
	_, _, err := advanceSerial(SerialKeep, 10, 10, true, 0, 0)
	if err == nil {
		t.Errorf("expected an error when the inbound serial does not advance under SerialKeep")
	}
}
