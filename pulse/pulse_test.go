// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pulse

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"
)

func TestTrain(t *testing.T) {
	var tr Train
	s := Symbol{Level0: gpio.Low, Duration0: 2 * time.Microsecond, Level1: gpio.High, Duration1: 73 * time.Microsecond}
	for i := 0; i < MaxSymbols-1; i++ {
		if !tr.Add(s) {
			t.Fatalf("Add(%d) failed", i)
		}
	}
	if !tr.End() {
		t.Fatal("End() failed")
	}
	if tr.Add(s) {
		t.Fatal("Add() on a full train succeeded")
	}
	if got := len(tr.Symbols()); got != MaxSymbols-1 {
		t.Fatalf("len(Symbols()) = %d", got)
	}
	tr.Pull = true
	tr.Reset()
	if len(tr.Symbols()) != 0 || !tr.Pull {
		t.Fatal("Reset() did not empty the train")
	}
	if !tr.Add(s) {
		t.Fatal("Add() after Reset() failed")
	}
}

func TestTrain_Symbols_stopsAtMarker(t *testing.T) {
	var tr Train
	a := Symbol{Level0: gpio.Low, Duration0: 480 * time.Microsecond, Level1: gpio.High}
	tr.Add(a)
	tr.End()
	tr.Add(a)
	if diff := cmp.Diff(tr.Symbols(), []Symbol{a}); diff != "" {
		t.Errorf("Symbols() difference (-got +want):\n%s", diff)
	}
}

func TestSymbol_String(t *testing.T) {
	s := Symbol{Level0: gpio.Low, Duration0: 65 * time.Microsecond, Level1: gpio.High, Duration1: 10 * time.Microsecond}
	if got, want := s.String(), "Low:65µs/High:10µs"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if s.IsEnd() {
		t.Error("IsEnd() = true")
	}
	if !(Symbol{}).IsEnd() {
		t.Error("zero Symbol is not an end marker")
	}
}
