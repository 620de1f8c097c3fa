// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GermanBionicSystems/owrmt/owmaster"
	"github.com/GermanBionicSystems/owrmt/owsim"
	"github.com/GermanBionicSystems/owrmt/scope"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/physic"
)

func TestParseConfig(t *testing.T) {
	data := []byte(`
adapter: gpio
pin: GPIO17
reset_timeout: 50ms
read_timeout: 2ms
resolution: 12
devices:
  - family: 0x10
    serial: 0x1234
    alarm: true
`)
	got, err := ParseConfig(data)
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		Adapter:      "gpio",
		Pin:          "GPIO17",
		ResetTimeout: 50 * time.Millisecond,
		ReadTimeout:  2 * time.Millisecond,
		Resolution:   12,
		Devices:      []SimDevice{{Family: 0x10, Serial: 0x1234, Alarm: true}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestParseConfig_defaults(t *testing.T) {
	got, err := ParseConfig([]byte("pin: GPIO5\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := DefaultConfig()
	want.Pin = "GPIO5"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestParseConfig_errors(t *testing.T) {
	data := []string{
		"adapter: usb\n",
		"pin: \"\"\n",
		"resolution: 8\n",
		"read_timeout: -1s\n",
		"devices:\n  - family: 0x01\n    celsius: 20\n",
		"adapter: [\n",
	}
	for i, line := range data {
		if _, err := ParseConfig([]byte(line)); err == nil {
			t.Fatalf("#%d: expected an error", i)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	c, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(DefaultConfig(), c); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	p := filepath.Join(t.TempDir(), "bus.yaml")
	if err := os.WriteFile(p, []byte("resolution: 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if c, err = LoadConfig(p); err != nil || c.Resolution != 9 {
		t.Fatal(c, err)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error")
	}
}

func TestSimDevices(t *testing.T) {
	devs := DefaultConfig().simDevices()
	if len(devs) != 3 {
		t.Fatal(devs)
	}
	if th, ok := devs[0].(*owsim.Thermometer); !ok || th.Celsius != 21.5 || th.ROM() != owsim.NewROM(0x28, 1) {
		t.Fatalf("%#v", devs[0])
	}
	if p, ok := devs[2].(*owsim.Plain); !ok || p.ROM() != owsim.NewROM(0x01, 0x1234) {
		t.Fatalf("%#v", devs[2])
	}
}

func TestScan(t *testing.T) {
	out, err := run(t, "scan")
	if err != nil {
		t.Fatal(err)
	}
	want := rom(0x28, 2) + "  DS18B20  ok\n" +
		rom(0x28, 1) + "  DS18B20  ok\n" +
		rom(0x01, 0x1234) + "  DS2401   ok\n" +
		"3 device(s)\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestScan_family(t *testing.T) {
	out, err := run(t, "scan", "--family", "0x28")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(out, "2 device(s)\n") || strings.Contains(out, "DS2401") {
		t.Fatal(out)
	}
	out, err = run(t, "scan", "--family", "0x01")
	if err != nil {
		t.Fatal(err)
	}
	if want := rom(0x01, 0x1234) + "  DS2401   ok\n1 device(s)\n"; out != want {
		t.Fatal(out)
	}
	if _, err := run(t, "scan", "--family", "0x100"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestScan_alarm(t *testing.T) {
	p := writeConfig(t, `
devices:
  - family: 0x28
    serial: 3
    celsius: 30
    alarm: true
  - family: 0x01
    serial: 1
`)
	out, err := run(t, "--config", p, "scan", "--alarm")
	if err != nil {
		t.Fatal(err)
	}
	if want := rom(0x28, 3) + "  DS18B20  ok\n1 device(s)\n"; out != want {
		t.Fatal(out)
	}
}

func TestScan_badConfig(t *testing.T) {
	p := writeConfig(t, "adapter: usb\n")
	if _, err := run(t, "--config", p, "scan"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestTemp(t *testing.T) {
	out, err := run(t, "temp")
	if err != nil {
		t.Fatal(err)
	}
	want := rom(0x28, 2) + "  " + celsius(23.25) + "\n" +
		rom(0x28, 1) + "  " + celsius(21.5) + "\n" +
		"2 thermometer(s)\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestTraceRender(t *testing.T) {
	dir := t.TempDir()
	trace := filepath.Join(dir, "search.cbor")
	out, err := run(t, "trace", "--out", trace)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "3 device(s)\n") || !strings.Contains(out, "event(s) recorded") {
		t.Fatal(out)
	}
	f, err := os.Open(trace)
	if err != nil {
		t.Fatal(err)
	}
	events, err := scope.ReadEvents(f)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) == 0 || events[0].Kind != scope.Idle {
		t.Fatal(events)
	}

	img := filepath.Join(dir, "search.png")
	if _, err := run(t, "render", trace, "--out", img, "--width", "512"); err != nil {
		t.Fatal(err)
	}
	f, err = os.Open(img)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Bounds().Dx() != 512 {
		t.Fatal(decoded.Bounds())
	}

	if _, err := run(t, "render", filepath.Join(dir, "missing.cbor")); err == nil {
		t.Fatal("expected an error")
	}
}

func TestVerbose(t *testing.T) {
	rootCmd.SetArgs([]string{"-v", "scan"})
	var out, logs bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&logs)
	defer resetFlags()
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(logs.String(), "level=DEBUG") {
		t.Fatal(logs.String())
	}
}

//

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	defer resetFlags()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores the flag defaults since cobra keeps the values across
// runs.
func resetFlags() {
	verbose = false
	configPath = ""
	scanAlarm = false
	scanFamily = -1
	tempPersist = false
	traceOut = ""
	traceShow = false
	traceAlarm = false
	renderOut = "trace.png"
	renderResolution = scope.DefaultRenderOpts.Resolution
	renderWidth = scope.DefaultRenderOpts.MaxWidth
}

func writeConfig(t *testing.T, content string) string {
	p := filepath.Join(t.TempDir(), "bus.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func rom(family byte, serial uint64) string {
	return owmaster.ROM(owsim.NewROM(family, serial)).String()
}

func celsius(c float64) string {
	return (physic.Temperature(c*float64(physic.Celsius)) + physic.ZeroCelsius).String()
}
