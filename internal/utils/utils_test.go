package utils

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestFormatRubles(t *testing.T) {
	cases := map[int64]string{
		0:       "0 RUB",
		320:     "320 RUB",
		12450:   "12 450 RUB",
		-1000:   "-1 000 RUB",
		1234567: "1 234 567 RUB",
	}
	for in, want := range cases {
		if got := FormatRubles(in); got != want {
			t.Fatalf("FormatRubles(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitAmountKeepsTotal(t *testing.T) {
	got := SplitAmount(1000, 3)
	if !reflect.DeepEqual(got, []int64{334, 333, 333}) {
		t.Fatalf("split = %v", got)
	}
	if SplitAmount(10, 0) != nil {
		t.Fatalf("expected nil for zero parts")
	}
}

func TestFormatCountdown(t *testing.T) {
	cases := map[time.Duration]string{
		600 * time.Second:      "10:00",
		59*time.Second + 900e6: "00:59",
		0:                      "00:00",
		-75 * time.Second:      "-01:15",
	}
	for in, want := range cases {
		if got := FormatCountdown(in); got != want {
			t.Fatalf("FormatCountdown(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestComputeFare(t *testing.T) {
	if got := ComputeFare(3, 0, 100, 320); got != 300 {
		t.Fatalf("three hops = %d", got)
	}
	if got := ComputeFare(2, 50, 0, 320); got != 320 {
		t.Fatalf("no per-stop pricing = %d", got)
	}
	if got := ComputeFare(0, 0, 100, 320); got != 320 {
		t.Fatalf("zero hops = %d", got)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "rid-1")
	if got := RequestIDFrom(ctx); got != "rid-1" {
		t.Fatalf("request id = %q", got)
	}
	if got := RequestIDFrom(context.Background()); got != "" {
		t.Fatalf("empty ctx = %q", got)
	}
}

func TestSafeFilenamePart(t *testing.T) {
	if got := SafeFilenamePart(" 247/a b "); got != "247_a_b" {
		t.Fatalf("got %q", got)
	}
	if got := SafeFilenamePart(""); got != "NA" {
		t.Fatalf("empty = %q", got)
	}
}
