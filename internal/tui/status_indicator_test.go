package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
)

func TestFmtElapsedCompact(t *testing.T) {
	cases := []struct {
		seconds  uint64
		expected string
	}{
		{seconds: 0, expected: "0s"},
		{seconds: 59, expected: "59s"},
		{seconds: 60, expected: "1m 00s"},
		{seconds: 3*60 + 5, expected: "3m 05s"},
		{seconds: 3600, expected: "1h 00m 00s"},
		{seconds: 25*3600 + 2*60 + 3, expected: "25h 02m 03s"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if got := fmtElapsedCompact(tc.seconds); got != tc.expected {
				t.Fatalf("fmtElapsedCompact(%d) = %q, want %q", tc.seconds, got, tc.expected)
			}
		})
	}
}

func TestStatusIndicatorTracksRunningCommands(t *testing.T) {
	base := time.Unix(0, 0)
	now := base
	s := newStatusIndicator(func() time.Time { return now })
	if s.Render("*", 80) != "" {
		t.Fatalf("idle indicator should render nothing")
	}

	s.Start("c1", " sleep 5 ")
	s.Start("c1", "sleep 5")
	now = base.Add(65 * time.Second)
	s.Start("c2", "make")
	if s.Count() != 2 {
		t.Fatalf("count = %d", s.Count())
	}
	if got := s.Render("*", 80); got != "* sleep 5 (1m 05s) • 1 more running" {
		t.Fatalf("render = %q", got)
	}

	if !s.Finish("c1") || s.Finish("c1") {
		t.Fatalf("Finish should report known ids once")
	}
	if got := s.Render("*", 80); !strings.HasPrefix(got, "* make (0s)") {
		t.Fatalf("render = %q", got)
	}
	s.Finish("c2")
	if s.Active() {
		t.Fatalf("indicator still active")
	}
}

func TestStatusIndicatorClampsWidth(t *testing.T) {
	s := newStatusIndicator(nil)
	s.Start("c1", strings.Repeat("x", 200))
	if w := runewidth.StringWidth(s.Render("*", 30)); w > 30 {
		t.Fatalf("rendered width %d exceeds 30", w)
	}
}
