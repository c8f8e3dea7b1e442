package version

import "testing"

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1.0.226", "v1.0.226", true},
		{"0.9", "v0.9.0", true},
		{"=1.2.3", "v1.2.3", true},
		{"^1.2", "v1.2.0", true},
		{"~0.4", "v0.4.0", true},
		{`"1.0"`, "v1.0.0", true},
		{"1.0.0-alpha.1", "v1.0.0-alpha.1", true},
		{"1.2.3 ", "v1.2.3", true},
		{">=1.0, <2.0", "", false},
		{"*", "", false},
		{"", "", false},
		{"LOCAL", "", false},
		{"WORKSPACE", "", false},
		{"not-a-version", "", false},
	}
	for _, tt := range tests {
		got, ok := Canonical(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Canonical(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want Stability
	}{
		{"1.0.0", StabilityStable},
		{"2.5.1", StabilityStable},
		{"0.4.3", StabilityUnstable},
		{"0.9", StabilityUnstable},
		{"1.0.0-rc.1", StabilityPreRelease},
		{"0.1.0-beta", StabilityPreRelease},
		{"garbage", StabilityUnknown},
		{"", StabilityUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.in); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClassifyUpdate(t *testing.T) {
	tests := []struct {
		declared, latest string
		want             Breaking
	}{
		// Equal versions are always current, never safe or breaking.
		{"1.0.226", "1.0.226", BreakingCurrent},
		{"0.9", "0.9.0", BreakingCurrent},
		// Declared ahead of latest (stale registry data) is current.
		{"1.5.0", "1.4.0", BreakingCurrent},
		// Major-compatible bumps are safe.
		{"1.0.226", "1.0.230", BreakingSafe},
		{"1.41.0", "1.45.2", BreakingSafe},
		{"0.4.1", "0.4.9", BreakingSafe},
		// Major bumps always break.
		{"1.41.0", "2.0.0", BreakingBreaking},
		// 0.x minor bumps break too, per Rust convention.
		{"0.4.3", "0.5.0", BreakingBreaking},
		{"0.4.3", "1.0.0", BreakingBreaking},
		// Unparseable input degrades to unknown.
		{"LOCAL", "1.0.0", BreakingUnknown},
		{"1.0.0", "", BreakingUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyUpdate(tt.declared, tt.latest); got != tt.want {
			t.Errorf("ClassifyUpdate(%q, %q) = %v, want %v", tt.declared, tt.latest, got, tt.want)
		}
	}
}

func TestClassifyUpdateEqualNeverBreaking(t *testing.T) {
	for _, v := range []string{"0.1.0", "0.9", "1.0.0", "2.3.4", "1.0.0-rc.1"} {
		if got := ClassifyUpdate(v, v); got != BreakingCurrent {
			t.Errorf("ClassifyUpdate(%q, %q) = %v, want current", v, v, got)
		}
	}
}

func TestEquivalent(t *testing.T) {
	if !Equivalent("0.9", "0.9.0") {
		t.Error("0.9 and 0.9.0 should be equivalent")
	}
	if Equivalent("0.9", "0.9.1") {
		t.Error("0.9 and 0.9.1 should differ")
	}
	if !Equivalent("LOCAL", "LOCAL") {
		t.Error("identical unparseable strings compare equal")
	}
	if Equivalent("LOCAL", "1.0.0") {
		t.Error("unparseable vs parseable should differ")
	}
}

func TestCompareAndMax(t *testing.T) {
	if Compare("1.0.226", "1.0.230") >= 0 {
		t.Error("1.0.226 should sort below 1.0.230")
	}
	if Compare("junk", "1.0.0") >= 0 {
		t.Error("unparseable sorts first")
	}
	if got := Max([]string{"0.9", "1.2.0", "junk", "1.10.0"}); got != "1.10.0" {
		t.Errorf("Max = %q, want 1.10.0", got)
	}
	if got := Max([]string{"junk"}); got != "" {
		t.Errorf("Max of unparseable = %q, want empty", got)
	}
}
