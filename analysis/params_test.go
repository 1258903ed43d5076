package analysis

import "testing"

func TestThresholdScenarios(t *testing.T) {
	// Spec §8 "Analyzer threshold semantics".
	cases := []struct {
		name      string
		p         Params
		totalRows int64
		want      int64
	}{
		{"A", Params{MaxRate: 0.4, MaxNrow: 0}, 40, 16},
		{"B", Params{MaxRate: 0.25, MaxNrow: 0}, 14, 4},
		{"C", Params{MaxRate: 0.9, MaxNrow: 0}, 40, 36},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := c.p.Threshold(c.totalRows)
			if got != c.want {
				t.Fatalf("got threshold %d, want %d", got, c.want)
			}
		})
	}
}

func TestThresholdMaxNrowCaps(t *testing.T) {
	p := Params{MaxRate: 0.5, MaxNrow: 3}
	got := p.Threshold(100) // ceil(0.5*100)=50, capped to 3
	if got != 3 {
		t.Fatalf("got %d, want 3", got)
	}
}

func TestThresholdMaxNrowZeroMeansUncapped(t *testing.T) {
	p := Params{MaxRate: 0.5, MaxNrow: 0}
	got := p.Threshold(100)
	if got != 50 {
		t.Fatalf("got %d, want 50", got)
	}
}

func TestParamsValidate(t *testing.T) {
	ok := Params{K: 8, OccurrenceBits: 8, MaxRate: 0.1, MaxNrow: 0}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := ok
	bad.K = 100
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for out-of-range k")
	}

	bad = ok
	bad.MaxRate = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for zero max_rate")
	}

	bad = ok
	bad.MaxRate = 1.5
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for max_rate > 1")
	}
}
