package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestGenerateLevels(t *testing.T) {
	t.Run("even spacing with endpoints", func(t *testing.T) {
		levels := GenerateLevels(dec("10"), dec("20"), 3)
		want := []string{"10", "15", "20"}
		if len(levels) != 3 {
			t.Fatalf("got %d levels, want 3", len(levels))
		}
		for i, w := range want {
			if !levels[i].Equal(dec(w)) {
				t.Errorf("levels[%d] = %s, want %s", i, levels[i], w)
			}
		}
	})

	t.Run("single level sits at min", func(t *testing.T) {
		levels := GenerateLevels(dec("10"), dec("20"), 1)
		if len(levels) != 1 || !levels[0].Equal(dec("10")) {
			t.Errorf("single level = %v, want [10]", levels)
		}
	})

	t.Run("non-positive count yields nothing", func(t *testing.T) {
		if GenerateLevels(dec("10"), dec("20"), 0) != nil {
			t.Error("expected nil for zero levels")
		}
	})
}

func TestDistributionWeights(t *testing.T) {
	sum := func(ws []decimal.Decimal) decimal.Decimal {
		s := decimal.Zero
		for _, w := range ws {
			s = s.Add(w)
		}
		return s
	}

	t.Run("uniform splits evenly", func(t *testing.T) {
		ws := DistributionWeights(4, "uniform")
		for i, w := range ws {
			if !w.Equal(dec("0.25")) {
				t.Errorf("weights[%d] = %s, want 0.25", i, w)
			}
		}
	})

	t.Run("bell is symmetric and centered", func(t *testing.T) {
		ws := DistributionWeights(5, "bell")
		if len(ws) != 5 {
			t.Fatalf("got %d weights, want 5", len(ws))
		}
		s := sum(ws)
		if s.Sub(dec("1")).Abs().GreaterThan(dec("0.000001")) {
			t.Errorf("bell weights sum to %s, want 1", s)
		}
		if !ws[2].GreaterThan(ws[0]) || !ws[2].GreaterThan(ws[4]) {
			t.Errorf("center weight %s must exceed edges %s/%s", ws[2], ws[0], ws[4])
		}
		if ws[0].Sub(ws[4]).Abs().GreaterThan(dec("0.000001")) {
			t.Errorf("bell not symmetric: %s vs %s", ws[0], ws[4])
		}
	})

	t.Run("single order takes full weight", func(t *testing.T) {
		for _, kind := range []string{"uniform", "bell"} {
			ws := DistributionWeights(1, kind)
			if len(ws) != 1 || !ws[0].Equal(dec("1")) {
				t.Errorf("%s n=1 weights = %v, want [1]", kind, ws)
			}
		}
	})
}

func TestComputeSpendAmount(t *testing.T) {
	price := dec("500") // quote per base
	cases := []struct {
		name        string
		amount      string
		basisIsBase bool
		spendIsBase bool
		want        string
	}{
		{"same basis passes through", "2", true, true, "2"},
		{"same quote basis passes through", "1000", false, false, "1000"},
		{"quote amount spent in base", "1000", false, true, "2"},
		{"base amount spent in quote", "2", true, false, "1000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeSpendAmount(price, dec(tc.amount), tc.basisIsBase, tc.spendIsBase)
			if !got.Equal(dec(tc.want)) {
				t.Errorf("ComputeSpendAmount = %s, want %s", got, tc.want)
			}
		})
	}

	t.Run("zero price yields zero", func(t *testing.T) {
		if got := ComputeSpendAmount(decimal.Zero, dec("5"), true, false); !got.IsZero() {
			t.Errorf("got %s, want 0", got)
		}
	})
}

func TestIsExactOutputCase(t *testing.T) {
	if IsExactOutputCase(true, true) || IsExactOutputCase(false, false) {
		t.Error("same basis and spend side must not be exact-output")
	}
	if !IsExactOutputCase(true, false) || !IsExactOutputCase(false, true) {
		t.Error("mismatched basis and spend side must be exact-output")
	}
}
