package profiles

import (
	"testing"

	"github.com/foxsync/foxsync-go/pkg/model"
)

func detailWith(productType string) *model.InverterDetail {
	return &model.InverterDetail{Inverter: model.Inverter{ProductType: productType}}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name   string
		detail *model.InverterDetail
		want   string
	}{
		{"exact KH", detailWith("KH"), "kh"},
		{"exact H3-G2", detailWith("H3-G2"), "h3"},
		{"H3 prefix fallback", detailWith("H3-PRO"), "h3"},
		{"lowercase product type", detailWith("h3-g2"), "h3"},
		{"whitespace trimmed", detailWith("  KH  "), "kh"},
		{"unknown defaults to KH", detailWith("AC1"), "kh"},
		{"empty defaults to KH", detailWith(""), "kh"},
		{"nil detail defaults to KH", nil, "kh"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Select(tc.detail); got.ID != tc.want {
				t.Errorf("Select(%v).ID = %q, want %q", tc.detail, got.ID, tc.want)
			}
		})
	}
}

func TestProfileRanges(t *testing.T) {
	kh := Select(detailWith("KH"))
	if kh.Ranges.MaxFdPwr != 12000 {
		t.Errorf("KH MaxFdPwr = %v, want 12000", kh.Ranges.MaxFdPwr)
	}
	h3 := Select(detailWith("H3-G2"))
	if h3.Ranges.MaxFdPwr != 30000 {
		t.Errorf("H3 MaxFdPwr = %v, want 30000", h3.Ranges.MaxFdPwr)
	}
	for _, p := range []Profile{kh, h3} {
		if p.Ranges.MinSoc != 10 || p.Ranges.MaxSoc != 100 {
			t.Errorf("%s SoC bounds = %v..%v, want 10..100", p.ID, p.Ranges.MinSoc, p.Ranges.MaxSoc)
		}
	}
}

func TestProfileVariablesAreCopies(t *testing.T) {
	a := Select(detailWith("KH"))
	b := Select(detailWith("KH"))
	a.RealtimeVariables[0] = "mutated"
	if b.RealtimeVariables[0] == "mutated" {
		t.Error("profiles must not share variable slices")
	}
}

func TestH3HasThreePhaseVariables(t *testing.T) {
	vars := Select(detailWith("H3-G2")).RealtimeVariables
	for _, want := range []string{"SPower", "TPower"} {
		found := false
		for _, v := range vars {
			if v == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("H3 variables missing %q", want)
		}
	}
}
