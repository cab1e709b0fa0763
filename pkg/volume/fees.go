package volume

import (
	"fmt"
	"sort"
)

// Tier is one step of a fee schedule. Volumes strictly below Below pay Rate.
// A Below of zero marks the open-ended top tier.
type Tier struct {
	Below float64 `json:"below" koanf:"below" toml:"below"`
	Rate  float64 `json:"rate" koanf:"rate" toml:"rate"`
}

// FeeSchedule maps a traded volume to a fee rate. Tiers are kept in
// ascending order with the open-ended tier last.
type FeeSchedule struct {
	tiers []Tier
}

// NewFeeSchedule validates and sorts tiers into a schedule
func NewFeeSchedule(tiers ...Tier) (FeeSchedule, error) {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)

	open := 0
	for _, t := range sorted {
		if t.Rate < 0 {
			return FeeSchedule{}, fmt.Errorf("fee tier below %v: negative rate %v", t.Below, t.Rate)
		}
		if t.Below < 0 {
			return FeeSchedule{}, fmt.Errorf("fee tier with rate %v: negative bound %v", t.Rate, t.Below)
		}
		if t.Below == 0 {
			open++
		}
	}
	if open > 1 {
		return FeeSchedule{}, fmt.Errorf("fee schedule has %d open-ended tiers, expected at most 1", open)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Below, sorted[j].Below
		if a == 0 || b == 0 {
			return b == 0 && a != 0
		}
		return a < b
	})
	return FeeSchedule{tiers: sorted}, nil
}

// DefaultFeeSchedule returns the standard four tiers:
// <1,000 at 0.1%, <10,000 at 0.05%, <100,000 at 0.02% and above at 0.01%
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{tiers: []Tier{
		{Below: 1000, Rate: 0.001},
		{Below: 10000, Rate: 0.0005},
		{Below: 100000, Rate: 0.0002},
		{Below: 0, Rate: 0.0001},
	}}
}

// Rate returns the fee rate for volume. Volumes above every bounded tier
// without an open-ended tier pay the last tier's rate.
func (s FeeSchedule) Rate(volume float64) float64 {
	for _, t := range s.tiers {
		if t.Below == 0 || volume < t.Below {
			return t.Rate
		}
	}
	if len(s.tiers) == 0 {
		return 0
	}
	return s.tiers[len(s.tiers)-1].Rate
}

// Tiers returns a copy of the tiers in schedule order
func (s FeeSchedule) Tiers() []Tier {
	tiers := make([]Tier, len(s.tiers))
	copy(tiers, s.tiers)
	return tiers
}

// Boundaries returns the bounded tier limits in ascending order
func (s FeeSchedule) Boundaries() []float64 {
	var bounds []float64
	for _, t := range s.tiers {
		if t.Below > 0 {
			bounds = append(bounds, t.Below)
		}
	}
	return bounds
}
