package models

type Tier int

const (
	TierUnofficial Tier = iota
	TierOfficial
)

func (t Tier) String() string {
	switch t {
	case TierOfficial:
		return "official"
	default:
		return "unofficial"
	}
}

// Tiers maps a source identifier to its trust tier. Unknown sources are
// unofficial.
type Tiers map[string]Tier

func NewTiers(official []string) Tiers {
	t := make(Tiers, len(official))
	for _, id := range official {
		t[NormalizeSourceID(id)] = TierOfficial
	}
	return t
}

func (t Tiers) Of(sourceID string) Tier {
	if tier, ok := t[NormalizeSourceID(sourceID)]; ok {
		return tier
	}
	return TierUnofficial
}

func (t Tiers) IsOfficial(sourceID string) bool {
	return t.Of(sourceID) == TierOfficial
}
