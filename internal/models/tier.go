package models

// RetailerTier is the trust class of a listing's seller.
type RetailerTier int

const (
	TierUnknown RetailerTier = iota
	TierTrusted
	TierReputable
	TierMarketplace
)

// Score is the retailer score used when ranking price candidates.
func (t RetailerTier) Score() float64 {
	switch t {
	case TierTrusted:
		return 1.0
	case TierReputable:
		return 0.7
	case TierMarketplace:
		return 0.3
	default:
		return 0.5
	}
}

func (t RetailerTier) String() string {
	switch t {
	case TierTrusted:
		return "trusted"
	case TierReputable:
		return "reputable"
	case TierMarketplace:
		return "marketplace"
	default:
		return "unknown"
	}
}
