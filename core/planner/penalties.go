package planner

// Fixed penalty weights of the relaxed formulation, in SEK per kWh of slack.
// They are not caller-configurable; the target-SoC and comfort penalties are
// carried by model.Config instead.
const (
	// MinSoCPenalty prices every kWh below the configured SoC floor.
	MinSoCPenalty = 1000.0
	// CurtailmentPenalty prices unused PV. It is intentionally small: spilling
	// PV is legitimate when export is disabled or worth less than nothing.
	CurtailmentPenalty = 0.1
	// LoadSheddingPenalty prices unserved load. It dominates any tariff.
	LoadSheddingPenalty = 10000.0
	// ImportBreachPenalty prices imports above the fuse limit.
	ImportBreachPenalty = 5000.0
)

// longGapFactor scales the comfort gap for the second penalty tier.
const longGapFactor = 1.5
