package risk

import "math"

// CategoryBucket is one slice of the category distribution.
type CategoryBucket struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"` // of all blocks, 1 decimal
}

// Statistics summarizes risk across a set of blocks.
type Statistics struct {
	TotalBlocks      int                        `json:"total_blocks"`
	AverageRiskIndex float64                    `json:"average_risk_index"`
	MaxRiskIndex     float64                    `json:"max_risk_index"`
	MaxRiskBlockID   string                     `json:"max_risk_block_id,omitempty"`
	Distribution     map[Category]CategoryBucket `json:"category_distribution"`
}

// ComputeStatistics aggregates category distribution and average/max risk
// over the given profiles. An empty input produces zeroed statistics with a
// full (all-zero) distribution.
func ComputeStatistics(profiles []BlockRiskProfile) Statistics {
	stats := Statistics{
		TotalBlocks:  len(profiles),
		Distribution: make(map[Category]CategoryBucket, len(Categories)),
	}

	counts := make(map[Category]int, len(Categories))
	var totalRisk float64
	for _, p := range profiles {
		counts[p.RiskCategory]++
		totalRisk += p.CompositeRiskIndex
		if p.CompositeRiskIndex > stats.MaxRiskIndex {
			stats.MaxRiskIndex = p.CompositeRiskIndex
			stats.MaxRiskBlockID = p.BlockID
		}
	}

	if stats.TotalBlocks > 0 {
		stats.AverageRiskIndex = round3(totalRisk / float64(stats.TotalBlocks))
		stats.MaxRiskIndex = round3(stats.MaxRiskIndex)
	}

	for _, c := range Categories {
		bucket := CategoryBucket{Count: counts[c]}
		if stats.TotalBlocks > 0 {
			bucket.Percentage = round1(float64(counts[c]) / float64(stats.TotalBlocks) * 100)
		}
		stats.Distribution[c] = bucket
	}

	return stats
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
