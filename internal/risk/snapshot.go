package risk

import "time"

// HistorySnapshot is an immutable point-in-time copy of a block's scores,
// keyed by block id and snapshot date. Snapshots back trend queries only;
// live scoring never reads them, and they are never updated once written.
type HistorySnapshot struct {
	ID      string `json:"id"`
	BlockID string `json:"block_id"`

	FactorScores

	CompositeRiskIndex float64   `json:"composite_risk_index"`
	RiskCategory       Category  `json:"risk_category"`
	SnapshotDate       time.Time `json:"snapshot_date"`
}

// SnapshotProfile copies the scored state of a profile into a snapshot dated
// at the given time. The caller assigns the ID (storage or the batch driver
// generates one per row).
func SnapshotProfile(p BlockRiskProfile, at time.Time) HistorySnapshot {
	return HistorySnapshot{
		BlockID:            p.BlockID,
		FactorScores:       p.FactorScores,
		CompositeRiskIndex: p.CompositeRiskIndex,
		RiskCategory:       p.RiskCategory,
		SnapshotDate:       at.UTC(),
	}
}
