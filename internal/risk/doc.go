// Package risk implements the Community Risk Index: a deterministic engine
// that converts raw per-block measurements for six risk factors into a
// normalized composite risk score per geographic block.
//
// # Blocks
//
// A block is a fixed-size geographic cell, approximated as a point at its
// center for all distance math. Block IDs are derived from the center
// coordinates with fixed 4-decimal formatting:
//
//	BLK_<lat>_<lng>  →  e.g. BLK_40.7120_-74.0060
//
// Deterministic IDs enable idempotent upserts downstream; recomputing the
// same block always targets the same row.
//
// # Factors
//
// Six independent factors, each normalized into [0,1] where higher means
// more risk:
//
//	crime               incidents per month, scaled by a severity multiplier
//	blight              abandoned buildings (3x), code violations (2x), vacant lots (1x)
//	emergency_response  blended avg (70%) and p90 (30%) response minutes, sqrt transform
//	air_quality         EPA-aligned AQI bands, optionally blended with PM2.5
//	heat_exposure       temperature (60%) and canopy/impervious environment (40%)
//	traffic_speed       speed overage vs road-type threshold, pedestrian multiplier
//
// Every factor score and the composite index are rounded to 3 decimal places.
// The rounding is part of the contract: category thresholds are sensitive to
// small differences near the boundaries, so all implementations must agree
// bit-for-bit.
//
// # Composite index and categories
//
// The composite index is a weighted average of the six factor scores. Weights
// come from a named [Config]; if they do not sum to 1.0 (±0.01) the
// calculation degrades to an unweighted mean rather than failing. Categories
// are fixed and not configurable:
//
//	< 0.3  low        minimal intervention needed
//	< 0.5  moderate   monitoring recommended
//	< 0.7  high       active intervention needed
//	else   critical   urgent intervention required
//
// # Spatial smoothing
//
// A block's score can be pulled toward the scores of nearby blocks using
// great-circle distance and exponential decay, so that isolated low-risk
// "islands" inside high-risk zones are surfaced. The target block always
// keeps weight 1.0; smoothing adjusts, never overrides. See [Smooth].
//
// # Statelessness
//
// Everything in this package is a pure function of its inputs plus a
// package-level clock (swappable via [SetClock] for deterministic tests).
// Persistence, transport, and configuration storage live elsewhere.
package risk
