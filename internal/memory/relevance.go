package memory

import "time"

// Relevance weights. Keyword overlap dominates; recency and the layer's
// own signal split the remainder evenly.
const (
	overlapWeight = 0.6
	recencyWeight = 0.2
	signalWeight  = 0.2
)

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Recency scores how fresh ts is on a linear decay over horizon.
// Age is measured from the start of the current day, so anything from
// today scores 1 and repeated retrievals during a day see identical
// scores; retrieving twice without writes must produce identical
// bundles, and a wall-clock age would drift between the calls. A
// non-positive horizon treats everything as fresh.
func Recency(ts, now time.Time, horizon time.Duration) float64 {
	if horizon <= 0 {
		return 1
	}
	age := now.Truncate(24 * time.Hour).Sub(ts)
	if age <= 0 {
		return 1
	}
	if age >= horizon {
		return 0
	}
	return 1 - float64(age)/float64(horizon)
}

// Relevance combines the three scoring components, each expected in
// [0, 1]: keyword overlap with the query, recency of the source record,
// and the layer-specific signal (initiative status, stakeholder
// influence, framework effectiveness, session affinity). Inputs are
// clamped before weighting so a misbehaving component cannot push the
// result out of range.
func Relevance(overlap, recency, signal float64) float64 {
	return Clamp01(overlapWeight*Clamp01(overlap) +
		recencyWeight*Clamp01(recency) +
		signalWeight*Clamp01(signal))
}
