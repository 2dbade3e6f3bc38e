// Package asset implements the asset-key merge decision engine: given an
// observed scan target and a list of previously-known asset identities, it
// decides whether the observation matches an existing asset or requires a
// new one, and which other candidates should be folded into the winner.
package asset

import (
	"time"

	"github.com/vulnscan/scanengine/pkg/types"
)

const (
	weightMAC      = 1.0
	weightHostname = 0.4
	weightIP       = 0.4
)

// score sums the weights of the bits set in a candidate's match mask.
func score(mask types.MatchField) float64 {
	var s float64
	if mask&types.MatchMAC != 0 {
		s += weightMAC
	}
	if mask&types.MatchHostname != 0 {
		s += weightHostname
	}
	if mask&types.MatchIP != 0 {
		s += weightIP
	}
	return s
}

// Decide runs the selection protocol of §4.2: pick the best-scoring
// candidate for obs, or request a new key when none qualifies.
func Decide(obs *types.AssetObservation, candidates []types.AssetCandidate) types.MergeDecision {
	if obs.Empty() || len(candidates) == 0 {
		return types.MergeDecision{NeedsNewKey: true}
	}

	bestIdx := -1
	var bestScore float64
	var bestLastSeen time.Time

	for i, c := range candidates {
		if c.Key == "" {
			continue
		}
		s := score(c.Mask)
		if s <= 0 {
			continue
		}
		if bestIdx == -1 {
			bestIdx, bestScore, bestLastSeen = i, s, c.LastSeen
			continue
		}
		switch {
		case s > bestScore:
			bestIdx, bestScore, bestLastSeen = i, s, c.LastSeen
		case s == bestScore && c.LastSeen.After(bestLastSeen):
			bestIdx, bestScore, bestLastSeen = i, s, c.LastSeen
			// equal score and equal (or earlier) last-seen: first encountered wins, keep current best
		}
	}

	if bestIdx == -1 {
		return types.MergeDecision{NeedsNewKey: true}
	}

	selected := candidates[bestIdx]
	merge := mergeList(selected, *obs, candidates, bestIdx)

	return types.MergeDecision{
		NeedsNewKey:  false,
		SelectedKey:  selected.Key,
		SelectedIdx:  bestIdx,
		MergeIndices: merge,
	}
}

// mergeList collects every non-selected candidate whose non-empty
// properties are each a subset of the union of the selected candidate's and
// the observation's values for that property (§4.2).
func mergeList(selected types.AssetCandidate, obs types.AssetObservation, candidates []types.AssetCandidate, selectedIdx int) []int {
	var merged []int
	for i, c := range candidates {
		if i == selectedIdx || c.Key == "" {
			continue
		}
		if isSubset(c, selected, obs) {
			merged = append(merged, i)
		}
	}
	return merged
}

func isSubset(c, selected types.AssetCandidate, obs types.AssetObservation) bool {
	if c.MAC != "" && c.MAC != selected.MAC && c.MAC != obs.MAC {
		return false
	}
	if c.Hostname != "" && c.Hostname != selected.Hostname && c.Hostname != obs.Hostname {
		return false
	}
	if c.IP != "" && c.IP != selected.IP && c.IP != obs.IP {
		return false
	}
	return true
}
