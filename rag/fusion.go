package rag

import (
	"sort"

	"github.com/javisai/javis/types"
)

// fuse merges per-modality candidate lists into one ranked evidence list.
//
// Raw ANN scores are not comparable across collections, so each modality's
// scores are min-max normalized into [0,1] before merging. A modality whose
// scores are all equal normalizes to 0.5 for every candidate. Ordering is
// fully deterministic: fused score descending, then canonical modality order,
// then document ID.
func fuse(byModality map[types.Modality][]Candidate, limit int) []types.EvidenceItem {
	var items []types.EvidenceItem
	for _, m := range types.Modalities() {
		cands := byModality[m]
		if len(cands) == 0 {
			continue
		}
		lo, hi := cands[0].Score, cands[0].Score
		for _, c := range cands[1:] {
			if c.Score < lo {
				lo = c.Score
			}
			if c.Score > hi {
				hi = c.Score
			}
		}
		for _, c := range cands {
			fused := 0.5
			if hi > lo {
				fused = (c.Score - lo) / (hi - lo)
			}
			items = append(items, types.EvidenceItem{
				DocID:      c.DocID,
				Modality:   c.Modality,
				Snippet:    c.Snippet,
				Score:      c.Score,
				FusedScore: fused,
				Provenance: c.Provenance,
				ImageB64:   c.ImageB64,
			})
		}
	}

	sortEvidence(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// modalityRank maps a modality to its canonical position.
func modalityRank(m types.Modality) int {
	for i, mm := range types.Modalities() {
		if m == mm {
			return i
		}
	}
	return len(types.Modalities())
}

// sortEvidence orders items by effective score descending with deterministic
// tie-breaking. EffectiveScore is the rerank score when present, the fused
// score otherwise, so the same sort serves both before and after reranking.
func sortEvidence(items []types.EvidenceItem) {
	sort.SliceStable(items, func(i, j int) bool {
		si, sj := items[i].EffectiveScore(), items[j].EffectiveScore()
		if si != sj {
			return si > sj
		}
		ri, rj := modalityRank(items[i].Modality), modalityRank(items[j].Modality)
		if ri != rj {
			return ri < rj
		}
		return items[i].DocID < items[j].DocID
	})
}
