package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javisai/javis/types"
)

func TestFuse_NormalizesPerModality(t *testing.T) {
	byModality := map[types.Modality][]Candidate{
		types.ModalityText: {
			{DocID: "t1", Modality: types.ModalityText, Score: 10},
			{DocID: "t2", Modality: types.ModalityText, Score: 20},
		},
		types.ModalityImage: {
			{DocID: "i1", Modality: types.ModalityImage, Score: 0.1},
			{DocID: "i2", Modality: types.ModalityImage, Score: 0.9},
		},
	}

	items := fuse(byModality, 10)
	require.Len(t, items, 4)

	scores := map[string]float64{}
	for _, it := range items {
		scores[it.DocID] = it.FusedScore
	}
	// Raw scales differ wildly, but normalized tops are comparable.
	assert.Equal(t, 1.0, scores["t2"])
	assert.Equal(t, 0.0, scores["t1"])
	assert.Equal(t, 1.0, scores["i2"])
	assert.Equal(t, 0.0, scores["i1"])
}

func TestFuse_DegenerateScoresMapToHalf(t *testing.T) {
	byModality := map[types.Modality][]Candidate{
		types.ModalityText: {
			{DocID: "a", Modality: types.ModalityText, Score: 0.7},
			{DocID: "b", Modality: types.ModalityText, Score: 0.7},
		},
	}
	items := fuse(byModality, 10)
	require.Len(t, items, 2)
	assert.Equal(t, 0.5, items[0].FusedScore)
	assert.Equal(t, 0.5, items[1].FusedScore)
}

func TestFuse_SingleCandidateMapsToHalf(t *testing.T) {
	items := fuse(map[types.Modality][]Candidate{
		types.ModalityScreen: {{DocID: "s1", Modality: types.ModalityScreen, Score: 3.2}},
	}, 10)
	require.Len(t, items, 1)
	assert.Equal(t, 0.5, items[0].FusedScore)
}

func TestFuse_DeterministicTieBreak(t *testing.T) {
	byModality := map[types.Modality][]Candidate{
		// Every candidate fuses to 0.5, so ties resolve by modality order
		// then doc ID.
		types.ModalityImage: {{DocID: "zz", Modality: types.ModalityImage, Score: 1}},
		types.ModalityText:  {{DocID: "bb", Modality: types.ModalityText, Score: 1}},
		types.ModalityScreen: {
			{DocID: "aa", Modality: types.ModalityScreen, Score: 1},
		},
	}

	for range [5]struct{}{} {
		items := fuse(byModality, 10)
		require.Len(t, items, 3)
		assert.Equal(t, "bb", items[0].DocID)
		assert.Equal(t, "zz", items[1].DocID)
		assert.Equal(t, "aa", items[2].DocID)
	}
}

func TestFuse_TruncatesToLimit(t *testing.T) {
	byModality := map[types.Modality][]Candidate{
		types.ModalityText: {
			{DocID: "a", Modality: types.ModalityText, Score: 1},
			{DocID: "b", Modality: types.ModalityText, Score: 2},
			{DocID: "c", Modality: types.ModalityText, Score: 3},
		},
	}
	items := fuse(byModality, 2)
	require.Len(t, items, 2)
	assert.Equal(t, "c", items[0].DocID)
}

func TestFuse_Empty(t *testing.T) {
	assert.Empty(t, fuse(map[types.Modality][]Candidate{}, 10))
}

func TestSortEvidence_RerankScoreWins(t *testing.T) {
	low, high := 0.1, 0.95
	items := []types.EvidenceItem{
		{DocID: "a", Modality: types.ModalityText, FusedScore: 0.9, RerankScore: &low},
		{DocID: "b", Modality: types.ModalityImage, FusedScore: 0.2, RerankScore: &high},
	}
	sortEvidence(items)
	assert.Equal(t, "b", items[0].DocID)
}
