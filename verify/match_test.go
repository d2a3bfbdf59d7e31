package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHammingDistance(t *testing.T) {
	assert.Equal(t, 0, HammingDistance([]byte{0x00, 0xFF}, []byte{0x00, 0xFF}))
	assert.Equal(t, 8, HammingDistance([]byte{0xFF}, []byte{0x00}))
	assert.Equal(t, 2, HammingDistance([]byte{0b1010}, []byte{0b0110}))
	assert.Equal(t, 16, HammingDistance([]byte{0xFF, 0xFF}, []byte{0x00, 0x00}))
}

func TestMatchDescriptorsNearestWins(t *testing.T) {
	match := [][]byte{{0x00}, {0xFF}, {0x0F}}
	query := [][]byte{{0x00}, {0x0F}}

	// Query 0 is nearest to match 0 (d=0 vs d=4), query 1 to match 2.
	qi, mi := MatchDescriptors(query, match, 0.7)
	require.Equal(t, []int{0, 1}, qi)
	assert.Equal(t, []int{0, 2}, mi)
}

func TestMatchDescriptorsRatioRejectsAmbiguous(t *testing.T) {
	// Both match rows are equidistant from the query, so the ratio test
	// must reject the pair for any ratio below 1.
	match := [][]byte{{0x0F}, {0xF0}}
	query := [][]byte{{0x00}}

	qi, mi := MatchDescriptors(query, match, 0.99)
	assert.Empty(t, qi)
	assert.Empty(t, mi)
}

func TestMatchDescriptorsExactDuplicateRejected(t *testing.T) {
	// A descriptor appearing twice in match gives best == second == 0;
	// strict inequality rejects it.
	match := [][]byte{{0xAA}, {0xAA}}
	query := [][]byte{{0xAA}}

	qi, _ := MatchDescriptors(query, match, 0.8)
	assert.Empty(t, qi)
}

func TestMatchDescriptorsTooFewMatchRows(t *testing.T) {
	qi, mi := MatchDescriptors([][]byte{{0x01}}, [][]byte{{0x01}}, 0.8)
	assert.Nil(t, qi)
	assert.Nil(t, mi)

	qi, mi = MatchDescriptors([][]byte{{0x01}}, nil, 0.8)
	assert.Nil(t, qi)
	assert.Nil(t, mi)
}

func TestMatchDescriptorsDeterministic(t *testing.T) {
	match := [][]byte{{0x01}, {0x03}, {0x07}, {0x1F}}
	query := [][]byte{{0x00}, {0x0F}, {0xFF}}

	qi1, mi1 := MatchDescriptors(query, match, 0.8)
	qi2, mi2 := MatchDescriptors(query, match, 0.8)
	assert.Equal(t, qi1, qi2)
	assert.Equal(t, mi1, mi2)
}
