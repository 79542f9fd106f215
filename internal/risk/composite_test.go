package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var exampleScores = FactorScores{
	Crime:             0.36,
	Blight:            0.158,
	EmergencyResponse: 0.5,
	AirQuality:        0.4,
	HeatExposure:      0.3,
	TrafficSpeed:      0.45,
}

func TestCompositeIndex(t *testing.T) {
	t.Run("default weights", func(t *testing.T) {
		// 0.36×0.25 + 0.158×0.15 + 0.5×0.20 + 0.4×0.15 + 0.3×0.10 + 0.45×0.15
		index, category, fellBack := CompositeIndex(exampleScores, DefaultConfig())
		assert.Equal(t, 0.371, index)
		assert.Equal(t, CategoryModerate, category)
		assert.False(t, fellBack)
	})

	t.Run("invalid weights fall back to unweighted mean", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CrimeWeight = 0.1
		cfg.BlightWeight = 0.1
		cfg.EmergencyResponseWeight = 0.1
		cfg.AirQualityWeight = 0.1
		cfg.HeatExposureWeight = 0.05
		cfg.TrafficSpeedWeight = 0.05 // sums to 0.5

		index, category, fellBack := CompositeIndex(exampleScores, cfg)
		assert.True(t, fellBack)
		// (0.36 + 0.158 + 0.5 + 0.4 + 0.3 + 0.45) / 6 = 0.361
		assert.Equal(t, 0.361, index)
		assert.Equal(t, CategoryModerate, category)
	})

	t.Run("tolerance admits small floating point drift", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CrimeWeight += 0.005 // sum 1.005, inside ±0.01

		_, _, fellBack := CompositeIndex(exampleScores, cfg)
		assert.False(t, fellBack)
	})

	t.Run("idempotent", func(t *testing.T) {
		cfg := DefaultConfig()
		i1, c1, _ := CompositeIndex(exampleScores, cfg)
		i2, c2, _ := CompositeIndex(exampleScores, cfg)
		assert.Equal(t, i1, i2)
		assert.Equal(t, c1, c2)
	})
}

func TestCategoryForIndex(t *testing.T) {
	cases := []struct {
		index float64
		want  Category
	}{
		{0.0, CategoryLow},
		{0.299, CategoryLow},
		{0.3, CategoryModerate},
		{0.499, CategoryModerate},
		{0.5, CategoryHigh},
		{0.699, CategoryHigh},
		{0.7, CategoryCritical},
		{1.0, CategoryCritical},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CategoryForIndex(tc.index), "index %v", tc.index)
	}
}

func TestCategoryRank(t *testing.T) {
	assert.Equal(t, 0, CategoryLow.Rank())
	assert.Equal(t, 3, CategoryCritical.Rank())
	assert.Equal(t, -1, Category("bogus").Rank())
	for i := 1; i < len(Categories); i++ {
		assert.Greater(t, Categories[i].Rank(), Categories[i-1].Rank())
	}
}

// Category monotonicity: raising a single factor score never lowers the
// composite index and never moves the category backward.
func TestCompositeIndex_Monotonicity(t *testing.T) {
	cfg := DefaultConfig()
	scores := exampleScores

	prevIndex := -1.0
	prevRank := -1
	for crime := 0.0; crime <= 1.0; crime += 0.05 {
		scores.Crime = crime
		index, category, _ := CompositeIndex(scores, cfg)
		assert.GreaterOrEqual(t, index, prevIndex, "crime %v", crime)
		assert.GreaterOrEqual(t, category.Rank(), prevRank, "crime %v", crime)
		prevIndex = index
		prevRank = category.Rank()
	}
}
