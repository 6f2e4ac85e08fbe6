package mocks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataGenerator_Generate(t *testing.T) {
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.Count = 100

	bars := gen.Generate(config)
	require.Len(t, bars, 100)

	for i, bar := range bars {
		assert.Equal(t, config.Symbol, bar.Symbol)
		assert.NoError(t, bar.Validate(), "bar %d must be valid", i)

		if i > 0 {
			assert.Equal(t, 24*time.Hour, bar.Date.Sub(bars[i-1].Date))
		}
	}
}

func TestDataGenerator_Reproducibility(t *testing.T) {
	config := DefaultConfig()
	config.Count = 50

	first := NewDataGenerator(7).Generate(config)
	second := NewDataGenerator(7).Generate(config)
	assert.Equal(t, first, second)

	other := NewDataGenerator(8).Generate(config)
	assert.NotEqual(t, first, other)
}

func TestBarsFromCloses(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := BarsFromCloses("AAA", start, []float64{10, 20, 30})

	require.Len(t, bars, 3)
	assert.Equal(t, 30.0, bars[2].Close)
	assert.Equal(t, start.AddDate(0, 0, 2), bars[2].Date)

	for _, bar := range bars {
		assert.NoError(t, bar.Validate())
	}
}

func TestTrendScenario(t *testing.T) {
	closes := TrendScenario()

	require.Len(t, closes, 180)
	assert.Equal(t, 100.0, closes[0])
	assert.Equal(t, 219.0, closes[119])
	assert.InDelta(t, 100.0, closes[179], 1e-9)
}
