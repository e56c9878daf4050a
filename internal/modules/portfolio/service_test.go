package portfolio

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/riskd/internal/domain"
)

func TestNormalize(t *testing.T) {
	svc := NewService(zerolog.Nop())

	result, err := svc.Normalize([]Position{
		{Symbol: "aapl ", Weight: 0.3, AssetType: "equity"},
		{Symbol: "MSFT", Weight: 0.3},
		{Symbol: "AAPL", Weight: 0.2, AssetType: "bond"}, // duplicate, aggregated
	})
	require.NoError(t, err)

	require.Len(t, result.Positions, 2)
	assert.True(t, result.WasNormalized)
	assert.InDelta(t, 0.8, result.SumBefore, 1e-12)
	assert.False(t, result.HasShorts)

	// Symbols are upper-cased, duplicates summed, first metadata kept.
	assert.Equal(t, "AAPL", result.Positions[0].Symbol)
	assert.Equal(t, "equity", result.Positions[0].AssetType)
	assert.InDelta(t, 0.5/0.8, result.Positions[0].Weight, 1e-12)
	assert.InDelta(t, 0.3/0.8, result.Positions[1].Weight, 1e-12)

	sum := 0.0
	for _, p := range result.Positions {
		sum += p.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestNormalizeAlreadyNormalized(t *testing.T) {
	svc := NewService(zerolog.Nop())

	result, err := svc.Normalize([]Position{
		{Symbol: "AAPL", Weight: 0.6},
		{Symbol: "MSFT", Weight: 0.4},
	})
	require.NoError(t, err)
	assert.False(t, result.WasNormalized)
	assert.InDelta(t, 1.0, result.SumBefore, 1e-12)
}

func TestNormalizeShorts(t *testing.T) {
	svc := NewService(zerolog.Nop())

	result, err := svc.Normalize([]Position{
		{Symbol: "AAPL", Weight: 1.3},
		{Symbol: "MSFT", Weight: -0.3},
	})
	require.NoError(t, err)
	assert.True(t, result.HasShorts)
	assert.False(t, result.WasNormalized)
}

func TestNormalizeErrors(t *testing.T) {
	svc := NewService(zerolog.Nop())

	_, err := svc.Normalize(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = svc.Normalize([]Position{{Symbol: "AAPL", Weight: 0}})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestFilterFailed(t *testing.T) {
	svc := NewService(zerolog.Nop())
	positions := []Position{
		{Symbol: "AAPL", Weight: 0.5},
		{Symbol: "MSFT", Weight: 0.3},
		{Symbol: "GOOG", Weight: 0.2},
	}

	kept, warnings, err := svc.FilterFailed(positions, []string{"goog"})
	require.NoError(t, err)
	require.Len(t, kept, 2)
	assert.Len(t, warnings, 2)

	// Remaining weights are renormalized to 1.
	assert.InDelta(t, 0.5/0.8, kept[0].Weight, 1e-12)
	assert.InDelta(t, 0.3/0.8, kept[1].Weight, 1e-12)
}

func TestFilterFailedNoOp(t *testing.T) {
	svc := NewService(zerolog.Nop())
	positions := []Position{{Symbol: "AAPL", Weight: 1}}

	kept, warnings, err := svc.FilterFailed(positions, nil)
	require.NoError(t, err)
	assert.Equal(t, positions, kept)
	assert.Empty(t, warnings)

	kept, warnings, err = svc.FilterFailed(positions, []string{"TSLA"})
	require.NoError(t, err)
	assert.Equal(t, positions, kept)
	assert.Empty(t, warnings)
}

func TestFilterFailedAllFailed(t *testing.T) {
	svc := NewService(zerolog.Nop())
	_, _, err := svc.FilterFailed([]Position{{Symbol: "AAPL", Weight: 1}}, []string{"AAPL"})
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestWeightsAndSymbols(t *testing.T) {
	positions := []Position{
		{Symbol: "AAPL", Weight: 0.6},
		{Symbol: "MSFT", Weight: 0.4},
	}
	assert.Equal(t, map[string]float64{"AAPL": 0.6, "MSFT": 0.4}, Weights(positions))
	assert.Equal(t, []string{"AAPL", "MSFT"}, Symbols(positions))
}
