package vulnerability

import (
	"testing"

	"github.com/aristath/windward/internal/hazard"
	"github.com/aristath/windward/internal/portfolio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SelectFirstMatch(t *testing.T) {
	preferred := NewRealEstateRiverineInundationModel()
	fallback := NewRealEstateRiverineInundationModel()
	registry := NewRegistry(preferred, fallback)

	asset := &portfolio.Asset{ID: "a1", Type: portfolio.AssetTypeRealEstate}

	selected, err := registry.Select(asset, hazard.RiverineInundation)
	require.NoError(t, err)
	assert.Same(t, preferred, selected, "registration order must break ties deterministically")

	candidates := registry.Candidates(hazard.RiverineInundation, portfolio.AssetTypeRealEstate)
	require.Len(t, candidates, 2)
	assert.Same(t, preferred, candidates[0])
}

func TestRegistry_NoApplicableModel(t *testing.T) {
	registry := NewRegistry(NewRealEstateRiverineInundationModel())

	asset := &portfolio.Asset{ID: "p1", Type: portfolio.AssetTypePowerGenerating}

	_, err := registry.Select(asset, hazard.RiverineInundation)
	assert.ErrorIs(t, err, ErrNoApplicableModel)

	_, err = registry.Select(&portfolio.Asset{Type: portfolio.AssetTypeRealEstate}, hazard.Drought)
	assert.ErrorIs(t, err, ErrNoApplicableModel)
}

func TestRegistry_HazardTypes(t *testing.T) {
	registry := NewRegistry(
		NewRealEstateRiverineInundationModel(),
		NewRealEstateCoastalInundationModel(),
		NewPowerGeneratingInundationModel(),
	)

	types := registry.HazardTypes(portfolio.AssetTypeRealEstate)
	assert.Equal(t, []hazard.Type{hazard.CoastalInundation, hazard.RiverineInundation}, types)

	types = registry.HazardTypes(portfolio.AssetTypePowerGenerating)
	assert.Equal(t, []hazard.Type{hazard.RiverineInundation}, types)
}
