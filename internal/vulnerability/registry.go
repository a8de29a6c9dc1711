package vulnerability

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aristath/windward/internal/hazard"
	"github.com/aristath/windward/internal/portfolio"
)

// ErrNoApplicableModel indicates no registered model matches an asset and
// hazard type.
var ErrNoApplicableModel = errors.New("no applicable vulnerability model")

type registryKey struct {
	hazard    hazard.Type
	assetType portfolio.AssetType
}

// Registry maps (hazard type, asset type) to ordered candidate models, most
// preferred first. It is populated once at configuration time and read-only
// afterwards; selection is deterministic: first registered wins, ties are
// never resolved at random.
type Registry struct {
	models map[registryKey][]Model
}

// NewRegistry builds a registry from models in priority order.
func NewRegistry(models ...Model) *Registry {
	r := &Registry{models: make(map[registryKey][]Model)}
	for _, m := range models {
		for _, at := range m.AssetTypes() {
			key := registryKey{hazard: m.HazardType(), assetType: at}
			r.models[key] = append(r.models[key], m)
		}
	}
	return r
}

// Select returns the highest-priority model registered for the asset's type
// and the hazard type. Returns ErrNoApplicableModel (wrapped) if none match.
func (r *Registry) Select(asset *portfolio.Asset, hazardType hazard.Type) (Model, error) {
	candidates := r.models[registryKey{hazard: hazardType, assetType: asset.Type}]
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: hazard %s, asset type %s", ErrNoApplicableModel, hazardType, asset.Type)
	}
	return candidates[0], nil
}

// Candidates returns all models registered for a hazard and asset type, in
// priority order.
func (r *Registry) Candidates(hazardType hazard.Type, assetType portfolio.AssetType) []Model {
	return append([]Model(nil), r.models[registryKey{hazard: hazardType, assetType: assetType}]...)
}

// HazardTypes returns the distinct hazard types that have at least one model
// registered for the given asset type.
func (r *Registry) HazardTypes(assetType portfolio.AssetType) []hazard.Type {
	seen := make(map[hazard.Type]struct{})
	var out []hazard.Type
	for key := range r.models {
		if key.assetType != assetType {
			continue
		}
		if _, ok := seen[key.hazard]; ok {
			continue
		}
		seen[key.hazard] = struct{}{}
		out = append(out, key.hazard)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
