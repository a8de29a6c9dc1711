package risk

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/windward/internal/distrib"
	"github.com/aristath/windward/internal/hazard"
	"github.com/aristath/windward/internal/portfolio"
	"github.com/aristath/windward/internal/vulnerability"
)

// FailurePolicy decides what a missing hazard data key aborts.
type FailurePolicy string

const (
	// PolicyIsolate records the failure against the affected assets and
	// continues with the rest of the portfolio.
	PolicyIsolate FailurePolicy = "isolate"
	// PolicyAbort fails the whole calculation on the first unresolved
	// request, rather than producing partial aggregates.
	PolicyAbort FailurePolicy = "abort"
)

// ErrCalculationAborted wraps the failure that aborted a whole run under
// PolicyAbort.
var ErrCalculationAborted = errors.New("portfolio calculation aborted")

// VaR quantiles reported per asset.
const (
	VaRQuantile95 = 0.95
	VaRQuantile99 = 0.99
)

// Params configure one calculation run.
type Params struct {
	Scenario string
	Year     int
	Policy   FailurePolicy
}

// Calculator runs the portfolio risk pipeline: model selection, request
// declaration, batched dispatch, distribution construction, impact
// combination and aggregation. It holds only read-only collaborators and is
// safe for concurrent runs.
type Calculator struct {
	registry   *vulnerability.Registry
	dispatcher *hazard.Dispatcher
	log        zerolog.Logger
}

// NewCalculator creates a calculator.
func NewCalculator(registry *vulnerability.Registry, dispatcher *hazard.Dispatcher, log zerolog.Logger) *Calculator {
	return &Calculator{
		registry:   registry,
		dispatcher: dispatcher,
		log:        log.With().Str("component", "risk_calculator").Logger(),
	}
}

// assetPlan is one (asset, hazard type) unit of work with its selected model
// and declared requests.
type assetPlan struct {
	asset    *portfolio.Asset
	model    vulnerability.Model
	requests []hazard.DataRequest
}

// Run calculates risk measures for every asset in the portfolio.
//
// Per-asset failures (no applicable model, unavailable data, distribution
// errors) are isolated under PolicyIsolate: the affected asset is reported
// failed and every other asset computes normally. Under PolicyAbort the first
// unresolved hazard data request fails the run with ErrCalculationAborted.
func (c *Calculator) Run(ctx context.Context, p *portfolio.Portfolio, params Params) (*PortfolioReport, error) {
	if params.Policy == "" {
		params.Policy = PolicyIsolate
	}

	report := &PortfolioReport{
		RunID:    uuid.New().String(),
		Scenario: params.Scenario,
		Year:     params.Year,
	}

	// Phase 1: model selection and request declaration, no I/O.
	plans := make(map[string][]assetPlan, len(p.Assets))
	selectionErr := make(map[string]error)
	var allRequests []hazard.DataRequest

	for i := range p.Assets {
		asset := &p.Assets[i]
		hazardTypes := c.registry.HazardTypes(asset.Type)
		if len(hazardTypes) == 0 {
			selectionErr[asset.ID] = fmt.Errorf("%w: asset type %s", vulnerability.ErrNoApplicableModel, asset.Type)
			continue
		}
		for _, ht := range hazardTypes {
			model, err := c.registry.Select(asset, ht)
			if err != nil {
				selectionErr[asset.ID] = err
				break
			}
			requests := model.DataRequests(asset, params.Scenario, params.Year)
			plans[asset.ID] = append(plans[asset.ID], assetPlan{asset: asset, model: model, requests: requests})
			allRequests = append(allRequests, requests...)
		}
	}

	c.log.Info().
		Int("assets", len(p.Assets)).
		Int("requests", len(allRequests)).
		Str("scenario", params.Scenario).
		Int("year", params.Year).
		Msg("Dispatching hazard data for portfolio")

	// Phase 2: one batched, deduplicated dispatch for the whole portfolio.
	results := c.dispatcher.Fetch(ctx, allRequests)

	if params.Policy == PolicyAbort {
		for _, res := range results {
			if res.Failed() {
				return nil, fmt.Errorf("%w: %v", ErrCalculationAborted, res.Err)
			}
		}
	}

	// Phase 3: per-asset distribution construction and aggregation.
	for i := range p.Assets {
		asset := &p.Assets[i]
		if err, failed := selectionErr[asset.ID]; failed {
			report.Assets = append(report.Assets, failedReport(asset, err))
			continue
		}
		assetReport, err := c.assetMeasures(asset, plans[asset.ID], results)
		if err != nil {
			c.log.Warn().Err(err).Str("asset_id", asset.ID).Msg("Asset calculation failed")
			report.Assets = append(report.Assets, failedReport(asset, err))
			continue
		}
		report.Assets = append(report.Assets, *assetReport)
	}

	for _, ar := range report.Assets {
		if ar.Success {
			report.Succeeded++
			report.TotalAEL += ar.AEL
		} else {
			report.Failed++
		}
	}

	c.log.Info().
		Str("run_id", report.RunID).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Float64("total_ael", report.TotalAEL).
		Msg("Portfolio calculation complete")

	return report, nil
}

func failedReport(asset *portfolio.Asset, err error) AssetReport {
	return AssetReport{AssetID: asset.ID, Success: false, Error: err.Error()}
}

// assetMeasures builds the impact distributions for all hazard types
// affecting one asset and aggregates them into risk measures.
func (c *Calculator) assetMeasures(asset *portfolio.Asset, plans []assetPlan, results map[hazard.DataRequest]hazard.Result) (*AssetReport, error) {
	report := &AssetReport{AssetID: asset.ID, Success: true}

	var losses []LossDistribution
	for _, plan := range plans {
		impact, err := c.buildImpact(asset, plan, results)
		if err != nil {
			return nil, fmt.Errorf("hazard %s: %w", plan.model.HazardType(), err)
		}

		loss := NewLossDistribution(impact, asset.Value)
		losses = append(losses, loss)
		report.ByHazard = append(report.ByHazard, HazardMeasures{
			Hazard: plan.model.HazardType(),
			AEL:    loss.Mean(),
			StdDev: loss.StdDev(),
		})
		report.AEL += loss.Mean()
	}

	// aggregate loss across independent hazard types
	agg := losses[0]
	for _, l := range losses[1:] {
		agg = Convolve(agg, l)
	}
	report.StdDev = agg.StdDev()
	report.VaR95 = agg.VaR(VaRQuantile95)
	report.VaR99 = agg.VaR(VaRQuantile99)

	for _, threshold := range ExceedanceThresholds(losses) {
		report.OEP = append(report.OEP, CurvePoint{Loss: threshold, Probability: OEP(losses, threshold)})
		// the aggregate is already convolved; read AEP off its CDF
		report.AEP = append(report.AEP, CurvePoint{Loss: threshold, Probability: 1 - agg.CDF(threshold)})
	}

	return report, nil
}

// buildImpact resolves the plan's responses and runs the model's
// distribution construction.
func (c *Calculator) buildImpact(asset *portfolio.Asset, plan assetPlan, results map[hazard.DataRequest]hazard.Result) (*distrib.ImpactDistrib, error) {
	responses := make([]*hazard.DataResponse, len(plan.requests))
	for i, req := range plan.requests {
		res, ok := results[req]
		if !ok {
			return nil, fmt.Errorf("%w: %s: request was never dispatched", hazard.ErrDataUnavailable, req)
		}
		if res.Failed() {
			return nil, res.Err
		}
		responses[i] = res.Response
	}

	switch model := plan.model.(type) {
	case vulnerability.ImpactModel:
		return model.Impact(asset, responses)
	case vulnerability.AcuteModel:
		event, vuln, err := model.Distributions(asset, responses)
		if err != nil {
			return nil, err
		}
		return distrib.Combine(event, vuln)
	default:
		return nil, fmt.Errorf("model %T implements neither capability", plan.model)
	}
}
