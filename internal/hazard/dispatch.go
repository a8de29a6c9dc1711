package hazard

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// DataProvider is the external hazard data boundary. Implementations must be
// deterministic for identical request keys and must populate Units on every
// response. A provider receives one call per request group; requests within a
// call share hazard type, indicator, scenario and year.
type DataProvider interface {
	GetHazardData(ctx context.Context, requests []DataRequest) (map[DataRequest]DataResponse, error)
}

// DefaultConcurrency is the default number of provider calls in flight.
const DefaultConcurrency = 4

// Dispatcher deduplicates hazard data requests, groups them by data source and
// fans out one provider call per group. Responses are redistributed by request
// key, never by position, so completion order is irrelevant.
type Dispatcher struct {
	provider    DataProvider
	concurrency int
	log         zerolog.Logger
}

// NewDispatcher creates a dispatcher. Concurrency values below 1 fall back to
// DefaultConcurrency.
func NewDispatcher(provider DataProvider, concurrency int, log zerolog.Logger) *Dispatcher {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Dispatcher{
		provider:    provider,
		concurrency: concurrency,
		log:         log.With().Str("component", "hazard_dispatch").Logger(),
	}
}

// Fetch resolves all requests against the provider. Duplicate keys are fetched
// once; every input key is present in the returned map, as a successful
// response or as a failure wrapping ErrDataUnavailable. A provider failure for
// one group does not abort retrieval of other groups.
func (d *Dispatcher) Fetch(ctx context.Context, requests []DataRequest) map[DataRequest]Result {
	groups := make(map[GroupKey][]DataRequest)
	seen := make(map[DataRequest]struct{}, len(requests))
	for _, req := range requests {
		if _, dup := seen[req]; dup {
			continue
		}
		seen[req] = struct{}{}
		key := req.Group()
		groups[key] = append(groups[key], req)
	}

	d.log.Debug().
		Int("requests", len(requests)).
		Int("unique", len(seen)).
		Int("groups", len(groups)).
		Msg("Dispatching hazard data requests")

	results := make(map[DataRequest]Result, len(seen))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, d.concurrency)

	for key, batch := range groups {
		wg.Add(1)
		go func(key GroupKey, batch []DataRequest) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			responses, err := d.provider.GetHazardData(ctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				d.log.Error().
					Err(err).
					Str("hazard", string(key.Hazard)).
					Str("indicator", key.Indicator).
					Str("scenario", key.Scenario).
					Int("year", key.Year).
					Int("batch_size", len(batch)).
					Msg("Hazard data retrieval failed for group")
				for _, req := range batch {
					results[req] = Result{Err: fmt.Errorf("%w: %s: %v", ErrDataUnavailable, req, err)}
				}
				return
			}
			for _, req := range batch {
				resp, ok := responses[req]
				if !ok {
					results[req] = Result{Err: fmt.Errorf("%w: %s: provider returned no response", ErrDataUnavailable, req)}
					continue
				}
				results[req] = Result{Response: &resp}
			}
		}(key, batch)
	}
	wg.Wait()

	return results
}
