package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/cambitax/backend/src/logger"
	"github.com/username/cambitax/backend/src/models"
)

// ErrRateUnavailable means no PTAX quote was published for the requested date or
// any prior day inside the lookback window.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

const isoDateFormat = "2006-01-02"

// ptaxDayResponse mirrors the BCB Olinda "CotacaoDolarDia" payload. An empty
// value array means no quote was published for that date (weekend/holiday).
type ptaxDayResponse struct {
	Value []struct {
		CotacaoCompra   float64 `json:"cotacaoCompra"`
		CotacaoVenda    float64 `json:"cotacaoVenda"`
		DataHoraCotacao string  `json:"dataHoraCotacao"`
	} `json:"value"`
}

// Resolver looks up official PTAX buy/sell quotes by calendar date, falling back
// to the nearest prior business day within the lookback window. Resolved quotes
// are cached under the originally requested date, so repeated lookups are O(1).
// Each Resolver owns its cache; independent calculation runs can call Flush.
type Resolver struct {
	baseURL      string
	client       *http.Client
	lookbackDays int
	cache        *cache.Cache
}

// NewResolver builds a resolver against the given PTAX OData base URL. The
// client must carry a sensible timeout; an unreachable source should fail fast,
// not hang a calculation.
func NewResolver(baseURL string, client *http.Client, lookbackDays int) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if lookbackDays < 1 {
		lookbackDays = 7
	}
	return &Resolver{
		baseURL:      baseURL,
		client:       client,
		lookbackDays: lookbackDays,
		cache:        cache.New(cache.NoExpiration, 0),
	}
}

// Resolve returns the buy/sell quotes applicable to the given date. Dates with
// no published quote fall back day by day, up to lookbackDays attempts in total.
// Transport or decode failures abort the resolution immediately; the fallback
// loop is strictly for "no quote published on this day".
func (r *Resolver) Resolve(ctx context.Context, date time.Time) (models.Rate, error) {
	key := date.UTC().Format(isoDateFormat)
	if cached, found := r.cache.Get(key); found {
		return cached.(models.Rate), nil
	}

	search := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	for i := 0; i < r.lookbackDays; i++ {
		rate, found, err := r.fetchDay(ctx, search)
		if err != nil {
			return models.Rate{}, err
		}
		if found {
			// Cache under the requested date, not the date actually found.
			r.cache.Set(key, rate, cache.NoExpiration)
			if logger.L != nil {
				logger.L.Debug("PTAX quote resolved", "requestedDate", key, "quoteDate", search.Format(isoDateFormat), "buy", rate.Buy, "sell", rate.Sell)
			}
			return rate, nil
		}
		search = search.AddDate(0, 0, -1)
	}

	return models.Rate{}, fmt.Errorf("%w: no PTAX quote for %s or the %d preceding days", ErrRateUnavailable, key, r.lookbackDays-1)
}

// fetchDay queries the PTAX source for one exact date. found=false with a nil
// error is the expected "nothing published" case (HTTP 404 or empty value set).
func (r *Resolver) fetchDay(ctx context.Context, day time.Time) (models.Rate, bool, error) {
	url := fmt.Sprintf("%s/CotacaoDolarDia(dataCotacao=@dataCotacao)?@dataCotacao='%s'&$format=json",
		r.baseURL, day.Format("01-02-2006"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Rate{}, false, fmt.Errorf("building PTAX request for %s: %w", day.Format(isoDateFormat), err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return models.Rate{}, false, fmt.Errorf("querying PTAX source for %s: %w", day.Format(isoDateFormat), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.Rate{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return models.Rate{}, false, fmt.Errorf("PTAX source returned status %d for %s", resp.StatusCode, day.Format(isoDateFormat))
	}

	var payload ptaxDayResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return models.Rate{}, false, fmt.Errorf("decoding PTAX response for %s: %w", day.Format(isoDateFormat), err)
	}
	if len(payload.Value) == 0 {
		return models.Rate{}, false, nil
	}

	quote := payload.Value[0]
	return models.Rate{Buy: quote.CotacaoCompra, Sell: quote.CotacaoVenda}, true, nil
}

// Prefetch resolves quotes for a set of dates concurrently. Each date's
// resolution is independent and idempotent (cache-checked first), so the
// lookups fan out; the first error observed is returned.
func (r *Resolver) Prefetch(ctx context.Context, dates []time.Time) error {
	unique := make(map[string]time.Time, len(dates))
	for _, d := range dates {
		key := d.UTC().Format(isoDateFormat)
		if _, cached := r.cache.Get(key); cached {
			continue
		}
		unique[key] = d
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	for _, d := range unique {
		wg.Add(1)
		go func(d time.Time) {
			defer wg.Done()
			if _, err := r.Resolve(ctx, d); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(d)
	}
	wg.Wait()
	return firstErr
}

// Flush empties the quote cache so the next run resolves fresh.
func (r *Resolver) Flush() {
	r.cache.Flush()
}
