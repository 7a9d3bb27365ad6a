package handlers

import (
	"net/http"
	"time"

	"github.com/ferreteria/storefront/app"
	"github.com/ferreteria/storefront/utils"
)

// ExchangeRateView is the current rate with its age
type ExchangeRateView struct {
	Rate      float64 `json:"rate"`
	FetchedAt string  `json:"fetchedAt"`
	Stale     bool    `json:"stale"`
	MaxAge    string  `json:"maxAge"`
}

// ExchangeRate handles GET /api/v1/exchange-rate. A stale rate is still
// returned, flagged, so the page can tell the buyer.
func ExchangeRate(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rate, err := deps.Rates.GetCurrent(r.Context())
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteOK(w, ExchangeRateView{
			Rate:      rate.Value,
			FetchedAt: rate.FetchedAt.UTC().Format(time.RFC3339),
			Stale:     rate.Stale,
			MaxAge:    deps.Rates.TTL().String(),
		})
	}
}

// RefreshExchangeRate handles POST /api/v1/admin/exchange-rate/refresh. The
// cached rate is dropped and fetched again.
func RefreshExchangeRate(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Rates.Invalidate()
		ExchangeRate(deps)(w, r)
	}
}
