package api

import (
	"net/http"
	"strconv"

	"github.com/omron-net/omron-node/metrics"
)

const defaultHistoryLimit = 100

// stats returns the proof timing summary over the tracker's rolling window.
// GET /stats
func (a *API) stats(w http.ResponseWriter, _ *http.Request) {
	if a.tracker == nil {
		httpWriteJSON(w, metrics.Summary{})
		return
	}
	httpWriteJSON(w, a.tracker.Summary())
}

// statsHistory returns persisted proof samples, newest first. The optional
// "limit" query parameter caps the number of samples returned.
// GET /stats/history?limit=N
func (a *API) statsHistory(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		ErrMetricsUnavailable.Write(w)
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ErrMalformedParam.Withf("limit must be a positive integer").Write(w)
			return
		}
		limit = n
	}
	samples, err := a.store.History(limit)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if samples == nil {
		samples = []metrics.Sample{}
	}
	httpWriteJSON(w, samples)
}
