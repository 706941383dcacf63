package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// circuitList returns the metadata of every registered circuit.
// GET /circuits
func (a *API) circuitList(w http.ResponseWriter, _ *http.Request) {
	httpWriteJSON(w, a.registry.MetadataList())
}

// circuitInfo returns the metadata of a single circuit by its ID.
// GET /circuits/{circuitId}
func (a *API) circuitInfo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, CircuitURLParam)
	if id == "" {
		ErrMalformedParam.Withf("missing circuit ID").Write(w)
		return
	}
	info, ok := a.registry.Info(id)
	if !ok {
		ErrCircuitNotFound.Withf("%s", id).Write(w)
		return
	}
	httpWriteJSON(w, info)
}
