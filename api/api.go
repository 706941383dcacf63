// Package api exposes the node's circuit registry and proof metrics over a
// small HTTP JSON interface.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/omron-net/omron-node/circuits"
	"github.com/omron-net/omron-node/log"
	"github.com/omron-net/omron-node/metrics"
)

const (
	maxRequestBodyLog = 512 // Maximum length of request body to log
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host     string
	Port     int
	Registry *circuits.Registry
	Tracker  *metrics.Tracker
	Store    *metrics.Store // Optional: persisted sample history
}

// API type represents the API HTTP server.
type API struct {
	router   *chi.Mux
	registry *circuits.Registry
	tracker  *metrics.Tracker
	store    *metrics.Store
}

// newAPI builds the API instance and its router without starting a server.
func newAPI(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Registry == nil {
		return nil, fmt.Errorf("missing circuit registry")
	}
	a := &API{
		registry: conf.Registry,
		tracker:  conf.Tracker,
		store:    conf.Store,
	}
	a.initRouter()
	return a, nil
}

// New creates a new API instance with the given configuration and starts
// the HTTP server.
func New(conf *APIConfig) (*API, error) {
	a, err := newAPI(conf)
	if err != nil {
		return nil, err
	}
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", CircuitsEndpoint, "method", "GET")
	a.router.Get(CircuitsEndpoint, a.circuitList)
	log.Infow("register handler", "endpoint", CircuitEndpoint, "method", "GET")
	a.router.Get(CircuitEndpoint, a.circuitInfo)
	log.Infow("register handler", "endpoint", StatsEndpoint, "method", "GET")
	a.router.Get(StatsEndpoint, a.stats)
	log.Infow("register handler", "endpoint", HistoryEndpoint, "method", "GET")
	a.router.Get(HistoryEndpoint, a.statsHistory)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(loggingMiddleware(maxRequestBodyLog))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.Timeout(30 * time.Second))

	a.registerHandlers()
}
