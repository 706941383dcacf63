package api

// Route constants for the API endpoints

const (
	// Health endpoints
	PingEndpoint = "/ping" // Health check endpoint

	// Circuit endpoints
	CircuitURLParam  = "circuitId" // URL parameter for circuit ID
	CircuitsEndpoint = "/circuits" // GET: List registered circuits
	// GET: Get circuit metadata
	CircuitEndpoint = CircuitsEndpoint + "/{" + CircuitURLParam + "}"

	// Metrics endpoints
	StatsEndpoint   = "/stats"         // GET: Proof timing summary
	HistoryEndpoint = "/stats/history" // GET: Recent proof samples
)

// LogExcludedPrefixes defines URL prefixes to exclude from request logging
var LogExcludedPrefixes = []string{
	PingEndpoint,
}
