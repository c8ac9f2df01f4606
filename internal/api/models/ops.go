package models

// Health represents the liveness of the console.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus reports the console and the circuit state of every admin
// backend endpoint it calls.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Loading   bool             `json:"loading"`
	Joined    int64            `json:"joinedRefreshes"`
	Endpoints []EndpointStatus `json:"endpoints"`
}

// EndpointStatus represents one backend endpoint's circuit breaker.
type EndpointStatus struct {
	Endpoint            string       `json:"endpoint"`
	Status              HealthStatus `json:"status"`
	CircuitState        string       `json:"circuitState"`
	ConsecutiveFailures uint32       `json:"consecutiveFailures"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	Message             *string      `json:"message,omitempty"`
}
