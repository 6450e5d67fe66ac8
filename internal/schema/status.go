package schema

// HealthStatus is the backend's /health report
type HealthStatus struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Version   string  `json:"version"`
	Uptime    float64 `json:"uptime"`
}

// CacheStatus is the backend's metadata cache report
type CacheStatus struct {
	LastUpdated      string `json:"last_updated"`
	TotalItems       int    `json:"total_items"`
	TablesCached     int    `json:"tables_cached"`
	ViewsCached      int    `json:"views_cached"`
	EnumsCached      int    `json:"enums_cached"`
	FunctionsCached  int    `json:"functions_cached"`
	ProceduresCached int    `json:"procedures_cached"`
	TriggersCached   int    `json:"triggers_cached"`
}

// ClearCacheResult is returned after asking the backend to drop its cache
type ClearCacheResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
