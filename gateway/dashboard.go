package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
)

// dashboard serves the read-only JSON views over the stats recorder (spec
// §6, ADDED scope): GET .../stats and GET .../policies. The HTML UI and
// the mutable config surface are out of scope per spec §1.
type dashboard struct {
	gw *Gateway
}

func newDashboard(gw *Gateway) http.Handler {
	return &dashboard{gw: gw}
}

func (d *dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimPrefix(r.URL.Path, d.gw.dashboardPrefix) {
	case "/stats":
		d.serveStats(w, r)
	case "/policies":
		d.servePolicies(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (d *dashboard) serveStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.gw.stats.Snapshot())
}

// policyView reports, per configured path pattern, the set of active
// features and an approximate request count derived from the stats ring
// (spec §4.14).
type policyView struct {
	Pattern           string   `json:"pattern"`
	ActiveFeatures    []string `json:"active_features"`
	ApproxRequestCount int     `json:"approx_request_count"`
}

func (d *dashboard) servePolicies(w http.ResponseWriter, r *http.Request) {
	views := make([]policyView, 0, len(d.gw.compiled))
	for _, cf := range d.gw.compiled {
		views = append(views, policyView{
			Pattern:            cf.raw.Pattern,
			ActiveFeatures:     activeFeatureNames(cf),
			ApproxRequestCount: d.gw.stats.approxCountForPath(cf.raw.Pattern),
		})
	}
	writeJSON(w, views)
}

func activeFeatureNames(cf *CompiledFeature) []string {
	var names []string
	if cf.rlConfig != nil {
		names = append(names, "rate_limit")
	}
	if cf.cbConfig != nil {
		names = append(names, "circuit_breaker")
	}
	if cf.retryConfig != nil {
		names = append(names, "retry")
	}
	if cf.timeoutConfig != nil {
		names = append(names, "timeout")
	}
	if cf.cacheConfig != nil {
		names = append(names, "cache")
	}
	if cf.monitoring != nil {
		names = append(names, "monitoring")
	}
	if cf.authConfig != nil {
		names = append(names, "auth")
		if cf.authConfig.RBAC != nil {
			names = append(names, "rbac")
		}
	}
	return names
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
