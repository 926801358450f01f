package internaldefs

import (
	"github.com/MrEthical07/shelfauth"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   shelfauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   shelfauth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const (
	AuditDroppedName = "shelfauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

var CounterDefs = []CounterDef{
	{ID: shelfauth.MetricLoginSuccess, Name: "shelfauth_login_success_total", Help: "Logins that produced a session."},
	{ID: shelfauth.MetricLoginFailure, Name: "shelfauth_login_failure_total", Help: "Rejected or failed logins."},
	{ID: shelfauth.MetricLoginRateLimited, Name: "shelfauth_login_rate_limited_total", Help: "Logins refused by the per-IP throttle."},
	{ID: shelfauth.MetricLoginAudienceMismatch, Name: "shelfauth_login_audience_mismatch_total", Help: "ID tokens minted for another client."},
	{ID: shelfauth.MetricRefreshSuccess, Name: "shelfauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: shelfauth.MetricRefreshFailure, Name: "shelfauth_refresh_failure_total", Help: "Rejected or failed refresh rotations."},
	{ID: shelfauth.MetricSessionCreated, Name: "shelfauth_session_created_total", Help: "Sessions issued by login or refresh."},
	{ID: shelfauth.MetricSessionIssueFailure, Name: "shelfauth_session_issue_failure_total", Help: "Infrastructure failures while issuing sessions."},
	{ID: shelfauth.MetricLogout, Name: "shelfauth_logout_total", Help: "Logout calls."},
	{ID: shelfauth.MetricAuthenticateSuccess, Name: "shelfauth_authenticate_success_total", Help: "Accepted access tokens."},
	{ID: shelfauth.MetricAuthenticateFailure, Name: "shelfauth_authenticate_failure_total", Help: "Rejected access tokens."},
	{ID: shelfauth.MetricCacheHit, Name: "shelfauth_cache_hit_total", Help: "Cache-aside hits."},
	{ID: shelfauth.MetricCacheMiss, Name: "shelfauth_cache_miss_total", Help: "Cache-aside misses."},
	{ID: shelfauth.MetricCacheComputeFailure, Name: "shelfauth_cache_compute_failure_total", Help: "Cache-aside compute callbacks that failed."},
	{ID: shelfauth.MetricCacheStoreFailure, Name: "shelfauth_cache_store_failure_total", Help: "Key-value errors absorbed by the cache."},
	{ID: shelfauth.MetricCatalogSearchFailure, Name: "shelfauth_catalog_search_failure_total", Help: "Catalog search upstream failures absorbed as empty pages."},
	{ID: shelfauth.MetricCatalogBookFailure, Name: "shelfauth_catalog_book_failure_total", Help: "Catalog volume upstream failures absorbed as not found."},
}

var HistogramDefs = []HistogramDef{
	{ID: shelfauth.MetricAuthenticateLatency, Name: "shelfauth_authenticate_latency_seconds", Help: "Access-token authentication latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf last, for exporters that
// flatten buckets into separate instruments.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the eight engine buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
