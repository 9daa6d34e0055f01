// Package internaldefs holds the metric definitions shared by the
// prometheus and otel exporters so both expose identical names.
package internaldefs

import (
	hmsAuth "github.com/MrEthical07/hmsAuth"
)

// CounterDef binds a MetricID to its exported name and help text.
type CounterDef struct {
	ID   hmsAuth.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram MetricID to its exported name and help
// text.
type HistogramDef struct {
	ID   hmsAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: hmsAuth.MetricLoginSuccess, Name: "hmsauth_login_success_total", Help: "Successful login attempts."},
	{ID: hmsAuth.MetricLoginFailure, Name: "hmsauth_login_failure_total", Help: "Failed login attempts."},
	{ID: hmsAuth.MetricLoginRateLimited, Name: "hmsauth_login_rate_limited_total", Help: "Login attempts rejected by brute-force protection."},
	{ID: hmsAuth.MetricRefreshSuccess, Name: "hmsauth_refresh_success_total", Help: "Successful refresh token rotations."},
	{ID: hmsAuth.MetricRefreshFailure, Name: "hmsauth_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: hmsAuth.MetricRefreshReuseDetected, Name: "hmsauth_refresh_reuse_detected_total", Help: "Refresh token reuses detected (family revocations)."},
	{ID: hmsAuth.MetricValidateSuccess, Name: "hmsauth_validate_success_total", Help: "Access tokens accepted by Validate."},
	{ID: hmsAuth.MetricValidateRejected, Name: "hmsauth_validate_rejected_total", Help: "Access tokens rejected by Validate."},
	{ID: hmsAuth.MetricTokenBlacklisted, Name: "hmsauth_token_blacklisted_total", Help: "Access tokens added to the revocation blacklist."},
	{ID: hmsAuth.MetricLogout, Name: "hmsauth_logout_total", Help: "Single-session logout operations."},
	{ID: hmsAuth.MetricLogoutAll, Name: "hmsauth_logout_all_total", Help: "Logout-all operations."},
	{ID: hmsAuth.MetricRegisterSuccess, Name: "hmsauth_register_success_total", Help: "Successful registrations."},
	{ID: hmsAuth.MetricRegisterDuplicate, Name: "hmsauth_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: hmsAuth.MetricEmailVerified, Name: "hmsauth_email_verified_total", Help: "Successful email verifications."},
	{ID: hmsAuth.MetricPasswordChangeSuccess, Name: "hmsauth_password_change_success_total", Help: "Successful password changes."},
	{ID: hmsAuth.MetricPasswordResetRequest, Name: "hmsauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: hmsAuth.MetricPasswordResetConfirm, Name: "hmsauth_password_reset_confirm_total", Help: "Successful password reset confirmations."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: hmsAuth.MetricValidateLatency, Name: "hmsauth_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// core histogram layout.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is the bound list spelled for instrument names that
// cannot carry dots or plus signs.
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

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form
// Prometheus histograms use.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
