package metrics

import "strconv"

// RecordRateLimitDecision counts allowed and denied hits per route.
func RecordRateLimitDecision(route string, allowed bool) {
	count(RateLimitDecisionsTotal, 1, map[string]string{
		"route":    route,
		"decision": outcome(allowed, "allowed", "denied"),
	})
}

// RecordRateLimitStoreError counts hits that could not reach the counter store.
func RecordRateLimitStoreError(route string) {
	count(RateLimitStoreErrorsTotal, 1, map[string]string{"route": route})
}

// RecordSweep records one sweep pass and how many expired records it dropped.
func RecordSweep(removed int, ok bool) {
	count(RateLimitSweepsTotal, 1, map[string]string{"status": strconv.FormatBool(ok)})
	if removed > 0 {
		count(RateLimitSweepRemoved, float64(removed), nil)
	}
}

// SetTrackedKeys reports how many records the store currently holds.
func SetTrackedKeys(n int) {
	gauge(RateLimitTrackedKeys, float64(n), nil)
}

// RecordSecurityRejection counts requests stopped by the gate.
func RecordSecurityRejection(reason string) {
	count(SecurityRejectionsTotal, 1, map[string]string{"reason": reason})
}

// RecordValidationFailure counts rejected payloads per endpoint.
func RecordValidationFailure(endpoint string) {
	count(ValidationFailuresTotal, 1, map[string]string{"endpoint": endpoint})
}
