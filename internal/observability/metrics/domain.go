package metrics

import "time"

// RecordVerification records a completed document lookup.
func RecordVerification(outcome string) {
	if !enabled {
		return
	}
	verificationTotal.WithLabelValues(outcome).Inc()
}

// RecordStaleDiscard records a lookup result that arrived for a document
// no longer selected.
func RecordStaleDiscard() {
	if !enabled {
		return
	}
	staleDiscardTotal.Inc()
}

// CredentialIssue records an issuance transaction by credential type.
func CredentialIssue(credType, status string) {
	if !enabled {
		return
	}
	credentialIssueTotal.WithLabelValues(credType, status).Inc()
}

// CredentialRevoke records a revocation transaction.
func CredentialRevoke(status string) {
	if !enabled {
		return
	}
	credentialRevokeTotal.WithLabelValues(status).Inc()
}

// PinningRequest records a pinning service or gateway request.
func PinningRequest(op, status string) {
	if !enabled {
		return
	}
	pinningTotal.WithLabelValues(op, status).Inc()
}

// RecordLedgerCall records the latency of one contract method.
func RecordLedgerCall(method string, d time.Duration) {
	if !enabled {
		return
	}
	ledgerCallDuration.WithLabelValues(method).Observe(d.Seconds())
}
