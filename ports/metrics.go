package ports

// Outcome labels reported to a MetricsRecorder
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidNonce       = "invalid_nonce"
	OutcomeInvalidMessage     = "invalid_message"
	OutcomeProvisioningFailed = "provisioning_failed"
	OutcomeRejected           = "rejected"
	OutcomeError              = "error"
)

// MetricsRecorder counts sign-in and session activity
type MetricsRecorder interface {
	SignIn(outcome string)
	AccountCreated()
	SessionExchange(outcome string)
}

// NopRecorder discards all measurements
type NopRecorder struct{}

func (NopRecorder) SignIn(string)          {}
func (NopRecorder) AccountCreated()        {}
func (NopRecorder) SessionExchange(string) {}
