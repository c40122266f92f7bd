package payment

// Outcome distinguishes the non-error ways a verification can end.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeBusy             Outcome = "busy"
)

// Envelope statuses.
const (
	EnvelopeSuccess = "success"
	EnvelopeError   = "error"
)

// VerifyResult is the normalized envelope returned to callers. It is what
// the verification cache stores, so a replay returns exactly what the first
// caller saw.
type VerifyResult struct {
	Status  string   `json:"status" msgpack:"status"`
	Message string   `json:"message" msgpack:"message"`
	Data    *Details `json:"data,omitempty" msgpack:"data"`

	Outcome Outcome `json:"-" msgpack:"outcome"`
	// Replayed is set when the envelope came from the cache.
	Replayed bool `json:"-" msgpack:"-"`
}

// NewSuccessResult wraps freshly verified details.
func NewSuccessResult(d Details) *VerifyResult {
	return &VerifyResult{
		Status:  EnvelopeSuccess,
		Message: "payment verified",
		Data:    &d,
		Outcome: OutcomeSuccess,
	}
}

// NewAlreadyProcessedResult wraps details of a receipt found in the ledger.
func NewAlreadyProcessedResult(d Details) *VerifyResult {
	return &VerifyResult{
		Status:  EnvelopeSuccess,
		Message: "payment already processed",
		Data:    &d,
		Outcome: OutcomeAlreadyProcessed,
	}
}

// NewBusyResult tells the caller a concurrent attempt holds the payer/amount
// slot and it should retry later.
func NewBusyResult() *VerifyResult {
	return &VerifyResult{
		Status:  EnvelopeError,
		Message: "payment is being processed, please retry shortly",
		Outcome: OutcomeBusy,
	}
}
