package relay

type Stage int

const (
	STAGE_RECEIVED Stage = iota
	STAGE_FEE_PAYER_RESOLVED
	STAGE_POLICY_VALIDATED
	STAGE_SIGNED
	STAGE_BROADCASTING
	STAGE_CONFIRMED
	STAGE_FAILED
	STAGE_REJECTED
	STAGE_CACHING_AND_FORWARDING
)

func (s Stage) String() string {
	switch s {
	case STAGE_RECEIVED:
		return "RECEIVED"
	case STAGE_FEE_PAYER_RESOLVED:
		return "FEE_PAYER_RESOLVED"
	case STAGE_POLICY_VALIDATED:
		return "POLICY_VALIDATED"
	case STAGE_SIGNED:
		return "SIGNED"
	case STAGE_BROADCASTING:
		return "BROADCASTING"
	case STAGE_CONFIRMED:
		return "CONFIRMED"
	case STAGE_FAILED:
		return "FAILED"
	case STAGE_REJECTED:
		return "REJECTED"
	case STAGE_CACHING_AND_FORWARDING:
		return "CACHING_AND_FORWARDING"
	default:
		return "UNKNOWN"
	}
}

// Terminal is true for the stages that end the caller visible part of a request.
func (s Stage) Terminal() bool {
	return s == STAGE_CONFIRMED || s == STAGE_FAILED || s == STAGE_REJECTED
}

// Recorder observes stage transitions, for metrics.
type Recorder interface {
	Observe(stage Stage)
}

type nopRecorder struct{}

func (nopRecorder) Observe(stage Stage) {}
