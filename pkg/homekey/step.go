package homekey

// Step identifies where in the attestation flow a failure occurred.
type Step int

const (
	// StepBegin draws the attestation exchange secret.
	StepBegin Step = iota

	// StepExchange sends the secret over the device key session.
	StepExchange

	// StepSelect issues control flow and selects the attestation applet.
	StepSelect

	// StepEnvelope1 performs the NFC handover.
	StepEnvelope1

	// StepSession derives the salt and the secure messaging context.
	StepSession

	// StepEnvelope2 sends the encrypted mdoc request.
	StepEnvelope2

	// StepDecode decrypts and checks the mdoc response.
	StepDecode
)

func (s Step) String() string {
	switch s {
	case StepBegin:
		return "begin"
	case StepExchange:
		return "exchange"
	case StepSelect:
		return "select"
	case StepEnvelope1:
		return "envelope-1"
	case StepSession:
		return "session"
	case StepEnvelope2:
		return "envelope-2"
	case StepDecode:
		return "decode"
	default:
		return "unknown"
	}
}
