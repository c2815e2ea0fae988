package domain

// WithHeader returns a copy of the event with its header replaced. Events are
// immutable values; identity and timestamps are stamped exactly once, at
// append time.
func WithHeader(e Event, h EventHeader) Event {
	switch v := e.(type) {
	case AntivirusCheckEvent:
		v.EventHeader = h
		return v
	case AntivirusResultEvent:
		v.EventHeader = h
		return v
	case CheckSplitterValidationEvent:
		v.EventHeader = h
		return v
	case ProducerValidationEvent:
		v.EventHeader = h
		return v
	case RegistrationValidationEvent:
		v.EventHeader = h
		return v
	case BrandValidationEvent:
		v.EventHeader = h
		return v
	case PartnerValidationEvent:
		v.EventHeader = h
		return v
	case SubmittedEvent:
		v.EventHeader = h
		return v
	case RegulatorPomDecisionEvent:
		v.EventHeader = h
		return v
	case RegulatorRegistrationDecisionEvent:
		v.EventHeader = h
		return v
	case RegulatorOrgRegistrationDecisionEvent:
		v.EventHeader = h
		return v
	case FeePaymentEvent:
		v.EventHeader = h
		return v
	case ApplicationSubmittedEvent:
		v.EventHeader = h
		return v
	case ResubmissionReferenceCreatedEvent:
		v.EventHeader = h
		return v
	case ResubmissionApplicationSubmittedCreatedEvent:
		v.EventHeader = h
		return v
	case ResubmissionFeeViewCreatedEvent:
		v.EventHeader = h
		return v
	default:
		return e
	}
}
