package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is the persisted shape of an event: header fields as columns,
// variant payload as jsonb keyed by the EventType discriminator.
type EventRecord struct {
	ID           snowflake.ID   `json:"id" gorm:"primaryKey"`
	SubmissionID snowflake.ID   `json:"submission_id" gorm:"not null;index"`
	UserID       *snowflake.ID  `json:"user_id,omitempty"`
	EventType    EventType      `json:"event_type" gorm:"type:text;not null"`
	Payload      datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	Created      time.Time      `json:"created" gorm:"not null;index"`
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "submission_events" }

// NewEventRecord encodes an event into its persisted shape.
func NewEventRecord(e Event) (*EventRecord, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", e.EventType(), err)
	}

	h := e.Header()
	return &EventRecord{
		ID:           h.ID,
		SubmissionID: h.SubmissionID,
		UserID:       h.UserID,
		EventType:    e.EventType(),
		Payload:      datatypes.JSON(payload),
		Created:      h.Created,
	}, nil
}

// Decode rebuilds the typed event variant from a persisted record.
func (r *EventRecord) Decode() (Event, error) {
	header := EventHeader{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		UserID:       r.UserID,
		Created:      r.Created,
	}

	switch r.EventType {
	case EventTypeAntivirusCheck:
		var e AntivirusCheckEvent
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, decodeErr(r, err)
		}
		e.EventHeader = header
		return e, nil
	case EventTypeAntivirusResult:
		var e AntivirusResultEvent
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, decodeErr(r, err)
		}
		e.EventHeader = header
		return e, nil
	case EventTypeCheckSplitterValidation:
		var e CheckSplitterValidationEvent
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, decodeErr(r, err)
		}
		e.EventHeader = header
		return e, nil
	case EventTypeProducerValidation:
		var e ProducerValidationEvent
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, decodeErr(r, err)
		}
		e.EventHeader = header
		return e, nil
	case EventTypeRegistrationValidation:
		var e RegistrationValidationEvent
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, decodeErr(r, err)
		}
		e.EventHeader = header
		return e, nil
	case EventTypeBrandValidation:
		var e BrandValidationEvent
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, decodeErr(r, err)
		}
		e.EventHeader = header
		return e, nil
	case EventTypePartnerValidation:
		var e PartnerValidationEvent
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, decodeErr(r, err)
		}
		e.EventHeader = header
		return e, nil
	case EventTypeSubmitted:
		var e SubmittedEvent
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, decodeErr(r, err)
		}
		e.EventHeader = header
		return e, nil
	case EventTypeRegulatorPomDecision:
		var e RegulatorPomDecisionEvent
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, decodeErr(r, err)
		}
		e.EventHeader = header
		return e, nil
	case EventTypeRegulatorRegistrationDecision:
		var e RegulatorRegistrationDecisionEvent
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, decodeErr(r, err)
		}
		e.EventHeader = header
		return e, nil
	case EventTypeRegulatorOrgRegistrationDecision:
		var e RegulatorOrgRegistrationDecisionEvent
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, decodeErr(r, err)
		}
		e.EventHeader = header
		return e, nil
	case EventTypeFeePayment:
		var e FeePaymentEvent
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, decodeErr(r, err)
		}
		e.EventHeader = header
		return e, nil
	case EventTypeApplicationSubmitted:
		var e ApplicationSubmittedEvent
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, decodeErr(r, err)
		}
		e.EventHeader = header
		return e, nil
	case EventTypeResubmissionReferenceCreated:
		var e ResubmissionReferenceCreatedEvent
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, decodeErr(r, err)
		}
		e.EventHeader = header
		return e, nil
	case EventTypeResubmissionApplicationSubmittedCreated:
		return ResubmissionApplicationSubmittedCreatedEvent{EventHeader: header}, nil
	case EventTypeResubmissionFeeViewCreated:
		return ResubmissionFeeViewCreatedEvent{EventHeader: header}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", r.EventType)
	}
}

func decodeErr(r *EventRecord, err error) error {
	return fmt.Errorf("decode %s event %d: %w", r.EventType, r.ID, err)
}
