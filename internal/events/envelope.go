package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

const (
	TypeListingCreated           = "ListingCreated"
	TypeListingUpdated           = "ListingUpdated"
	TypeListingDeleted           = "ListingDeleted"
	TypeBookPurchased            = "BookPurchased"
	TypeTransactionStatusChanged = "TransactionStatusChanged"
	TypePickupLocationSet        = "PickupLocationSet"
)

const envelopeVersion = 1

// Event is what the marketplace hands to a publisher. AggregateID is the listing or
// transaction the event belongs to and doubles as the partition key.
type Event struct {
	Type        string
	AggregateID string
	Payload     any
}

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type ListingDeletedPayload struct {
	ListingID string `json:"listing_id"`
	DeletedBy string `json:"deleted_by"`
}

type PurchasePayload struct {
	TransactionID string          `json:"transaction_id"`
	ListingID     string          `json:"listing_id"`
	BuyerID       string          `json:"buyer_id"`
	SellerID      string          `json:"seller_id"`
	Price         decimal.Decimal `json:"price"`
}

type TransactionChangedPayload struct {
	TransactionID  string `json:"transaction_id"`
	Status         string `json:"status"`
	PickupLocation string `json:"pickup_location"`
	ChangedBy      string `json:"changed_by"`
}

func NewEnvelope(ctx context.Context, ev Event, producer string, now time.Time) (Envelope, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", ev.Type, err)
	}

	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Type,
		EventVersion:  envelopeVersion,
		OccurredAt:    now.UTC(),
		Producer:      producer,
		CorrelationID: ev.AggregateID,
		Payload:       payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	return env, nil
}

// UnwrapPayload decodes an envelope payload into its concrete type.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
