package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/smallbiznis/paybridge/internal/gateway"
)

var errMalformed = errors.New("malformed_event")

// Event is the notification envelope. Resource stays raw until routed.
type Event struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Summary      string          `json:"summary"`
	CreateTime   string          `json:"create_time"`
	Resource     json.RawMessage `json:"resource"`
}

// Resource covers the fields read from capture and checkout order resources.
type Resource struct {
	ID                string                     `json:"id"`
	Status            string                     `json:"status"`
	CustomID          string                     `json:"custom_id"`
	InvoiceID         string                     `json:"invoice_id"`
	Amount            *gateway.Money             `json:"amount"`
	PurchaseUnits     []gateway.PurchaseUnit     `json:"purchase_units"`
	SupplementaryData *gateway.SupplementaryData `json:"supplementary_data"`
}

// Parse decodes the envelope and its resource. An event without an id or
// type is malformed since it cannot be deduplicated or routed.
func Parse(payload []byte) (*Event, *Resource, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, nil, err
	}
	event.ID = strings.TrimSpace(event.ID)
	event.EventType = strings.ToUpper(strings.TrimSpace(event.EventType))
	if event.ID == "" || event.EventType == "" {
		return nil, nil, errMalformed
	}

	resource := &Resource{}
	raw := bytes.TrimSpace(event.Resource)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, resource); err != nil {
			return nil, nil, err
		}
	}
	return &event, resource, nil
}

// GatewayOrderID is the checkout order the resource belongs to, if known.
func (r *Resource) GatewayOrderID() string {
	if r == nil || r.SupplementaryData == nil || r.SupplementaryData.RelatedIDs == nil {
		return ""
	}
	return r.SupplementaryData.RelatedIDs.OrderID
}
