package gateway

import "encoding/json"

const (
	IntentCapture   = "CAPTURE"
	IntentAuthorize = "AUTHORIZE"

	OrderStatusCreated   = "CREATED"
	OrderStatusApproved  = "APPROVED"
	OrderStatusCompleted = "COMPLETED"

	VerificationSuccess = "SUCCESS"
)

type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type ApplicationContext struct {
	BrandName  string `json:"brand_name,omitempty"`
	ReturnURL  string `json:"return_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
	UserAction string `json:"user_action,omitempty"`
}

type PurchaseUnitRequest struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Description string `json:"description,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	InvoiceID   string `json:"invoice_id,omitempty"`
	Amount      Money  `json:"amount"`
}

type CreateOrderRequest struct {
	Intent             string                `json:"intent"`
	PurchaseUnits      []PurchaseUnitRequest `json:"purchase_units"`
	ApplicationContext *ApplicationContext   `json:"application_context,omitempty"`
}

type Order struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Intent        string         `json:"intent,omitempty"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units,omitempty"`
	Links         []Link         `json:"links,omitempty"`
	CreateTime    string         `json:"create_time,omitempty"`
	UpdateTime    string         `json:"update_time,omitempty"`
}

// ApproveURL returns the payer approval link, if present.
func (o *Order) ApproveURL() string {
	if o == nil {
		return ""
	}
	for _, link := range o.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return link.Href
		}
	}
	return ""
}

// FirstCapture returns the first capture of the first purchase unit that has one.
func (o *Order) FirstCapture() *Capture {
	if o == nil {
		return nil
	}
	for _, unit := range o.PurchaseUnits {
		if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
			capture := unit.Payments.Captures[0]
			return &capture
		}
	}
	return nil
}

type PurchaseUnit struct {
	ReferenceID string             `json:"reference_id,omitempty"`
	CustomID    string             `json:"custom_id,omitempty"`
	InvoiceID   string             `json:"invoice_id,omitempty"`
	Amount      *Money             `json:"amount,omitempty"`
	Payments    *PaymentCollection `json:"payments,omitempty"`
}

type PaymentCollection struct {
	Captures       []Capture       `json:"captures,omitempty"`
	Authorizations []Authorization `json:"authorizations,omitempty"`
	Refunds        []Refund        `json:"refunds,omitempty"`
}

type RelatedIDs struct {
	OrderID         string `json:"order_id,omitempty"`
	AuthorizationID string `json:"authorization_id,omitempty"`
	CaptureID       string `json:"capture_id,omitempty"`
}

type SupplementaryData struct {
	RelatedIDs *RelatedIDs `json:"related_ids,omitempty"`
}

type Capture struct {
	ID                string             `json:"id"`
	Status            string             `json:"status"`
	Amount            *Money             `json:"amount,omitempty"`
	CustomID          string             `json:"custom_id,omitempty"`
	InvoiceID         string             `json:"invoice_id,omitempty"`
	FinalCapture      bool               `json:"final_capture,omitempty"`
	SupplementaryData *SupplementaryData `json:"supplementary_data,omitempty"`
	CreateTime        string             `json:"create_time,omitempty"`
	UpdateTime        string             `json:"update_time,omitempty"`
}

type Authorization struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Amount         *Money `json:"amount,omitempty"`
	CustomID       string `json:"custom_id,omitempty"`
	InvoiceID      string `json:"invoice_id,omitempty"`
	ExpirationTime string `json:"expiration_time,omitempty"`
}

type CaptureAuthorizationRequest struct {
	Amount       *Money `json:"amount,omitempty"`
	InvoiceID    string `json:"invoice_id,omitempty"`
	NoteToPayer  string `json:"note_to_payer,omitempty"`
	FinalCapture bool   `json:"final_capture"`
}

type Refund struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Amount    *Money `json:"amount,omitempty"`
	InvoiceID string `json:"invoice_id,omitempty"`
}

type RefundRequest struct {
	Amount      *Money `json:"amount,omitempty"`
	InvoiceID   string `json:"invoice_id,omitempty"`
	NoteToPayer string `json:"note_to_payer,omitempty"`
}

type EventType struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

type Webhook struct {
	ID         string      `json:"id"`
	URL        string      `json:"url"`
	EventTypes []EventType `json:"event_types"`
	Links      []Link      `json:"links,omitempty"`
}

// EventNames flattens the subscribed event types.
func (w Webhook) EventNames() []string {
	names := make([]string, 0, len(w.EventTypes))
	for _, et := range w.EventTypes {
		names = append(names, et.Name)
	}
	return names
}

type webhookList struct {
	Webhooks []Webhook `json:"webhooks"`
}

type patchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// VerifySignatureRequest mirrors the transmission headers of an inbound
// notification plus the raw event body.
type VerifySignatureRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifySignatureResponse struct {
	VerificationStatus string `json:"verification_status"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	AppID       string `json:"app_id,omitempty"`
}

func eventTypesFor(names []string) []EventType {
	out := make([]EventType, 0, len(names))
	for _, name := range names {
		out = append(out, EventType{Name: name})
	}
	return out
}
