package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

const SignatureHeader = "onvo-signature"

const (
	EventSucceeded = "payment.succeeded"
	EventFailed    = "payment.failed"
	EventCanceled  = "payment.canceled"
	EventRefunded  = "payment.refunded"
)

type Action int

const (
	ActionIgnore Action = iota
	ActionConfirm
	ActionFail
	ActionCancel
	ActionRefund
)

func (a Action) String() string {
	switch a {
	case ActionConfirm:
		return "confirm"
	case ActionFail:
		return "fail"
	case ActionCancel:
		return "cancel"
	case ActionRefund:
		return "refund"
	}
	return "ignore"
}

type WebhookEvent struct {
	Type string      `json:"type"`
	Data WebhookData `json:"data"`
}

type WebhookData struct {
	ID             string         `json:"id"`
	Amount         int64          `json:"amount"`
	Currency       string         `json:"currency"`
	Metadata       map[string]any `json:"metadata"`
	FailureMessage string         `json:"failure_message"`
}

func ParseEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if event.Type == "" {
		return nil, errors.New("invalid webhook payload: missing type")
	}
	if ActionFor(event.Type) != ActionIgnore && event.Data.ID == "" {
		return nil, errors.New("invalid webhook payload: missing payment id")
	}
	return &event, nil
}

// ActionFor maps a webhook event type to what must happen to the order.
// Unknown types are ignored.
func ActionFor(eventType string) Action {
	switch eventType {
	case EventSucceeded:
		return ActionConfirm
	case EventFailed:
		return ActionFail
	case EventCanceled:
		return ActionCancel
	case EventRefunded:
		return ActionRefund
	}
	return ActionIgnore
}

// ActionForStatus maps a polled gateway status onto the same actions.
func ActionForStatus(status string) Action {
	switch status {
	case StatusSucceeded:
		return ActionConfirm
	case StatusFailed:
		return ActionFail
	case StatusCanceled:
		return ActionCancel
	case StatusRefunded:
		return ActionRefund
	}
	return ActionIgnore
}

// EventTypeFor is the inverse of ActionFor, used to record polled outcomes
// alongside delivered webhooks.
func EventTypeFor(a Action) string {
	switch a {
	case ActionConfirm:
		return EventSucceeded
	case ActionFail:
		return EventFailed
	case ActionCancel:
		return EventCanceled
	case ActionRefund:
		return EventRefunded
	}
	return ""
}

// VerifySignature checks the hex HMAC-SHA256 of body. Without a secret only
// the presence of a signature is required.
func VerifySignature(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	if secret == "" {
		return true
	}
	return hmac.Equal([]byte(Sign(body, secret)), []byte(signature))
}

func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
