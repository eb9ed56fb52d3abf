// internal/services/webhook_event.go
package services

import (
	"strings"
	"time"

	"github.com/rankbeam/license-api/internal/utils"
)

// supportedEvents is the fixed allow-set of gateway notifications that may
// drive a state transition. Anything else is acknowledged and ignored so the
// gateway stops retrying.
var supportedEvents = map[string]bool{
	"subscription.create": true,
	"charge.success":      true,
	"invoice.create":      true,
	"subscription.renew":  true,
}

// WebhookEvent is the gateway's event envelope. Paystack is inconsistent
// about field placement across event types, so every accessor walks the
// known aliases.
type WebhookEvent struct {
	Event    string           `json:"event"`
	Data     WebhookData      `json:"data"`
	Customer *WebhookCustomer `json:"customer,omitempty"`
}

type WebhookData struct {
	Reference        string               `json:"reference"`
	SubscriptionCode string               `json:"subscription_code"`
	Subscription     *WebhookSubscription `json:"subscription,omitempty"`
	PaidAt           string               `json:"paid_at"`
	PaidAtCamel      string               `json:"paidAt"`
	CreatedAt        string               `json:"created_at"`
	CreatedAtCamel   string               `json:"createdAt"`
	Metadata         WebhookMetadata      `json:"metadata"`
	Customer         WebhookCustomer      `json:"customer"`
}

type WebhookSubscription struct {
	SubscriptionCode string `json:"subscription_code"`
}

type WebhookMetadata struct {
	LicenseKey      string `json:"licenseKey"`
	LicenseKeySnake string `json:"license_key"`
	Fingerprint     string `json:"fingerprint"`
	DeviceID        string `json:"device_id"`
	Email           string `json:"email"`
	Reference       string `json:"reference"`
}

type WebhookCustomer struct {
	Email string `json:"email"`
}

func (e *WebhookEvent) Supported() bool {
	if e.Event == "" {
		return true
	}
	return supportedEvents[strings.ToLower(e.Event)]
}

func (e *WebhookEvent) LicenseKey() string {
	key := e.Data.Metadata.LicenseKey
	if key == "" {
		key = e.Data.Metadata.LicenseKeySnake
	}
	return utils.NormalizeLicenseKey(key)
}

func (e *WebhookEvent) Fingerprint() string {
	fp := e.Data.Metadata.Fingerprint
	if fp == "" {
		fp = e.Data.Metadata.DeviceID
	}
	return strings.TrimSpace(fp)
}

func (e *WebhookEvent) Email() string {
	email := e.Data.Customer.Email
	if email == "" && e.Customer != nil {
		email = e.Customer.Email
	}
	if email == "" {
		email = e.Data.Metadata.Email
	}
	return utils.NormalizeEmail(email)
}

func (e *WebhookEvent) Reference() string {
	for _, ref := range []string{
		e.Data.Reference,
		e.Data.SubscriptionCode,
		e.Data.Metadata.Reference,
	} {
		if ref != "" {
			return ref
		}
	}
	if e.Data.Subscription != nil {
		return e.Data.Subscription.SubscriptionCode
	}
	return ""
}

var paidAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// PaidTime returns the payment timestamp carried by the event, or fallback
// when it is absent or unparseable.
func (e *WebhookEvent) PaidTime(fallback time.Time) time.Time {
	for _, raw := range []string{e.Data.PaidAt, e.Data.PaidAtCamel, e.Data.CreatedAt, e.Data.CreatedAtCamel} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		for _, layout := range paidAtLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC()
			}
		}
	}
	return fallback
}
