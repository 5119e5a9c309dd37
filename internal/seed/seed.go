// Package seed produces synthetic deliveries resembling a payment provider's webhook events.
package seed

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/marcelsud/webhook-inspector/capture"
	"github.com/marcelsud/webhook-inspector/signature"
)

const (
	Pathname   = "/capture/stripe/webhook"
	apiVersion = "2024-12-18.acacia"
	alphanum   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// EventTypes lists every event the generator can produce
var EventTypes = []string{
	"payment_intent.succeeded",
	"payment_intent.payment_failed",
	"payment_intent.created",
	"charge.succeeded",
	"charge.failed",
	"charge.refunded",
	"invoice.paid",
	"invoice.payment_failed",
	"customer.created",
	"customer.updated",
	"customer.subscription.created",
	"customer.subscription.deleted",
	"checkout.session.completed",
	"refund.created",
	"charge.dispute.created",
	"payment_method.attached",
}

var currencies = []string{"usd", "eur", "brl", "gbp"}

// Generator builds capture requests. It is not safe for concurrent use.
type Generator struct {
	rnd    *rand.Rand
	secret signature.Secret
	now    func() time.Time
	host   string
}

// New creates a generator; the same seed yields the same bodies
func New(seed uint64, secret signature.Secret, host string) *Generator {
	return &Generator{
		rnd:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		secret: secret,
		now:    time.Now,
		host:   host,
	}
}

// Requests returns n deliveries cycling through EventTypes
func (g *Generator) Requests(n int) ([]capture.Request, error) {
	out := make([]capture.Request, 0, n)
	for i := 0; i < n; i++ {
		req, err := g.Request(EventTypes[i%len(EventTypes)])
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// Request builds one signed delivery of eventType
func (g *Generator) Request(eventType string) (capture.Request, error) {
	now := g.now()
	event := map[string]any{
		"id":               "evt_" + g.str(24),
		"object":           "event",
		"api_version":      apiVersion,
		"created":          now.Unix() - g.rnd.Int64N(86400),
		"type":             eventType,
		"livemode":         false,
		"pending_webhooks": 1 + g.rnd.IntN(5),
		"request": map[string]any{
			"id":              "req_" + g.str(14),
			"idempotency_key": g.str(32),
		},
		"data": map[string]any{"object": g.object(eventType, now)},
	}

	body, err := json.Marshal(event)
	if err != nil {
		return capture.Request{}, fmt.Errorf("marshaling event: %w", err)
	}
	sig := signature.Sign(g.secret, now, body).String()
	length := strconv.Itoa(len(body))

	return capture.Request{
		Method:        "POST",
		Pathname:      Pathname,
		IP:            "127.0.0.1",
		StatusCode:    200,
		ContentType:   capture.String("application/json"),
		ContentLength: capture.String(length),
		Headers:       g.headers(length, sig),
		Body:          capture.String(string(body)),
	}, nil
}

func (g *Generator) headers(length, sig string) map[string]string {
	h := map[string]string{
		"content-type":    "application/json",
		"content-length":  length,
		"user-agent":      "Stripe/1.0 (+https://stripe.com/docs/webhooks)",
		"accept":          "*/*",
		"cache-control":   "no-cache",
		"connection":      "close",
		"host":            g.host,
		"accept-encoding": "gzip, deflate",
	}
	h[signature.HeaderName] = sig
	return h
}

func (g *Generator) object(eventType string, now time.Time) map[string]any {
	amount := 1000 + g.rnd.Int64N(499000)
	currency := currencies[g.rnd.IntN(len(currencies))]
	created := now.Unix() - g.rnd.Int64N(3600)
	customer := "cus_" + g.str(14)

	switch eventType {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.created":
		status := map[string]string{
			"payment_intent.succeeded":      "succeeded",
			"payment_intent.payment_failed": "requires_payment_method",
			"payment_intent.created":        "requires_confirmation",
		}[eventType]
		received := int64(0)
		if status == "succeeded" {
			received = amount
		}
		return map[string]any{
			"id": "pi_" + g.str(24), "object": "payment_intent", "amount": amount,
			"amount_received": received, "currency": currency, "status": status,
			"customer": customer, "payment_method_types": []string{"card"}, "created": created,
		}
	case "charge.succeeded", "charge.failed", "charge.refunded":
		return map[string]any{
			"id": "ch_" + g.str(24), "object": "charge", "amount": amount, "currency": currency,
			"paid": eventType != "charge.failed", "refunded": eventType == "charge.refunded",
			"customer": customer, "created": created,
		}
	case "invoice.paid", "invoice.payment_failed":
		return map[string]any{
			"id": "in_" + g.str(24), "object": "invoice", "amount_due": amount,
			"amount_paid": map[bool]int64{true: amount, false: 0}[eventType == "invoice.paid"],
			"currency": currency, "customer": customer, "paid": eventType == "invoice.paid",
			"created": created,
		}
	case "customer.subscription.created", "customer.subscription.deleted":
		return map[string]any{
			"id": "sub_" + g.str(24), "object": "subscription", "customer": customer, "created": created,
			"status": map[bool]string{true: "active", false: "canceled"}[eventType == "customer.subscription.created"],
		}
	case "checkout.session.completed":
		return map[string]any{
			"id": "cs_test_" + g.str(24), "object": "checkout.session", "amount_total": amount,
			"currency": currency, "customer": customer, "payment_status": "paid", "status": "complete",
		}
	case "refund.created":
		return map[string]any{
			"id": "re_" + g.str(24), "object": "refund", "amount": amount, "currency": currency,
			"charge": "ch_" + g.str(24), "status": "succeeded", "created": created,
		}
	case "charge.dispute.created":
		return map[string]any{
			"id": "dp_" + g.str(24), "object": "dispute", "amount": amount, "currency": currency,
			"charge": "ch_" + g.str(24), "reason": "fraudulent", "status": "needs_response",
		}
	case "payment_method.attached":
		return map[string]any{
			"id": "pm_" + g.str(24), "object": "payment_method", "customer": customer, "type": "card",
			"card": map[string]any{"brand": "visa", "last4": fmt.Sprintf("%04d", g.rnd.IntN(10000))},
		}
	default:
		return map[string]any{
			"id": "cus_" + g.str(14), "object": "customer", "email": g.str(8) + "@example.com",
			"created": created, "metadata": map[string]any{},
		}
	}
}

func (g *Generator) str(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanum[g.rnd.IntN(len(alphanum))]
	}
	return string(b)
}
