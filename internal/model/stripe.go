package model

import (
	"net/url"
	"strings"
)

const (
	MetadataToken = "rid"
	MetadataItem  = "item"

	QueryToken     = "rid"
	QueryItem      = "item"
	QuerySessionID = "session_id"
	QueryCanceled  = "canceled"

	PaymentStatusPaid              = "paid"
	PaymentStatusNoPaymentRequired = "no_payment_required"

	EventCheckoutCompleted           = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceed = "checkout.session.async_payment_succeeded"
)

// CheckoutSession is the subset of a Stripe checkout.session this service reads,
// whether it came from a webhook payload or a direct API lookup.
type CheckoutSession struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	ClientReferenceID string            `json:"client_reference_id"`
	SuccessURL        string            `json:"success_url"`
	Metadata          map[string]string `json:"metadata"`
}

// IsPaid reports whether the session grants access. Zero-value sessions
// complete with "no_payment_required".
func (s *CheckoutSession) IsPaid() bool {
	switch s.PaymentStatus {
	case PaymentStatusPaid, PaymentStatusNoPaymentRequired:
		return true
	}
	return false
}

// VisitToken recovers the token in priority order: metadata, client reference,
// then the rid query parameter of the success URL.
func (s *CheckoutSession) VisitToken() string {
	if rid := strings.TrimSpace(s.Metadata[MetadataToken]); rid != "" {
		return rid
	}
	if ref := strings.TrimSpace(s.ClientReferenceID); ref != "" {
		return ref
	}
	return s.successURLParam(QueryToken)
}

// ItemKey recovers the content item from metadata, then from the success URL.
func (s *CheckoutSession) ItemKey() string {
	if item := strings.TrimSpace(s.Metadata[MetadataItem]); item != "" {
		return item
	}
	return s.successURLParam(QueryItem)
}

func (s *CheckoutSession) successURLParam(name string) string {
	if s.SuccessURL == "" {
		return ""
	}
	u, err := url.Parse(s.SuccessURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get(name))
}
