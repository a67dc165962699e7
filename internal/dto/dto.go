package dto

type CheckoutRequest struct {
	Token      string `json:"token" validate:"required,max=128"`
	Item       string `json:"item" validate:"omitempty,max=128"`
	ReturnPath string `json:"returnPath" validate:"omitempty,max=2048"`
}

type CheckoutResponse struct {
	RedirectURL string `json:"redirectUrl"`
}

// StatusResponse answers "may this visit see this item". Error is set only when
// a verification step failed; Entitled is false in that case.
type StatusResponse struct {
	Entitled bool   `json:"entitled"`
	Source   string `json:"source,omitempty"`
	Error    string `json:"error,omitempty"`
}

type VisitResponse struct {
	Token string `json:"token"`
	Item  string `json:"item"`
}

type WebhookAck struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
}

type DiagResponse struct {
	OK      bool   `json:"ok"`
	Backend string `json:"backend"`
	Wrote   bool   `json:"wrote"`
	Read    bool   `json:"read"`
	Match   bool   `json:"match"`
	Error   string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
