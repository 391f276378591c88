package api

import (
	"github.com/golang-jwt/jwt/v4"
	"github.com/nbd-wtf/go-nostr"
)

// Claims carried by operator tokens.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type contextKey string

const requestIDKey contextKey = "requestID"

type errorResponse struct {
	Error string `json:"error"`
}

// upstreamErrorResponse is returned when the explorer answers non-2xx.
type upstreamErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
	Body   string `json:"body"`
}

type SubmitRequest struct {
	Data     string `json:"data"`
	Metadata string `json:"metadata,omitempty"`
}

type DVNSubmitRequest struct {
	SourceChain uint32 `json:"sourceChainId"`
	DestChain   uint32 `json:"destChainId"`
	Payload     string `json:"payload"`
}

type AttestRequest struct {
	Validators []string `json:"validators,omitempty"`
}

// VerifyRequest answers a login challenge with a signed nostr event whose
// content is the challenge.
type VerifyRequest struct {
	Challenge string      `json:"challenge"`
	Event     nostr.Event `json:"event"`
}
