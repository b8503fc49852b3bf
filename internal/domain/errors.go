package domain

import "errors"

var (
	// ErrInvalidQuery signals an empty or blank search query.
	ErrInvalidQuery = errors.New("search query is required")
	// ErrMissingAPIKey signals a provider configured without credentials.
	ErrMissingAPIKey = errors.New("api key is not set")
	// ErrUnknownProvider signals an unrecognized provider name.
	ErrUnknownProvider = errors.New("unknown llm provider")
	// ErrProvider signals an LLM transport or API failure.
	ErrProvider = errors.New("llm provider error")

	// ErrInvalidNonce signals a missing or tampered same-origin nonce.
	ErrInvalidNonce = errors.New("invalid nonce")
	// ErrCrossOrigin signals a request from a non-canonical host.
	ErrCrossOrigin = errors.New("cross origin access forbidden")
	// ErrMissingToken signals an absent integration token header.
	ErrMissingToken = errors.New("integration token is required")
	// ErrInvalidToken signals a mismatched integration token.
	ErrInvalidToken = errors.New("invalid integration token")
)
