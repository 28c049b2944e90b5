// README: Error taxonomy shared by providers, the quote cache and the suggester.
package types

import "errors"

var (
	// ErrConfiguration marks a provider that cannot run because a credential is missing.
	ErrConfiguration = errors.New("provider not configured")
	// ErrTransport marks a network, HTTP or SDK failure.
	ErrTransport = errors.New("provider transport failure")
	// ErrFormat marks a response that failed structural or numeric validation.
	ErrFormat = errors.New("provider response malformed")
)
