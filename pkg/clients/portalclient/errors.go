package portalclient

import "errors"

// Error kinds surfaced by the portal session. All of them abort the
// operation that hit them; nothing here is retried automatically. Recovery
// from ErrSessionExpired means constructing a new client.
var (
	ErrUnauthorized        = errors.New("portal rejected the credentials or denied access")
	ErrBadUpstreamResponse = errors.New("portal returned an unrecognized error page")
	ErrSessionExpired      = errors.New("portal session has timed out")
)
