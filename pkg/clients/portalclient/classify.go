package portalclient

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageState is the terminal state of a fetched portal page.
type PageState int

const (
	StateOK PageState = iota
	StateUnauthorized
	StateBadUpstream
	StateSessionExpired
)

// loginErrorTableID only renders when authentication fails.
const loginErrorTableID = "_tblErrorTable"

// Title substrings the portal uses on its terminal error pages. This is
// fragile string matching by nature; it is the only signal the portal
// gives, so it is isolated here where fixture pages can cover it.
const (
	titleAccessDenied    = "Access Denied"
	titleSessionTimedOut = "Session Timed Out"
	titleError           = "Error"
)

// Classify maps a parsed portal page to its terminal state. Pure function
// over page content; no network involved.
func Classify(doc *goquery.Document) PageState {
	if doc.Find("#" + loginErrorTableID).Length() > 0 {
		return StateUnauthorized
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	switch {
	case strings.Contains(title, titleAccessDenied):
		return StateUnauthorized
	case strings.Contains(title, titleSessionTimedOut):
		return StateSessionExpired
	case strings.Contains(title, titleError):
		return StateBadUpstream
	}

	return StateOK
}

// Err returns the sentinel error for the state, nil for StateOK.
func (s PageState) Err() error {
	switch s {
	case StateUnauthorized:
		return ErrUnauthorized
	case StateBadUpstream:
		return ErrBadUpstreamResponse
	case StateSessionExpired:
		return ErrSessionExpired
	}
	return nil
}

func (s PageState) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateUnauthorized:
		return "unauthorized"
	case StateBadUpstream:
		return "bad upstream response"
	case StateSessionExpired:
		return "session expired"
	}
	return "unknown"
}
