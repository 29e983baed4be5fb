// Package portalclient owns an authenticated, stateful session against the
// legacy ESS portal, simulating the browser interaction the portal requires:
// form login, link following and WebForms postbacks for period navigation.
package portalclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-mirror/internal/config"
	"github.com/jakechorley/shift-mirror/pkg/core/extractor"
)

// Portal element names the session depends on. Together with the period
// labels and the roster grid id in the extractor package, these are the
// whole contract this tool has with the portal markup.
const (
	usernameField  = "_txtUsername"
	passwordField  = "_txtPassword"
	rosterLinkText = "Personal Roster"
	btnNextPeriod  = "_content_ctl09__filtersPersonal__btnForward"
	btnPrevPeriod  = "_content_ctl09__filtersPersonal__btnBack"
)

// Client is one live portal session. It holds exactly one current page
// snapshot, replaced wholesale on every fetch. The portal itself only has
// one "current period" per session, so the client is exclusively owned by
// a single caller and is not safe for concurrent use.
type Client struct {
	http   *http.Client
	logger *zap.Logger
	loc    *time.Location

	pageURL string
	page    *goquery.Document
}

// NewClient logs into the portal with the given credentials and lands on
// the personal roster view. Missing credential fields are submitted as
// empty strings; the portal rejects them itself (ErrUnauthorized).
func NewClient(ctx context.Context, portalURL string, creds *config.Credentials, loc *time.Location, logger *zap.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		http:   &http.Client{Jar: jar},
		logger: logger,
		loc:    loc,
	}

	if err := c.login(ctx, portalURL, creds); err != nil {
		return nil, err
	}

	return c, nil
}

// login submits the credential form and follows the personal roster link.
func (c *Client) login(ctx context.Context, portalURL string, creds *config.Credentials) error {
	c.logger.Debug("Fetching portal login page", zap.String("url", portalURL))
	doc, finalURL, err := c.get(ctx, portalURL)
	if err != nil {
		return err
	}

	form := doc.Find("form").First()
	if form.Length() == 0 {
		return fmt.Errorf("login page has no form: %w", ErrBadUpstreamResponse)
	}

	fields := hiddenFields(form)
	fields.Set(usernameField, creds.Username)
	fields.Set(passwordField, creds.Password)

	c.logger.Debug("Submitting credentials", zap.String("username", creds.Username))
	doc, finalURL, err = c.postForm(ctx, resolveAction(finalURL, form), fields)
	if err != nil {
		return err
	}
	if state := Classify(doc); state != StateOK {
		return fmt.Errorf("login failed: %w", state.Err())
	}

	href, ok := findLink(doc, rosterLinkText)
	if !ok {
		return fmt.Errorf("personal roster link not found after login: %w", ErrBadUpstreamResponse)
	}

	doc, finalURL, err = c.get(ctx, resolveRef(finalURL, href))
	if err != nil {
		return err
	}
	if state := Classify(doc); state != StateOK {
		return fmt.Errorf("failed to open personal roster: %w", state.Err())
	}

	c.page = doc
	c.pageURL = finalURL
	c.logger.Info("Portal session established", zap.String("roster_url", c.pageURL))
	return nil
}

// Refresh re-fetches the live roster view, replacing the current page
// snapshot, and returns the new snapshot.
func (c *Client) Refresh(ctx context.Context) (*goquery.Document, error) {
	doc, finalURL, err := c.get(ctx, c.pageURL)
	if err != nil {
		return nil, err
	}
	if state := Classify(doc); state != StateOK {
		return nil, state.Err()
	}

	c.page = doc
	c.pageURL = finalURL
	return doc, nil
}

// Page returns the current page snapshot without touching the network.
func (c *Client) Page() *goquery.Document {
	return c.page
}

// Period reads the period start the session currently displays.
func (c *Client) Period(ctx context.Context) (time.Time, error) {
	if c.page == nil {
		if _, err := c.Refresh(ctx); err != nil {
			return time.Time{}, err
		}
	}
	return extractor.PeriodStart(c.page, c.loc)
}

// Advance presses the portal's next-period button, refetches and returns
// the newly displayed period start.
func (c *Client) Advance(ctx context.Context) (time.Time, error) {
	return c.step(ctx, btnNextPeriod)
}

// Retreat presses the portal's previous-period button, refetches and
// returns the newly displayed period start.
func (c *Client) Retreat(ctx context.Context) (time.Time, error) {
	return c.step(ctx, btnPrevPeriod)
}

// step performs a WebForms postback of the given button, re-posting the
// current page's hidden fields, then reloads the page the way a browser
// would before reading the new period.
func (c *Client) step(ctx context.Context, button string) (time.Time, error) {
	if c.page == nil {
		if _, err := c.Refresh(ctx); err != nil {
			return time.Time{}, err
		}
	}

	form := c.page.Find("form").First()
	if form.Length() == 0 {
		return time.Time{}, fmt.Errorf("roster page has no form: %w", ErrBadUpstreamResponse)
	}

	fields := hiddenFields(form)
	fields.Set(button, submitValue(form, button))

	doc, finalURL, err := c.postForm(ctx, resolveAction(c.pageURL, form), fields)
	if err != nil {
		return time.Time{}, err
	}
	if state := Classify(doc); state != StateOK {
		return time.Time{}, state.Err()
	}

	c.page = doc
	c.pageURL = finalURL

	// The postback response can lag the grid by one render; reload so the
	// period labels reflect the step.
	if _, err := c.Refresh(ctx); err != nil {
		return time.Time{}, err
	}

	return extractor.PeriodStart(c.page, c.loc)
}

func (c *Client) get(ctx context.Context, rawURL string) (*goquery.Document, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build portal request: %w", err)
	}
	return c.do(req)
}

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values) (*goquery.Document, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", fmt.Errorf("failed to build portal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// do executes the request, materializes the body through a transient file
// and parses the result. It returns the parsed document and the final URL
// after redirects.
func (c *Client) do(req *http.Request) (*goquery.Document, string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("portal request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("portal returned status %d: %w", resp.StatusCode, ErrBadUpstreamResponse)
	}

	raw, err := materialize(resp.Body)
	if err != nil {
		return nil, "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse portal page: %w", err)
	}

	return doc, resp.Request.URL.String(), nil
}

// materialize spools the page body through a uuid-named file in a fresh
// temp directory, reads it back and removes both before returning. Callers
// never see the file, only the markup.
func materialize(body io.Reader) (string, error) {
	dir, err := os.MkdirTemp("", "shift-mirror-page-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp page dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, fmt.Sprintf("Home-%s.html", uuid.NewString()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create temp page file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write temp page file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp page file: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read temp page file: %w", err)
	}
	return string(raw), nil
}

// hiddenFields collects the form's hidden inputs (__VIEWSTATE and friends),
// which the portal requires verbatim on every postback.
func hiddenFields(form *goquery.Selection) url.Values {
	fields := url.Values{}
	form.Find("input[type='hidden']").Each(func(_ int, in *goquery.Selection) {
		name, ok := in.Attr("name")
		if !ok {
			return
		}
		value, _ := in.Attr("value")
		fields.Set(name, value)
	})
	return fields
}

// submitValue returns the value attribute of the named submit button, empty
// when the button has none.
func submitValue(form *goquery.Selection, name string) string {
	if v, ok := form.Find("input[name='" + name + "']").Attr("value"); ok {
		return v
	}
	return ""
}

// findLink returns the href of the first anchor whose text matches exactly.
func findLink(doc *goquery.Document, text string) (string, bool) {
	var href string
	found := false
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.TrimSpace(a.Text()) != text {
			return true
		}
		if h, ok := a.Attr("href"); ok {
			href = h
			found = true
			return false
		}
		return true
	})
	return href, found
}

// resolveAction resolves a form's action attribute against the page URL.
// An empty action posts back to the page itself, as WebForms pages do.
func resolveAction(pageURL string, form *goquery.Selection) string {
	action, _ := form.Attr("action")
	return resolveRef(pageURL, action)
}

func resolveRef(pageURL, ref string) string {
	if ref == "" {
		return pageURL
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref
	}
	target, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(target).String()
}
