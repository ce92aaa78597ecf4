package saavn

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"

	"github.com/saavnstats/playwatch/utils"
)

const (
	FetchTimeout = 15 * time.Second

	// One initial attempt plus this many retries. The external scheduler
	// fires again in an hour anyway so there is no point in being patient.
	maxRetries       = 2
	defaultRetryWait = 3 * time.Second
)

// JioSaavn renders play counts in slightly different markup depending on
// whether you land on a song page or an album page. These selectors are
// lifted straight from the live site and will need updating whenever their
// frontend churns.
var playTagSelectors = []string{
	`p[class='u-centi u-deci@lg u-color-js-gray u-ellipsis@lg u-margin-bottom-tiny@sm']`,
	`p[class='u-centi u-deci@lg u-color-js-gray']`,
}

const albumSpanSelector = `span[class='u-centi u-hidden@lg']`

type Kind int

const (
	KindTimeout Kind = iota
	KindHTTP
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	case KindParse:
		return "parse"
	}
	return "unknown"
}

// Error is what FetchPlayCount returns once retries are exhausted.
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("saavn: %s fetching %s", e.Kind, e.URL)
	}
	return fmt.Sprintf("saavn: %s fetching %s: %v", e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Client struct {
	httpClient *http.Client

	// RetryWait is the pause between fetch attempts. Tests shrink it.
	RetryWait time.Duration
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = utils.NewHTTPClient(FetchTimeout)
	}
	return &Client{
		httpClient: httpClient,
		RetryWait:  defaultRetryWait,
	}
}

// FetchPlayCount scrapes the play count figure from a JioSaavn song or
// album page. Transport errors, bad statuses and unparseable pages are all
// retried the same small number of times; the last failure is returned as
// an *Error so callers can log its kind once.
func (c *Client) FetchPlayCount(url string) (int64, error) {
	var count int64

	attempt := func() error {
		n, err := c.fetchOnce(url)
		if err != nil {
			return err
		}
		count = n
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.RetryWait), maxRetries)
	if err := backoff.Retry(attempt, policy); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *Client) fetchOnce(url string) (int64, error) {
	res, err := c.httpClient.Get(url)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, &Error{Kind: KindTimeout, URL: url, Err: err}
		}
		return 0, &Error{Kind: KindHTTP, URL: url, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return 0, &Error{Kind: KindHTTP, URL: url, Err: fmt.Errorf("unexpected status %s", res.Status)}
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return 0, &Error{Kind: KindParse, URL: url, Err: err}
	}

	if count, ok := extractPlayCount(doc); ok {
		return count, nil
	}
	return 0, &Error{Kind: KindParse, URL: url, Err: errors.New("no play count found in page")}
}

func extractPlayCount(doc *goquery.Document) (int64, bool) {
	for _, selector := range playTagSelectors {
		if count, ok := countFromText(doc.Find(selector).First().Text()); ok {
			return count, true
		}
	}

	if count, ok := countFromText(doc.Find(albumSpanSelector).First().Text()); ok {
		return count, true
	}

	// Last resort: scan every leaf node for something that reads like
	// "1,234 Plays". Catches layout shuffles until a selector is added.
	var (
		count int64
		found bool
	)
	doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		if c, ok := countFromText(s.Text()); ok {
			count, found = c, true
			return false
		}
		return true
	})
	return count, found
}

// countFromText pulls the digits out of text shaped like "2,41,657 Plays".
func countFromText(text string) (int64, bool) {
	before, _, ok := strings.Cut(text, "Play")
	if !ok {
		return 0, false
	}
	var digits strings.Builder
	for _, r := range before {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
