package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	http "github.com/bogdanfinn/fhttp"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/yourneighborhoodchef/asinfetch/internal/client"
	"github.com/yourneighborhoodchef/asinfetch/internal/logging"
	"github.com/yourneighborhoodchef/asinfetch/internal/metrics"
	"github.com/yourneighborhoodchef/asinfetch/internal/models"
	"github.com/yourneighborhoodchef/asinfetch/internal/parse"
	"github.com/yourneighborhoodchef/asinfetch/internal/textscan"
)

const (
	// DefaultBaseURL is the storefront all request paths hang off.
	DefaultBaseURL = "https://www.amazon.in"

	// warmASIN is a stable, always-listed product used to exercise the
	// handshake when warming sessions before any real work arrives.
	warmASIN = "B09X7CRKRZ"

	detailsCacheSize = 256

	modalPath = "/portal-migration/hz/glow/get-rendered-address-selections" +
		"?deviceType=desktop&pageType=Detail&storeContext=photo&actionSource=desktop-modal"

	offersPathFormat = "/gp/product/ajax/ref=dp_aod_ALL_mbc?asin=%s&m=&qid=&smid=" +
		"&sourcecustomerorglistid=&sourcecustomerorglistitemid=&sr=&pc=dp&experienceId=aodAjaxMain"

	// filters param is double-URL-encoded, the listing endpoint wants it that way
	allOffersFilter   = "&filters=%257B%2522all%2522%253Atrue%257D"
	primeOffersFilter = "&filters=%257B%2522primeEligible%2522%253Atrue%257D"

	modalAnchor = `id="nav-global-location-data-modal-action"`
	tokenAnchor = `CSRF_TOKEN : `
)

// Orchestrator drives sessions through the handshake sequence and runs
// product fetches on them. Product details are cached per ASIN so repeated
// fetches of the same product skip the expensive page parse.
type Orchestrator struct {
	baseURL   string
	newClient func() (Doer, string, error)
	details   *lru.Cache[string, *models.ProductDetails]
	met       *metrics.Metrics
	now       func() time.Time
	debug     func(shape, body string)
}

// SetBaseURL points the orchestrator at a different marketplace storefront.
// Empty input keeps the default.
func (o *Orchestrator) SetBaseURL(u string) {
	if u != "" {
		o.baseURL = strings.TrimSuffix(u, "/")
	}
}

// SetDebugSink registers a callback receiving every fetched body, keyed by
// request shape. Used to capture raw HTML for offline inspection.
func (o *Orchestrator) SetDebugSink(sink func(shape, body string)) {
	o.debug = sink
}

// NewOrchestrator builds an orchestrator creating real TLS clients.
// met may be nil to disable instrumentation.
func NewOrchestrator(allowProxy bool, met *metrics.Metrics) *Orchestrator {
	cache, _ := lru.New[string, *models.ProductDetails](detailsCacheSize)
	return &Orchestrator{
		baseURL: DefaultBaseURL,
		newClient: func() (Doer, string, error) {
			c, err := client.CreateClient(allowProxy)
			if err != nil {
				return nil, "", err
			}
			return c, c.ProxyURL, nil
		},
		details: cache,
		met:     met,
		now:     time.Now,
	}
}

// NewSession creates an unwarmed session on a fresh client.
func (o *Orchestrator) NewSession() (*Session, error) {
	c, proxy, err := o.newClient()
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	o.met.SessionOpened()
	return New(c, proxy), nil
}

// Warm runs the handshake on a fresh session so its cookies and page token
// are valid before first use. A failed warm-up leaves the session Failed.
func (o *Orchestrator) Warm(ctx context.Context, s *Session) error {
	if err := s.beginHandshake(); err != nil {
		return err
	}
	token, _, err := o.productPage(ctx, s, warmASIN, false)
	if err != nil {
		s.fail()
		o.met.IncHandshake("failure")
		return err
	}
	s.setTokens(token, "")
	o.met.IncHandshake("success")
	return s.ready()
}

// Fetch runs the full request sequence for one ASIN on an acquired session:
// product page, location modal, unfiltered offers, filtered offers when the
// listing advertises the filter, then the merge. Token failures in the first
// two steps poison the session; offer-step failures leave it reusable.
func (o *Orchestrator) Fetch(ctx context.Context, s *Session, asin string) (*models.ProductRecord, error) {
	if st := s.State(); st != Busy {
		return nil, &StateError{Op: "fetch", State: st}
	}
	if !models.IsValidASIN(asin) {
		return nil, fmt.Errorf("invalid asin %q", asin)
	}

	token1, details, err := o.productPage(ctx, s, asin, true)
	if err != nil {
		s.fail()
		o.met.IncFetch("handshake_failure")
		return nil, err
	}

	token2, err := o.locationModal(ctx, s, token1)
	if err != nil {
		s.fail()
		o.met.IncFetch("handshake_failure")
		return nil, err
	}
	s.setTokens(token1, token2)

	allOffers, hasPrimeFilter, err := o.offersListing(ctx, s, asin, false)
	if err != nil {
		o.met.IncFetch("offers_failure")
		return nil, err
	}

	var primeOffers []models.Offer
	if hasPrimeFilter {
		primeOffers, _, err = o.offersListing(ctx, s, asin, true)
		if err != nil {
			o.met.IncFetch("offers_failure")
			return nil, err
		}
	} else {
		logging.Infof("no prime filter on %s listing, skipping filtered request", asin)
	}

	record := &models.ProductRecord{
		ASIN:           asin,
		Timestamp:      o.now().Unix(),
		ProductDetails: details,
		Offers:         parse.MergeOffers(allOffers, primeOffers),
	}
	o.met.IncFetch("success")
	return record, nil
}

// productPage fetches /dp/{asin}, harvesting the page token and, when
// wanted, the parsed product details.
func (o *Orchestrator) productPage(ctx context.Context, s *Session, asin string, wantDetails bool) (string, *models.ProductDetails, error) {
	pageURL := o.baseURL + "/dp/" + asin
	body, err := o.do(ctx, s, "product_page", pageURL, s.profile.ProductPage(pageURL))
	if err != nil {
		return "", nil, err
	}

	var details *models.ProductDetails
	if wantDetails {
		if cached, ok := o.details.Get(asin); ok {
			details = cached
		} else if parsed, perr := parse.ParseProductDetails(body); perr != nil {
			logging.Warnf("details parse failed for %s: %v", asin, perr)
		} else {
			details = parsed
			o.details.Add(asin, parsed)
		}
	}

	token, ok := extractPageToken(body)
	if !ok {
		o.met.IncError("token_missing")
		return "", nil, fmt.Errorf("product page for %s: %w", asin, ErrTokenMissing)
	}
	return token, details, nil
}

// locationModal fetches the rendered-address-selections fragment, which
// only answers when the page token rides along, and harvests the second
// token from its inline script.
func (o *Orchestrator) locationModal(ctx context.Context, s *Session, token1 string) (string, error) {
	body, err := o.do(ctx, s, "location_modal", o.baseURL+modalPath, s.profile.LocationModal(o.baseURL, token1))
	if err != nil {
		return "", err
	}
	token, ok := textscan.QuotedAfter(body, tokenAnchor)
	if !ok || token == "" {
		o.met.IncError("token_missing")
		return "", fmt.Errorf("location modal: %w", ErrTokenMissing)
	}
	return token, nil
}

func (o *Orchestrator) offersListing(ctx context.Context, s *Session, asin string, primeOnly bool) ([]models.Offer, bool, error) {
	listingURL := o.baseURL + fmt.Sprintf(offersPathFormat, asin)
	shape := "offers_all"
	if primeOnly {
		listingURL += primeOffersFilter
		shape = "offers_prime"
	} else {
		listingURL += allOffersFilter
	}

	body, err := o.do(ctx, s, shape, listingURL, s.profile.OffersListing(o.baseURL+"/dp/"+asin))
	if err != nil {
		return nil, false, err
	}
	offers, hasPrimeFilter, err := parse.ParseOffers(body, o.now())
	if err != nil {
		o.met.IncError("offers_parse")
		return nil, false, fmt.Errorf("parse %s for %s: %w", shape, asin, err)
	}
	return offers, hasPrimeFilter, nil
}

func (o *Orchestrator) do(ctx context.Context, s *Session, shape, url string, header http.Header) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build %s request: %w", shape, err)
	}
	req.Header = header

	start := time.Now()
	resp, err := s.client.Do(req)
	o.met.ObserveRequest(shape, time.Since(start))
	if err != nil {
		o.met.IncError("transport")
		return "", &TransportError{Shape: shape, Err: err}
	}
	defer resp.Body.Close()

	s.touch()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		o.met.IncError("transport")
		return "", &TransportError{Shape: shape, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		o.met.IncError("transport")
		return "", &TransportError{Shape: shape, Err: err}
	}
	if o.debug != nil {
		o.debug(shape, string(body))
	}
	return string(body), nil
}

// extractPageToken digs the anti-csrf token out of the location modal
// trigger's data-a-modal attribute: a JSON blob, frequently entity-escaped,
// sitting next to the nav element the anchor names.
func extractPageToken(html string) (string, bool) {
	at := strings.Index(html, modalAnchor)
	if at == -1 {
		return "", false
	}
	span, ok := textscan.BalancedSpan(html[at:], "data-a-modal=", '{', '}')
	if !ok {
		return "", false
	}

	var payload struct {
		AjaxHeaders map[string]string `json:"ajaxHeaders"`
	}
	if err := json.Unmarshal([]byte(textscan.DecodeEntities(span)), &payload); err != nil {
		return "", false
	}
	token := payload.AjaxHeaders["anti-csrftoken-a2z"]
	return token, token != ""
}
