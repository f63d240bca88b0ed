package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	http "github.com/bogdanfinn/fhttp"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourneighborhoodchef/asinfetch/internal/models"
)

const pageHTML = `<html><body>
<div id="centerCol"><span id="productTitle">Test Product</span></div>
<span id="nav-global-location-data-modal-action"
  data-a-modal="{&quot;width&quot;:375,&quot;ajaxHeaders&quot;:{&quot;anti-csrftoken-a2z&quot;:&quot;tok1value&quot;},&quot;url&quot;:&quot;/portal&quot;}">
</span></body></html>`

const modalHTML = `<script type="text/javascript">
var config = { CSRF_TOKEN : "tok2value", isCompact: false };
</script>`

const allOffersHTML = `<div id="aod-filter-list">
  <span class="a-checkbox"><i class="a-icon a-icon-prime"></i></span>
</div>
<div id="aod-offer">
  <div id="aod-offer-soldBy"><a class="a-size-small a-link-normal" href="/s?seller=APRIME1">Fast Shop</a></div>
</div>
<div id="aod-offer">
  <div id="aod-offer-soldBy"><a class="a-size-small a-link-normal" href="/s?seller=ASLOW2">Slow Shop</a></div>
</div>`

const primeOffersHTML = `<div id="aod-offer">
  <div id="aod-offer-soldBy"><a class="a-size-small a-link-normal" href="/s?seller=APRIME1">Fast Shop</a></div>
</div>`

type route struct {
	match  string
	status int
	body   string
	err    error
}

// routeDoer serves canned responses by URL substring, first match wins.
type routeDoer struct {
	mu     sync.Mutex
	routes []route
	urls   []string
	tokens []string
}

func (d *routeDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	d.urls = append(d.urls, req.URL.String())
	d.tokens = append(d.tokens, req.Header.Get("anti-csrftoken-a2z"))
	d.mu.Unlock()

	for _, r := range d.routes {
		if !strings.Contains(req.URL.String(), r.match) {
			continue
		}
		if r.err != nil {
			return nil, r.err
		}
		return &http.Response{
			StatusCode: r.status,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader(r.body)),
		}, nil
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("")),
	}, nil
}

func happyRoutes() []route {
	return []route{
		{match: primeOffersFilter, status: 200, body: primeOffersHTML},
		{match: "experienceId=aodAjaxMain", status: 200, body: allOffersHTML},
		{match: "get-rendered-address-selections", status: 200, body: modalHTML},
		{match: "/dp/", status: 200, body: pageHTML},
	}
}

func testOrchestrator(d Doer) *Orchestrator {
	cache, _ := lru.New[string, *models.ProductDetails](8)
	return &Orchestrator{
		baseURL:   DefaultBaseURL,
		newClient: func() (Doer, string, error) { return d, "", nil },
		details:   cache,
		now:       func() time.Time { return time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC) },
	}
}

func warmedBusySession(t *testing.T, o *Orchestrator, d Doer) *Session {
	t.Helper()
	s := New(d, "")
	require.NoError(t, o.Warm(context.Background(), s))
	require.NoError(t, s.acquire())
	return s
}

func TestFetchSequence(t *testing.T) {
	d := &routeDoer{routes: happyRoutes()}
	o := testOrchestrator(d)
	s := warmedBusySession(t, o, d)

	record, err := o.Fetch(context.Background(), s, "B09X7CRKRZ")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, "B09X7CRKRZ", record.ASIN)
	assert.NotZero(t, record.Timestamp)
	require.NotNil(t, record.ProductDetails)
	require.NotNil(t, record.ProductDetails.Main)
	assert.Equal(t, "Test Product", record.ProductDetails.Main.ProductTitle)

	require.Len(t, record.Offers, 2)
	assert.True(t, record.Offers[0].Prime, "seller present in filtered listing")
	assert.False(t, record.Offers[1].Prime, "seller absent from filtered listing")

	token1, token2 := s.Tokens()
	assert.Equal(t, "tok1value", token1)
	assert.Equal(t, "tok2value", token2)

	// warm request plus the four fetch steps, in order
	require.Len(t, d.urls, 5)
	assert.Contains(t, d.urls[1], "/dp/B09X7CRKRZ")
	assert.Contains(t, d.urls[2], "get-rendered-address-selections")
	assert.Equal(t, "tok1value", d.tokens[2], "modal request carries the page token")
	assert.Contains(t, d.urls[3], allOffersFilter)
	assert.Contains(t, d.urls[4], primeOffersFilter)
}

func TestFetchSkipsFilteredRequestWithoutFilter(t *testing.T) {
	routes := happyRoutes()
	routes[1].body = strings.Replace(allOffersHTML, "a-icon-prime", "a-icon-other", 1)
	d := &routeDoer{routes: routes}
	o := testOrchestrator(d)
	s := warmedBusySession(t, o, d)

	record, err := o.Fetch(context.Background(), s, "B09X7CRKRZ")
	require.NoError(t, err)
	require.Len(t, record.Offers, 2)
	for _, offer := range record.Offers {
		assert.False(t, offer.Prime)
	}
	assert.Len(t, d.urls, 4, "no filtered offers request issued")
}

func TestFetchTokenMissingPoisonsSession(t *testing.T) {
	routes := happyRoutes()
	routes[3].body = "<html><body>captcha</body></html>"
	d := &routeDoer{routes: routes}
	o := testOrchestrator(d)

	s := New(d, "")
	err := o.Warm(context.Background(), s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTokenMissing))
	assert.Equal(t, Failed, s.State())
}

func TestFetchModalTokenMissing(t *testing.T) {
	routes := happyRoutes()
	routes[2].body = "<script>nothing here</script>"
	d := &routeDoer{routes: routes}
	o := testOrchestrator(d)
	s := warmedBusySession(t, o, d)

	_, err := o.Fetch(context.Background(), s, "B09X7CRKRZ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTokenMissing))
	assert.Equal(t, Failed, s.State())
}

func TestFetchOffersFailureKeepsSession(t *testing.T) {
	routes := happyRoutes()
	routes[1].status = 503
	routes[1].body = "unavailable"
	d := &routeDoer{routes: routes}
	o := testOrchestrator(d)
	s := warmedBusySession(t, o, d)

	_, err := o.Fetch(context.Background(), s, "B09X7CRKRZ")
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, 503, terr.Status)
	assert.Equal(t, Busy, s.State(), "offer failures do not poison the session")
}

func TestFetchRequiresAcquiredSession(t *testing.T) {
	d := &routeDoer{routes: happyRoutes()}
	o := testOrchestrator(d)

	s := New(d, "")
	require.NoError(t, o.Warm(context.Background(), s))

	_, err := o.Fetch(context.Background(), s, "B09X7CRKRZ")
	var serr *StateError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, Ready, serr.State)
}

func TestFetchCachesDetailsPerASIN(t *testing.T) {
	d := &routeDoer{routes: happyRoutes()}
	o := testOrchestrator(d)
	s := warmedBusySession(t, o, d)

	_, err := o.Fetch(context.Background(), s, "B09X7CRKRZ")
	require.NoError(t, err)
	assert.True(t, o.details.Contains("B09X7CRKRZ"))
}

func TestExtractPageToken(t *testing.T) {
	token, ok := extractPageToken(pageHTML)
	require.True(t, ok)
	assert.Equal(t, "tok1value", token)

	_, ok = extractPageToken("<html><body>nothing</body></html>")
	assert.False(t, ok)

	_, ok = extractPageToken(`<span id="nav-global-location-data-modal-action" data-a-modal="{broken">`)
	assert.False(t, ok)
}

func TestFetchRejectsInvalidASIN(t *testing.T) {
	d := &routeDoer{routes: happyRoutes()}
	o := testOrchestrator(d)
	s := warmedBusySession(t, o, d)

	_, err := o.Fetch(context.Background(), s, "nope")
	require.Error(t, err)
	assert.Len(t, d.urls, 1, "only the warm request went out")
}
