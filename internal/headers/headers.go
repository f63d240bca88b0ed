// Package headers builds the ordered request headers for each request shape
// a session sends. Every session draws a desktop browser profile from a pool
// so header values stay consistent across its handshake and fetches.
package headers

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"

	http "github.com/bogdanfinn/fhttp"
)

// Profile holds the per-session browser identity the header builders render.
type Profile struct {
	ua            string
	secCHUA       string
	chromeMajor   int
	viewportWidth int
	deviceMemory  string
	downlink      float64
	rtt           int
}

var (
	memOpts = []string{"2", "4", "8"}

	productPageOrder = []string{
		"accept",
		"accept-language",
		"cache-control",
		"device-memory",
		"dnt",
		"downlink",
		"dpr",
		"ect",
		"priority",
		"referer",
		"upgrade-insecure-requests",
		"user-agent",
		"viewport-width",
	}

	modalOrder = []string{
		"accept",
		"accept-language",
		"anti-csrftoken-a2z",
		"content-type",
		"device-memory",
		"downlink",
		"dpr",
		"ect",
		"origin",
		"referer",
		"user-agent",
		"viewport-width",
		"x-requested-with",
	}

	offersOrder = []string{
		"accept",
		"accept-language",
		"device-memory",
		"dnt",
		"downlink",
		"dpr",
		"ect",
		"priority",
		"referer",
		"rtt",
		"sec-ch-device-memory",
		"sec-ch-dpr",
		"sec-ch-ua",
		"sec-ch-ua-mobile",
		"sec-ch-ua-platform",
		"sec-ch-ua-platform-version",
		"sec-ch-viewport-width",
		"sec-fetch-dest",
		"sec-fetch-mode",
		"sec-fetch-site",
		"user-agent",
		"viewport-width",
		"x-requested-with",
	}
)

var profilePool = sync.Pool{
	New: func() interface{} {
		return generateProfile()
	},
}

func generateProfile() Profile {
	major := rand.Intn(7) + 128
	ua := fmt.Sprintf(
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36",
		major,
	)
	return Profile{
		ua: ua,
		secCHUA: fmt.Sprintf(
			`"Not A(Brand";v="8", "Chromium";v="%d", "Google Chrome";v="%d"`,
			major, major,
		),
		chromeMajor:   major,
		viewportWidth: rand.Intn(800) + 1024,
		deviceMemory:  memOpts[rand.Intn(len(memOpts))],
		downlink:      rand.Float64()*9 + 1,
		rtt:           rand.Intn(201) + 50,
	}
}

// NewProfile draws a browser identity from the pool. Sessions hold one for
// their whole lifetime so repeated requests look like the same browser.
func NewProfile() Profile {
	p := profilePool.Get().(Profile)
	profilePool.Put(p)
	return p
}

// ProductPage builds headers for the top-level product page navigation.
func (p Profile) ProductPage(productURL string) http.Header {
	h := http.Header{}
	h.Set("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
	h.Set("accept-language", "en-US,en;q=0.9")
	h.Set("cache-control", "max-age=0")
	h.Set("device-memory", p.deviceMemory)
	h.Set("dnt", "1")
	h.Set("downlink", fmt.Sprintf("%.2f", p.downlink))
	h.Set("dpr", "1")
	h.Set("ect", "4g")
	h.Set("priority", "u=0, i")
	h.Set("referer", productURL)
	h.Set("upgrade-insecure-requests", "1")
	h.Set("user-agent", p.ua)
	h.Set("viewport-width", strconv.Itoa(p.viewportWidth))
	h[http.HeaderOrderKey] = productPageOrder
	return h
}

// LocationModal builds headers for the rendered-address-selections request.
// The token from the product page rides in anti-csrftoken-a2z.
func (p Profile) LocationModal(baseURL, csrfToken string) http.Header {
	h := http.Header{}
	h.Set("accept", "text/html,*/*")
	h.Set("accept-language", "en-US,en;q=0.9")
	h.Set("anti-csrftoken-a2z", csrfToken)
	h.Set("content-type", "application/json")
	h.Set("device-memory", p.deviceMemory)
	h.Set("downlink", fmt.Sprintf("%.2f", p.downlink))
	h.Set("dpr", "1")
	h.Set("ect", "4g")
	h.Set("origin", baseURL)
	h.Set("referer", baseURL+"/")
	h.Set("user-agent", p.ua)
	h.Set("viewport-width", strconv.Itoa(p.viewportWidth))
	h.Set("x-requested-with", "XMLHttpRequest")
	h[http.HeaderOrderKey] = modalOrder
	return h
}

// OffersListing builds headers for the all-offers ajax request.
func (p Profile) OffersListing(productURL string) http.Header {
	h := http.Header{}
	h.Set("accept", "text/html,*/*")
	h.Set("accept-language", "en-US,en;q=0.9")
	h.Set("device-memory", p.deviceMemory)
	h.Set("dnt", "1")
	h.Set("downlink", fmt.Sprintf("%.2f", p.downlink))
	h.Set("dpr", "1")
	h.Set("ect", "4g")
	h.Set("priority", "u=1, i")
	h.Set("referer", productURL)
	h.Set("rtt", strconv.Itoa(p.rtt))
	h.Set("sec-ch-device-memory", p.deviceMemory)
	h.Set("sec-ch-dpr", "1")
	h.Set("sec-ch-ua", p.secCHUA)
	h.Set("sec-ch-ua-mobile", "?0")
	h.Set("sec-ch-ua-platform", `"Windows"`)
	h.Set("sec-ch-ua-platform-version", `"15.0.0"`)
	h.Set("sec-ch-viewport-width", strconv.Itoa(p.viewportWidth))
	h.Set("sec-fetch-dest", "empty")
	h.Set("sec-fetch-mode", "cors")
	h.Set("sec-fetch-site", "same-origin")
	h.Set("user-agent", p.ua)
	h.Set("viewport-width", strconv.Itoa(p.viewportWidth))
	h[http.HeaderOrderKey] = offersOrder
	return h
}
