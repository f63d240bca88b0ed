package parse

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yourneighborhoodchef/asinfetch/internal/logging"
	"github.com/yourneighborhoodchef/asinfetch/internal/models"
	"github.com/yourneighborhoodchef/asinfetch/internal/textscan"
)

// ParseProductDetails runs every section extractor over a product page.
// Extractors are isolated: one blowing up on a malformed subtree logs a
// warning and omits its section, the rest still run.
func ParseProductDetails(htmlText string) (*models.ProductDetails, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, fmt.Errorf("parse product html: %w", err)
	}

	details := &models.ProductDetails{}

	if doc.Find("#centerCol").Length() == 0 {
		logging.Warnf("product page has no centerCol section, nothing to extract")
		return details, nil
	}

	section("main details", func() {
		details.Main = extractMain(doc)
	})
	section("reviews histogram", func() {
		details.Reviews = extractReviews(doc)
	})
	section("product information", func() {
		details.Information = extractInformation(doc)
	})
	section("aplus content", func() {
		details.APlus = extractAPlus(doc)
	})
	section("brand story", func() {
		details.BrandStory = extractBrandStory(doc)
	})

	// the histogram block sometimes omits the headline numbers that the
	// main section already has
	if details.Reviews != nil && details.Reviews.AverageRating == nil && details.Main != nil {
		details.Reviews.AverageRating = details.Main.AverageRating
	}

	return details, nil
}

func section(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warnf("extractor %q failed: %v", name, r)
		}
	}()
	fn()
}

// ownText concatenates the selection's direct text nodes, skipping child
// elements like nested links.
func ownText(s *goquery.Selection) string {
	return s.Contents().FilterFunction(func(_ int, c *goquery.Selection) bool {
		return goquery.NodeName(c) == "#text"
	}).Text()
}

func attrOr(s *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := s.Attr(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func extractMain(doc *goquery.Document) *models.MainSection {
	center := doc.Find("#centerCol").First()
	main := &models.MainSection{}

	if title := CleanText(center.Find("span#productTitle").First().Text()); title != "" {
		main.ProductTitle = title
	}

	if brand := center.Find("a#bylineInfo").First(); brand.Length() > 0 {
		main.Brand = cleanBrand(brand.Text())
	}

	if rating := center.Find("span#acrPopover").First(); rating.Length() > 0 {
		if title, ok := rating.Attr("title"); ok {
			if v, ok := ParseLeadingDecimal(title); ok {
				main.AverageRating = &v
			}
		}
	}

	center.Find(`#feature-bullets ul li span[class*="a-list-item"]`).Each(func(_ int, s *goquery.Selection) {
		if bullet := CleanText(ownText(s)); bullet != "" {
			main.FeatureBullets = append(main.FeatureBullets, bullet)
		}
	})

	main.AvailableOptions = extractOptions(doc)
	main.Media = extractMedia(doc)

	if main.ProductTitle == "" && main.Brand == "" && main.AverageRating == nil &&
		len(main.FeatureBullets) == 0 && len(main.AvailableOptions) == 0 && main.Media == nil {
		return nil
	}
	return main
}

// byline text comes in shapes like "Visit the SanDisk Store", "Brand: LG"
// or "Shop LG".
func cleanBrand(raw string) string {
	brand := CleanText(raw)
	switch {
	case strings.HasPrefix(brand, "Visit the "):
		brand = strings.TrimSuffix(strings.TrimPrefix(brand, "Visit the "), " Store")
	case strings.HasPrefix(brand, "Brand: "):
		brand = strings.TrimPrefix(brand, "Brand: ")
	case strings.HasPrefix(brand, "Shop "):
		brand = strings.TrimPrefix(brand, "Shop ")
	}
	return brand
}

func extractOptions(doc *goquery.Document) []models.VariantOption {
	var options []models.VariantOption

	doc.Find(`div[id*="twister-"] li[class*="swatch-list-item"]`).Each(func(_ int, s *goquery.Selection) {
		var opt models.VariantOption

		opt.ASIN = attrOr(s, "data-asin")
		if opt.ASIN == "" {
			id := attrOr(s, "id")
			id = strings.TrimPrefix(id, "size_name_")
			id = strings.TrimPrefix(id, "color_name_")
			opt.ASIN = id
		}

		if label := s.Find(`span[class*="a-size-base"]`).First(); label.Length() > 0 {
			opt.Label = CleanText(ownText(label))
		}
		if opt.Label == "" {
			// image swatches carry the label in alt text
			opt.Label = CleanText(attrOr(s.Find("img").First(), "alt"))
		}

		if price := s.Find(`span[class*="a-price"] span[aria-hidden="true"]`).First(); price.Length() > 0 {
			opt.Price = ParsePrice(price.Text())
		}

		if avail := s.Find(`span[id*="availability"]`).First(); avail.Length() > 0 {
			opt.Availability = CleanText(avail.Text())
		}

		opt.Selected = isSelectedOption(s)

		if opt.ASIN != "" && opt.Label != "" {
			options = append(options, opt)
		}
	})

	return options
}

func isSelectedOption(s *goquery.Selection) bool {
	if s.Find(`span[class*="a-button-selected"]`).Length() > 0 {
		return true
	}
	if cls, ok := s.Attr("class"); ok && strings.Contains(cls, "selected") {
		return true
	}
	return s.ParentsFiltered(`[class*="a-button-selected"]`).Length() > 0
}

type scriptImage struct {
	HiRes   string `json:"hiRes"`
	Large   string `json:"large"`
	Thumb   string `json:"thumb"`
	Variant string `json:"variant"`
}

func extractMedia(doc *goquery.Document) *models.Media {
	media := &models.Media{}

	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), "ImageBlockATF") {
			script = s.Text()
			return false
		}
		return true
	})

	if script != "" {
		if span, ok := textscan.BalancedSpan(script, "'colorImages'", '[', ']'); ok {
			var images []scriptImage
			if err := json.Unmarshal([]byte(textscan.NormalizeLooseJSON(span)), &images); err != nil {
				logging.Warnf("image array in ImageBlockATF script did not parse: %v", err)
			} else {
				for _, img := range images {
					url := img.HiRes
					if url == "" {
						url = img.Large
					}
					if url == "" {
						continue
					}
					media.Images = append(media.Images, models.ImageItem{
						URL:       url,
						HighRes:   img.HiRes != "",
						Thumbnail: img.Thumb,
						Variant:   img.Variant,
						Large:     img.Large,
					})
				}
			}
		}
	}

	media.Videos = extractVideos(doc)

	if len(media.Images) == 0 && len(media.Videos) == 0 {
		return nil
	}
	return media
}

func extractVideos(doc *goquery.Document) []models.VideoItem {
	var videos []models.VideoItem

	doc.Find(`div[class*="vdp-video-card"], div[class*="vse-player-container"]`).Each(func(_ int, s *goquery.Selection) {
		url := attrOr(s.Find("video").First(), "src")
		if url == "" {
			url = attrOr(s, "data-video-url")
		}
		thumb := attrOr(s.Find("video").First(), "poster")
		if thumb == "" {
			thumb = attrOr(s.Find("img").First(), "src")
		}
		title := CleanText(s.Find(`div[class*="title"], span[class*="title"]`).First().Text())

		if url == "" {
			// newer layouts keep the payload in an a-state script
			if state := s.Find(`script[type="a-state"]`).First(); state.Length() > 0 {
				var payload struct {
					VideoURL string `json:"videoUrl"`
					ImageURL string `json:"imageUrl"`
					Title    string `json:"title"`
				}
				if err := json.Unmarshal([]byte(state.Text()), &payload); err == nil {
					url = payload.VideoURL
					thumb = payload.ImageURL
					title = CleanText(payload.Title)
				}
			}
		}

		if url != "" {
			videos = append(videos, models.VideoItem{URL: url, Thumbnail: thumb, Title: title})
		}
	})

	return videos
}

var percentRe = regexp.MustCompile(`\d+`)

func extractReviews(doc *goquery.Document) *models.ReviewSummary {
	container := doc.Find("#reviewsMedley, #cm_cr_dp_d_rating_histogram").First()
	if container.Length() == 0 {
		return nil
	}

	summary := &models.ReviewSummary{Distribution: map[int]models.StarBucket{}}

	avgText := container.Find(`span[data-hook="rating-out-of-text"], span[class*="a-icon-alt"]`).First().Text()
	if v, ok := ParseLeadingDecimal(avgText); ok {
		summary.AverageRating = &v
	}

	totalText := container.Find(`span[data-hook="total-review-count"], div[data-hook="total-review-count"]`).First().Text()
	if v, ok := ParseCount(totalText); ok {
		summary.TotalRatings = &v
	}

	if summary.TotalRatings != nil {
		total := *summary.TotalRatings
		container.Find(`table#histogramTable tr[class*="a-histogram-row"]`).Each(func(_ int, row *goquery.Selection) {
			starText := CleanText(row.Find(`td[class*="a-star-label"] a`).First().Text())
			pctText := CleanText(row.Find(`td[class*="a-text-right"] a`).First().Text())
			if starText == "" || pctText == "" {
				return
			}

			fields := strings.Fields(starText)
			if len(fields) == 0 {
				return
			}
			stars, err := strconv.Atoi(fields[0])
			if err != nil {
				return
			}
			pctDigits := percentRe.FindString(pctText)
			if pctDigits == "" {
				return
			}
			pct, err := strconv.Atoi(pctDigits)
			if err != nil {
				return
			}

			summary.Distribution[stars] = models.StarBucket{
				Percentage: pct,
				// derived, not scraped: reproducible from the two inputs
				Count: int(math.Round(float64(pct) / 100 * float64(total))),
			}
		})
	}

	if len(summary.Distribution) == 0 {
		return nil
	}
	return summary
}

var (
	ratingCountRe = regexp.MustCompile(`([\d,]+)\s+ratings`)
)

func extractInformation(doc *goquery.Document) map[string]any {
	info := map[string]any{}

	processInfoTable(doc, "#productDetails_techSpec_section_1", info)
	processInfoTable(doc, "#productDetails_detailBullets_sections1", info)

	if warranty := doc.Find(`#warranty_feature_div div[class*="a-section"]`).First(); warranty.Length() > 0 {
		if text := CleanText(warranty.Text()); text != "" {
			if link := attrOr(warranty.Find("a").First(), "href"); link != "" {
				info["warranty_information"] = map[string]any{"text": text, "link": link}
			} else {
				info["warranty_information"] = text
			}
		}
	}

	if important := doc.Find("#important-information").First(); important.Length() > 0 {
		if text := CleanText(important.Find("div.a-section.content").Text()); text != "" {
			info["important_information"] = text
		}
	}

	if len(info) == 0 {
		return nil
	}
	return info
}

func processInfoTable(doc *goquery.Document, selector string, info map[string]any) {
	table := doc.Find(selector).First()
	if table.Length() == 0 {
		return
	}

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		th := row.Find("th").First()
		td := row.Find("td").First()
		if th.Length() == 0 || td.Length() == 0 {
			return
		}

		key := CleanText(th.Text())
		value := CleanText(td.Text())
		if key == "" || value == "" {
			return
		}

		switch key {
		case "Customer Reviews":
			if cr, ok := extractCustomerReviews(td); ok {
				info[key] = cr
				return
			}
		case "Best Sellers Rank":
			if ranks := extractSellerRanks(td); len(ranks) > 0 {
				if len(ranks) == 1 {
					info[key] = ranks[0]
				} else {
					info[key] = ranks
				}
				return
			}
		}

		info[key] = value
	})
}

func extractCustomerReviews(td *goquery.Selection) (models.CustomerReviews, bool) {
	ratingText := td.Find("span.a-icon-alt").First().Text()
	countText := td.Find("span#acrCustomerReviewText").First().Text()

	rating, ok := ParseLeadingDecimal(ratingText)
	if !ok {
		return models.CustomerReviews{}, false
	}
	m := ratingCountRe.FindStringSubmatch(countText)
	if m == nil {
		return models.CustomerReviews{}, false
	}
	count, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return models.CustomerReviews{}, false
	}
	return models.CustomerReviews{Rating: rating, Count: count}, true
}

// extractSellerRanks rebuilds "#N in Category" strings from the rank and
// category sub-spans, concatenating until the next rank marker.
func extractSellerRanks(td *goquery.Selection) []string {
	var ranks []string
	var current string

	td.Find("span span").Each(func(_ int, span *goquery.Selection) {
		text := CleanText(span.Text())
		switch {
		case strings.HasPrefix(text, "#"):
			if current != "" {
				ranks = append(ranks, strings.TrimSpace(current))
			}
			current = text
		case current != "" && text != "":
			current += " " + text
		}
	})
	if current != "" {
		ranks = append(ranks, strings.TrimSpace(current))
	}

	return ranks
}

func extractAPlus(doc *goquery.Document) []models.APlusItem {
	var items []models.APlusItem

	doc.Find(`div[id*="aplus"] div[class*="celwidget"]`).Each(func(_ int, s *goquery.Selection) {
		// brand story and comparison tables have their own extractors
		if s.Closest("#aplusBrandStory_feature_div").Length() > 0 {
			return
		}
		if s.Closest(`[class*="aplus-comparison-table"]`).Length() > 0 {
			return
		}

		img := s.Find(`img:not([src*="grey.gif"])`).First()
		imgURL := attrOr(img, "data-src", "src")
		heading := CleanText(s.Find("h1, h2, h3, h4, h5").First().Text())

		var paragraphs []string
		s.Find("p").Each(func(_ int, p *goquery.Selection) {
			if text := CleanText(ownText(p)); text != "" {
				paragraphs = append(paragraphs, text)
			}
		})
		text := strings.Join(paragraphs, " ")

		switch {
		case imgURL != "":
			items = append(items, models.APlusItem{
				Type: "image_with_text",
				URL:  imgURL,
				Alt:  CleanText(attrOr(img, "alt")),
				Text: text,
			})
		case heading != "":
			items = append(items, models.APlusItem{
				Type:    "heading_with_text",
				Heading: heading,
				Text:    text,
			})
		case text != "":
			for _, existing := range items {
				if existing.Text == text {
					return
				}
			}
			items = append(items, models.APlusItem{Type: "text", Text: text})
		}
	})

	return items
}

var dpASINRe = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)

func extractBrandStory(doc *goquery.Document) *models.BrandStory {
	container := doc.Find("#aplusBrandStory_feature_div").First()
	if container.Length() == 0 {
		return nil
	}

	story := &models.BrandStory{}

	if hero := container.Find(`div[class*="apm-brand-story-hero"] img`).First(); hero.Length() > 0 {
		story.HeroImage = &models.ImageRef{
			URL: attrOr(hero, "data-src", "src"),
			Alt: CleanText(attrOr(hero, "alt")),
		}
	}

	container.Find(`[class*="apm-brand-story-carousel-card"]`).Each(func(_ int, card *goquery.Selection) {
		var c models.BrandStoryCard

		bg := card.Find(`img[class*="background"]`).First()
		if bg.Length() == 0 {
			bg = card.Find(`img:not([class*="logo"])`).First()
		}
		if bg.Length() > 0 {
			if url := attrOr(bg, "src", "data-src"); url != "" {
				c.BackgroundImage = &models.ImageRef{URL: url, Alt: CleanText(attrOr(bg, "alt"))}
			}
		}

		if logo := card.Find(`img[class*="logo"]`).First(); logo.Length() > 0 {
			if url := attrOr(logo, "src", "data-src"); url != "" {
				c.Logo = &models.ImageRef{URL: url, Alt: CleanText(attrOr(logo, "alt"))}
			}
		}

		c.Heading = CleanText(card.Find("h3, h4").First().Text())
		c.Text = CleanText(card.Find("p").First().Text())

		if href := attrOr(card.Find(`a[href*="/dp/"]`).First(), "href"); href != "" {
			if m := dpASINRe.FindStringSubmatch(href); m != nil {
				c.LinkedASIN = m[1]
			}
		}

		if c != (models.BrandStoryCard{}) {
			story.CarouselCards = append(story.CarouselCards, c)
		}
	})

	if story.HeroImage == nil && len(story.CarouselCards) == 0 {
		return nil
	}
	return story
}
