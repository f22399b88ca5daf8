package extract

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/logbook-exporter/internal/content"
	"github.com/JakeFAU/logbook-exporter/internal/naming"
)

// ErrNoTitle is returned when a page has no title at all, which means it is
// not a page of the supported layout.
var ErrNoTitle = errors.New("page has no title")

// Extractor holds the selectors used to read pages.
type Extractor struct {
	sel Selectors
}

// New returns an Extractor; empty selector fields use the defaults.
func New(sel Selectors) *Extractor {
	return &Extractor{sel: sel.WithDefaults()}
}

// Selectors returns the effective selectors.
func (e *Extractor) Selectors() Selectors {
	return e.sel
}

// Review reads the owner review from the car's root page.
func (e *Extractor) Review(doc *goquery.Document, pageURL string) (content.ReviewRecord, error) {
	title := cleanText(doc.Find(e.sel.ReviewTitle).First().Text())
	if title == "" {
		return content.ReviewRecord{}, ErrNoTitle
	}
	return content.ReviewRecord{
		Title:          title,
		ReviewBodyHTML: innerHTML(doc.Find(e.sel.ReviewBody).First()),
		PassportHTML:   innerHTML(doc.Find(e.sel.ReviewPassport).First()),
		BaseURL:        Origin(pageURL),
	}, nil
}

// Listing reads the post cards of one listing page and the total page count
// advertised by its pagination markers.
func (e *Extractor) Listing(doc *goquery.Document, pageURL string) (content.ListingPage, error) {
	page := content.ListingPage{PageCount: e.pageCount(doc)}
	doc.Find(e.sel.PostCard).Each(func(_ int, card *goquery.Selection) {
		if summary, ok := e.summary(card, pageURL); ok {
			page.Posts = append(page.Posts, summary)
		}
	})
	return page, nil
}

func (e *Extractor) summary(card *goquery.Selection, pageURL string) (content.PostSummary, bool) {
	anchor := card.Find(e.sel.CardTitle).First()
	href, _ := anchor.Attr("href")
	link := Absolute(pageURL, href)
	title := cleanText(anchor.Text())
	if link == "" || title == "" {
		return content.PostSummary{}, false
	}
	summary := content.PostSummary{
		Title:    title,
		Link:     link,
		Category: cleanText(card.Find(e.sel.CardCategory).First().Text()),
		ImageURL: Absolute(pageURL, imageSource(card.Find(e.sel.CardImage).First())),
		Likes:    cleanText(card.Find(e.sel.CardLikes).First().Text()),
		Comments: cleanText(card.Find(e.sel.CardComments).First().Text()),
	}
	card.Find(e.sel.CardMetric).Each(func(_ int, s *goquery.Selection) {
		text := metricText(s)
		switch ClassifyMetric(text) {
		case MetricDate:
			setOnce(&summary.Date, text)
		case MetricMileage:
			setOnce(&summary.Mileage, text)
		case MetricPrice:
			setOnce(&summary.Price, text)
		}
	})
	return summary, true
}

// pageCount returns the largest page number among the pagination markers,
// or 1 when there are none or none parse.
func (e *Extractor) pageCount(doc *goquery.Document) int {
	highest := 1
	doc.Find(e.sel.PagerMarker).Each(func(_ int, s *goquery.Selection) {
		if n, err := strconv.Atoi(cleanText(s.Text())); err == nil && n > highest {
			highest = n
		}
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if n, err := strconv.Atoi(u.Query().Get(e.sel.PageParameter)); err == nil && n > highest {
			highest = n
		}
	})
	return highest
}

// Post reads a single post detail page.
func (e *Extractor) Post(doc *goquery.Document, pageURL string) (content.PostRecord, error) {
	title := cleanText(doc.Find(e.sel.PostTitle).First().Text())
	if title == "" {
		return content.PostRecord{}, ErrNoTitle
	}

	post := content.PostRecord{
		Title:           title,
		PublicationDate: dateValue(doc.Find(e.sel.PostDate).First()),
		ContentHTML:     innerHTML(doc.Find(e.sel.PostBody).First()),
		BaseURL:         Origin(pageURL),
	}

	author := doc.Find(e.sel.AuthorLink).First()
	post.Author.Name = cleanText(author.Text())
	if href, ok := author.Attr("href"); ok {
		post.Author.URL = strings.TrimSpace(href)
	}
	post.Author.Location = cleanText(doc.Find(e.sel.AuthorLocation).First().Text())
	doc.Find(e.sel.AuthorCars).Each(func(_ int, s *goquery.Selection) {
		name := cleanText(s.Text())
		if name == "" {
			return
		}
		href, _ := s.Attr("href")
		post.Author.Cars = append(post.Author.Cars, content.CarLink{Name: name, URL: strings.TrimSpace(href)})
	})

	doc.Find(e.sel.PostMetric).Each(func(_ int, s *goquery.Selection) {
		text := metricText(s)
		switch ClassifyMetric(text) {
		case MetricPrice:
			setOnce(&post.Metadata.Cost, text)
		case MetricMileage:
			setOnce(&post.Metadata.Mileage, text)
		}
	})

	body := doc.Find(e.sel.PostBody).First()
	body.Find(e.sel.PostFigure).Each(func(_ int, fig *goquery.Selection) {
		src := imageSource(fig.Find("img").First())
		if src == "" {
			return
		}
		post.Images = append(post.Images, content.Image{
			Src:     Absolute(pageURL, src),
			Caption: cleanText(fig.Find("figcaption").First().Text()),
		})
	})
	return post, nil
}

// MetricKind classifies the tooltip-bearing counters shown on cards.
type MetricKind int

// Metric kinds recognized by ClassifyMetric.
const (
	MetricUnknown MetricKind = iota
	MetricDate
	MetricMileage
	MetricPrice
)

var (
	mileageRe = regexp.MustCompile(`(?i)\d[\d\s\x{00a0}]*(?:тыс\.?\s*)?(?:км|km)`)
	priceRe   = regexp.MustCompile(`(?i)[₽$€]|руб|rub`)
	dottedRe  = regexp.MustCompile(`\d{1,2}\.\d{1,2}\.\d{4}`)
	wordRe    = regexp.MustCompile(`[\p{L}]+`)
)

// ClassifyMetric guesses what a counter's text describes. It is a best-effort
// heuristic over locale-specific text; date wins over mileage when both match.
func ClassifyMetric(text string) MetricKind {
	text = strings.TrimSpace(text)
	if text == "" {
		return MetricUnknown
	}
	if dottedRe.MatchString(text) {
		return MetricDate
	}
	for _, w := range wordRe.FindAllString(text, -1) {
		if naming.IsMonthName(w) {
			return MetricDate
		}
	}
	if priceRe.MatchString(text) {
		return MetricPrice
	}
	if mileageRe.MatchString(text) {
		return MetricMileage
	}
	return MetricUnknown
}

// Origin returns scheme://host of rawURL, or rawURL trimmed of a trailing
// slash when it does not parse.
func Origin(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(rawURL, "/")
	}
	return u.Scheme + "://" + u.Host
}

// Absolute resolves href against pageURL. Empty hrefs stay empty.
func Absolute(pageURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// numericEntities maps the numeric escapes produced by the HTML renderer to
// the forms a browser's innerHTML would emit.
var numericEntities = strings.NewReplacer("&#34;", "&quot;", "&#39;", "'")

func innerHTML(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	html, err := s.Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(numericEntities.Replace(html))
}

func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-original"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(v, "data:") {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func dateValue(s *goquery.Selection) string {
	for _, attr := range []string{"content", "datetime"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return cleanText(s.Text())
}

func metricText(s *goquery.Selection) string {
	if text := cleanText(s.Text()); text != "" {
		return text
	}
	v, _ := s.Attr("data-tt")
	return cleanText(v)
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
