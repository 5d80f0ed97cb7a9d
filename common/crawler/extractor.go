package crawler

import (
	"fmt"
	"strings"

	"github.com/LexiconIndonesia/catalog-sync-service/common/models"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"github.com/samber/mo"
	"golang.org/x/net/html"
)

// Selectors locate catalog items and their fields in the rendered page
type Selectors struct {
	Item  string
	Name  string
	Price string
}

// DefaultSelectors matches the steampay catalog markup
func DefaultSelectors() Selectors {
	return Selectors{
		Item:  "a.catalog-item",
		Name:  "div.catalog-item__name",
		Price: "span.catalog-item__price-span",
	}
}

// Extractor turns a rendered catalog document into product records
type Extractor struct {
	selectors Selectors
}

func NewExtractor(selectors Selectors) *Extractor {
	return &Extractor{selectors: selectors}
}

// Extract parses document and returns its records in document order.
// Items without a name are skipped; an unparsable document is an error.
func (e *Extractor) Extract(document string) ([]models.ProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	return e.ExtractDocument(doc), nil
}

// ExtractDocument is Extract over an already parsed document
func (e *Extractor) ExtractDocument(doc *goquery.Document) []models.ProductRecord {
	records := make([]models.ProductRecord, 0)

	doc.Find(e.selectors.Item).Each(func(i int, s *goquery.Selection) {
		record, err := e.extractItem(s)
		if err != nil {
			log.Warn().Err(err).Int("position", i).Msg("Skipping catalog item")
			return
		}
		records = append(records, record)
	})

	return records
}

func (e *Extractor) extractItem(s *goquery.Selection) (models.ProductRecord, error) {
	nameSel := s.Find(e.selectors.Name).First()
	if nameSel.Length() == 0 {
		return models.ProductRecord{}, ErrExtractionMalformed
	}

	name := firstText(nameSel.Nodes[0])
	if name == "" {
		return models.ProductRecord{}, ErrExtractionMalformed
	}

	priceText := mo.None[string]()
	if priceSel := s.Find(e.selectors.Price).First(); priceSel.Length() > 0 {
		priceText = mo.Some(priceSel.Text())
	}

	var price float64
	if text, ok := priceText.Get(); ok {
		price = ParsePrice(text)
	}

	return models.ProductRecord{Name: name, Price: price}, nil
}

// firstText returns the first non-blank direct text child of n, trimmed.
// Names wrapped entirely in child elements fall back to the full text.
func firstText(n *html.Node) string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		if t := strings.TrimSpace(c.Data); t != "" {
			return t
		}
	}

	var b strings.Builder
	collectText(n, &b)
	return strings.TrimSpace(b.String())
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
