package copy

import (
	"regexp"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/dealpress/dealpress/app/deal"
)

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Renderer substitutes listing fields into a rule's message template.
// Unknown placeholders render as empty strings: a template authoring mistake
// must never block publishing.
type Renderer struct {
	printer  *message.Printer
	linkBase string
}

func NewRenderer(locale, linkBase string) *Renderer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Renderer{
		printer:  message.NewPrinter(tag),
		linkBase: linkBase,
	}
}

func (r *Renderer) Run(template string, l deal.Listing) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		field := placeholderPattern.FindStringSubmatch(match)[1]
		return r.fieldValue(l, field)
	})
}

func (r *Renderer) fieldValue(l deal.Listing, field string) string {
	switch field {
	case "title":
		return l.Title
	case "price":
		return r.formatPrice(l.Price)
	case "original_price":
		return r.formatPrice(l.OriginalPrice)
	case "discount":
		return strconv.Itoa(l.DiscountPct)
	case "link":
		return r.Link(l)
	case "category":
		return l.Category
	case "sku":
		return l.SKU
	default:
		return ""
	}
}

// Link resolves the outbound listing link, preferring the configured
// short-link base over the raw marketplace URL.
func (r *Renderer) Link(l deal.Listing) string {
	if r.linkBase != "" {
		return r.linkBase + "/" + l.SKU
	}
	return l.URL
}

func (r *Renderer) formatPrice(price float64) string {
	return r.printer.Sprint(number.Decimal(price,
		number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}
