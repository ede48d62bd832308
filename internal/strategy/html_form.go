package strategy

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

var (
	downloadAnchorAttr = regexp.MustCompile(`(?i)download|btn-download|get-link`)
	downloadFormAction = regexp.MustCompile(`(?i)download|get`)
)

// HTMLFormStrategy handles gates that expose the destination through a
// plain anchor or a form whose action plus hidden inputs encode the
// target. The form is never actually submitted; the submission URL is
// reconstructed from the markup.
type HTMLFormStrategy struct {
	logger zerolog.Logger
}

func NewHTMLFormStrategy(logger zerolog.Logger) *HTMLFormStrategy {
	return &HTMLFormStrategy{logger: logger.With().Str("strategy", "html_form").Logger()}
}

func (s *HTMLFormStrategy) Name() string { return "HTML Form" }

func (s *HTMLFormStrategy) Cost() time.Duration { return 0 }

func (s *HTMLFormStrategy) Attempt(ctx context.Context, page *Page) Outcome {
	doc, err := page.Document()
	if err != nil {
		return Declined()
	}

	if dest, ok := s.findDownloadAnchor(doc, page); ok {
		return Resolved(dest)
	}
	if dest, ok := s.reconstructForm(doc, page); ok {
		return Resolved(dest)
	}
	return Declined()
}

func (s *HTMLFormStrategy) findDownloadAnchor(doc *goquery.Document, page *Page) (string, bool) {
	var dest string
	doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		id, _ := sel.Attr("id")
		if !downloadAnchorAttr.MatchString(class) && !downloadAnchorAttr.MatchString(id) {
			return true
		}
		href, exists := sel.Attr("href")
		if !exists {
			return true
		}
		if resolved, ok := absolutize(href, page); ok {
			dest = resolved
			return false
		}
		return true
	})
	return dest, dest != ""
}

// reconstructForm builds the GET target a matching form would navigate
// to: the absolutized action with every named input folded into the
// query string.
func (s *HTMLFormStrategy) reconstructForm(doc *goquery.Document, page *Page) (string, bool) {
	var dest string
	doc.Find("form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		action, exists := form.Attr("action")
		if !exists || !downloadFormAction.MatchString(action) {
			return true
		}
		target, ok := absolutize(action, page)
		if !ok {
			return true
		}

		parsed, err := url.Parse(target)
		if err != nil {
			return true
		}
		query := parsed.Query()
		form.Find("input").Each(func(_ int, input *goquery.Selection) {
			name, hasName := input.Attr("name")
			if !hasName || name == "" {
				return
			}
			value, _ := input.Attr("value")
			query.Set(name, value)
		})
		parsed.RawQuery = query.Encode()

		method, _ := form.Attr("method")
		if strings.EqualFold(method, "post") {
			// POST gates still land on the action URL; the inputs only
			// matter for GET navigation.
			dest = target
		} else {
			dest = parsed.String()
		}
		return false
	})

	if dest != "" {
		s.logger.Debug().Str("destination", dest).Msg("Reconstructed form target")
		return dest, true
	}
	return "", false
}
