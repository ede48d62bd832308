package strategy

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

var (
	inlineHiddenStyle = regexp.MustCompile(`(?i)display:\s*none|visibility:\s*hidden`)
	hiddenClassName   = regexp.MustCompile(`(?i)\b(hidden|hide|invisible)\b`)
	// Matches style-block rules like ".decoy { display: none }" and
	// captures the selector list.
	hiddenStyleRule = regexp.MustCompile(`(?is)([.#][\w.,#\s-]+?)\{[^}]*(?:display:\s*none|visibility:\s*hidden)[^}]*\}`)
)

// CSSHiddenStrategy handles the decoy-link trick: the gate page carries
// several candidate anchors and hides the fakes with CSS. When hidden
// decoys are present, the anchor left visible is the real destination.
// When every candidate is hidden, the hidden one is the destination the
// page reveals later.
type CSSHiddenStrategy struct {
	logger zerolog.Logger
}

func NewCSSHiddenStrategy(logger zerolog.Logger) *CSSHiddenStrategy {
	return &CSSHiddenStrategy{logger: logger.With().Str("strategy", "css_hidden").Logger()}
}

func (s *CSSHiddenStrategy) Name() string { return "CSS Hidden Element" }

func (s *CSSHiddenStrategy) Cost() time.Duration { return 0 }

func (s *CSSHiddenStrategy) Attempt(ctx context.Context, page *Page) Outcome {
	doc, err := page.Document()
	if err != nil {
		return Declined()
	}

	hiddenSelectors := collectHiddenSelectors(doc)

	var visible, hidden []string
	anyHidden := false
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		isHidden := anchorHidden(sel, hiddenSelectors)
		if isHidden {
			anyHidden = true
		}
		href, exists := sel.Attr("href")
		if !exists {
			return
		}
		resolved, ok := absolutize(href, page)
		if !ok || !isLikelyDestination(resolved) {
			return
		}
		if isHidden {
			hidden = append(hidden, resolved)
		} else {
			visible = append(visible, resolved)
		}
	})

	// Without hidden anchors there is no decoy trick on this page.
	if !anyHidden {
		return Declined()
	}
	if len(visible) > 0 {
		s.logger.Debug().Str("destination", visible[0]).Msg("Selected visible link among hidden decoys")
		return Resolved(visible[0])
	}
	if len(hidden) > 0 {
		return Resolved(hidden[0])
	}
	return Declined()
}

// collectHiddenSelectors scans <style> blocks for rules that hide their
// targets and returns the class names and ids those rules select.
func collectHiddenSelectors(doc *goquery.Document) map[string]struct{} {
	selectors := make(map[string]struct{})
	doc.Find("style").Each(func(_ int, sel *goquery.Selection) {
		for _, match := range hiddenStyleRule.FindAllStringSubmatch(sel.Text(), -1) {
			for _, part := range strings.Split(match[1], ",") {
				name := strings.TrimSpace(part)
				if name != "" {
					selectors[name] = struct{}{}
				}
			}
		}
	})
	return selectors
}

func anchorHidden(sel *goquery.Selection, hiddenSelectors map[string]struct{}) bool {
	if style, ok := sel.Attr("style"); ok && inlineHiddenStyle.MatchString(style) {
		return true
	}
	class, _ := sel.Attr("class")
	if hiddenClassName.MatchString(class) {
		return true
	}
	for _, name := range strings.Fields(class) {
		if _, ok := hiddenSelectors["."+name]; ok {
			return true
		}
	}
	if id, ok := sel.Attr("id"); ok && id != "" {
		if _, ok := hiddenSelectors["#"+id]; ok {
			return true
		}
	}
	return false
}
