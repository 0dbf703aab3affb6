package session

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/Think-Big-Media/warroom-healthguard/pkg/prober"
)

// probeAccessibility fetches "/" and scores it against the fixed rubric.
// Called only when the site reachability probe already succeeded; a
// fetch failure here degrades the accessibility score to zero rather than
// aborting the session.
func (s *Session) probeAccessibility(ctx context.Context) AccessibilityResult {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.cfg.BaseURL+"/", nil)
	if err != nil {
		return AccessibilityResult{Checks: map[string]bool{}}
	}
	req.Header.Set("User-Agent", prober.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return AccessibilityResult{Checks: map[string]bool{}}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AccessibilityResult{Checks: map[string]bool{}}
	}
	return scoreAccessibility(body)
}

// accessibilityPassThreshold is the fraction of rubric checks that must
// pass; exactly 0.8 passes (spec boundary: strictly < 0.8 fails).
const accessibilityPassThreshold = 0.8

type a11yWalk struct {
	hasTitle              bool
	hasMetaDescription    bool
	headingLevels         []int
	hasNav                bool
	hasMain               bool
	hasSkipLink           bool
	hasLangAttr           bool
	imagesTotal           int
	imagesMissingAlt      int
	buttonsTotal          int
	buttonsMissingAriaLbl int
}

// scoreAccessibility evaluates the fixed rubric over raw HTML: title, meta
// description, at least one heading, a navigation landmark, a main
// landmark, a skip link, a language attribute, alt attributes on images, a
// monotonic heading hierarchy, and aria-label on buttons.
func scoreAccessibility(rawHTML []byte) AccessibilityResult {
	doc, err := html.Parse(strings.NewReader(string(rawHTML)))
	if err != nil {
		return AccessibilityResult{Score: 0, Passed: false, Checks: map[string]bool{}}
	}

	w := &a11yWalk{}
	walkA11y(doc, w)

	checks := map[string]bool{
		"title":               w.hasTitle,
		"metaDescription":      w.hasMetaDescription,
		"headingPresent":       len(w.headingLevels) > 0,
		"navLandmark":          w.hasNav,
		"mainLandmark":         w.hasMain,
		"skipLink":             w.hasSkipLink,
		"langAttribute":        w.hasLangAttr,
		"imageAltText":         w.imagesTotal == 0 || w.imagesMissingAlt == 0,
		"monotonicHeadings":    monotonicHeadings(w.headingLevels),
		"buttonAriaLabel":      w.buttonsTotal == 0 || w.buttonsMissingAriaLbl == 0,
	}

	passed := 0
	for _, ok := range checks {
		if ok {
			passed++
		}
	}
	score := float64(passed) / float64(len(checks))

	return AccessibilityResult{
		Score:  score,
		Passed: score >= accessibilityPassThreshold,
		Checks: checks,
	}
}

func walkA11y(n *html.Node, w *a11yWalk) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			w.hasTitle = strings.TrimSpace(textContent(n)) != ""
		case "meta":
			if attr(n, "name") == "description" && attr(n, "content") != "" {
				w.hasMetaDescription = true
			}
		case "html":
			if attr(n, "lang") != "" {
				w.hasLangAttr = true
			}
		case "nav":
			w.hasNav = true
		case "main":
			w.hasMain = true
		case "h1", "h2", "h3", "h4", "h5", "h6":
			w.headingLevels = append(w.headingLevels, int(n.Data[1]-'0'))
		case "img":
			w.imagesTotal++
			if !hasAttr(n, "alt") {
				w.imagesMissingAlt++
			}
		case "button":
			w.buttonsTotal++
			if attr(n, "aria-label") == "" {
				w.buttonsMissingAriaLbl++
			}
		case "a":
			if isSkipLink(n) {
				w.hasSkipLink = true
			}
		}
		if attr(n, "role") == "navigation" {
			w.hasNav = true
		}
		if attr(n, "role") == "main" {
			w.hasMain = true
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkA11y(c, w)
	}
}

func isSkipLink(n *html.Node) bool {
	href := attr(n, "href")
	if !strings.HasPrefix(href, "#") {
		return false
	}
	return strings.Contains(strings.ToLower(textContent(n)), "skip")
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// monotonicHeadings reports whether the heading sequence never jumps
// deeper by more than one level at a time (h1 -> h3 without an
// intervening h2 fails; h3 -> h1 -> h2 is fine, since going shallower is
// always allowed).
func monotonicHeadings(levels []int) bool {
	if len(levels) == 0 {
		return true
	}
	prev := 0
	for _, lvl := range levels {
		if prev != 0 && lvl > prev+1 {
			return false
		}
		prev = lvl
	}
	return true
}
