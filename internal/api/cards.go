package api

import (
	"io"
	"log/slog"
	"strconv"
	"strings"

	"ocr-verifier/internal/model"

	"golang.org/x/net/html"
)

// ParseCards extracts item cards from the review page markup.
//
// A card is any element with class "item-card". Its key comes from data-image-name and
// data-region-idx when present, otherwise from the composite data-id. The editable text is
// the value of the nested "item-input" (input value or textarea body) and the original text
// its data-original attribute. Cards without a usable key or confidence are skipped and
// reported to log (nil: slog.Default()).
func ParseCards(r io.Reader, log *slog.Logger) ([]model.Region, error) {
	if log == nil {
		log = slog.Default()
	}
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var out []model.Region
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "item-card") {
			if reg, ok := parseCard(n, log); ok {
				out = append(out, reg)
			}
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return out, nil
}

func parseCard(card *html.Node, log *slog.Logger) (model.Region, bool) {
	key, ok := cardKey(card)
	if !ok {
		log.Warn("cards: skipping card without key", "id", attr(card, "data-id"))
		return model.Region{}, false
	}
	conf, err := strconv.ParseFloat(strings.TrimSpace(attr(card, "data-confidence")), 64)
	if err != nil {
		log.Warn("cards: skipping card with bad confidence", "id", key.ID(), "err", err)
		return model.Region{}, false
	}

	reg := model.Region{
		Key:        key,
		Confidence: conf,
		Verified:   strings.TrimSpace(attr(card, "data-verified")) == "true",
	}

	if in := findFirst(card, func(n *html.Node) bool { return hasClass(n, "item-input") }); in != nil {
		if in.Data == "textarea" {
			reg.Text = textContent(in)
		} else {
			reg.Text = attr(in, "value")
		}
		if orig, ok := attrOK(in, "data-original"); ok {
			reg.OriginalText = orig
		} else {
			reg.OriginalText = reg.Text
		}
	}
	if cb := findFirst(card, func(n *html.Node) bool { return hasClass(n, "verify-checkbox") }); cb != nil {
		_, checked := attrOK(cb, "checked")
		reg.Verified = reg.Verified || checked
	}
	if img := findFirst(card, func(n *html.Node) bool { return n.Type == html.ElementNode && n.Data == "img" }); img != nil {
		reg.CropImage = attr(img, "src")
	}
	return reg, true
}

func cardKey(card *html.Node) (model.Key, bool) {
	name, hasName := attrOK(card, "data-image-name")
	idxStr, hasIdx := attrOK(card, "data-region-idx")
	if hasName && hasIdx && strings.TrimSpace(name) != "" {
		if idx, err := strconv.Atoi(strings.TrimSpace(idxStr)); err == nil && idx >= 0 {
			return model.Key{ImageName: name, RegionIdx: idx}, true
		}
	}
	k, err := model.ParseCompositeID(attr(card, "data-id"))
	if err != nil {
		return model.Key{}, false
	}
	return k, true
}

func attrOK(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attr(n *html.Node, key string) string {
	v, _ := attrOK(n, key)
	return v
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type == html.ElementNode && match(ch) {
			return ch
		}
		if got := findFirst(ch, match); got != nil {
			return got
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return b.String()
}
