package extract

import (
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// defaultMinReadable is the shortest readability output accepted before
// falling back to the visible text of the whole page
const defaultMinReadable = 200

// TextExtractor reduces an HTML article to the plain text fed to the concept extractor
type TextExtractor struct {
	minReadable int
}

// NewTextExtractor creates a new text extractor
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{minReadable: defaultMinReadable}
}

// Article is the extracted title and body text
type Article struct {
	Title string
	Text  string
	Mode  string // "readability" or "visible"
}

// Extract extracts the readable article text, falling back to all visible text
func (e *TextExtractor) Extract(htmlContent string, pageURL string) (Article, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return Article{}, err
	}

	if article, err := readability.FromReader(strings.NewReader(htmlContent), parsedURL); err == nil {
		text := normalizeText(article.TextContent)
		if len(text) >= e.minReadable {
			return Article{Title: strings.TrimSpace(article.Title), Text: text, Mode: "readability"}, nil
		}
	}

	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return Article{}, err
	}

	return Article{
		Title: findTitle(doc),
		Text:  normalizeText(extractVisibleText(doc)),
		Mode:  "visible",
	}, nil
}

// extractVisibleText extracts text nodes from HTML, skipping scripts, styles and page chrome
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "nav", "footer", "header":
				return
			case "sup":
				// Wikipedia citation markers ([1], [2]) would become fake mentions
				if hasClass(n, "reference") {
					return
				}
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && isBlock(n.Data) {
			buf.WriteString("\n")
		}
	}

	walk(n)
	return buf.String()
}

// findTitle returns the text of the first <title> element
func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func hasClass(n *html.Node, className string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, class := range strings.Fields(attr.Val) {
				if class == className {
					return true
				}
			}
		}
	}
	return false
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "section", "article", "br":
		return true
	}
	return false
}

// normalizeText trims every line and collapses runs of blank lines
func normalizeText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
