package extract

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const influenzaPage = `
<html>
<head><title>Influenza - Wikipedia</title><script>var tracking = "should not appear";</script></head>
<body>
	<nav>Main page Contents Current events</nav>
	<div id="content">
		<h1>Influenza</h1>
		<p>Influenza, commonly known as the flu, is an infectious disease caused by influenza viruses.<sup class="reference">[1]</sup>
		Symptoms range from mild to severe and often include fever, runny nose, sore throat, muscle pain,
		headache, coughing, and fatigue.</p>
		<p>These symptoms begin one to four days after exposure to the virus and last for about two to eight days.
		Diarrhea and vomiting can occur, particularly in children. Influenza may progress to pneumonia from
		the virus or a subsequent bacterial infection.</p>
		<p>Vaccination against influenza is recommended each year for people at high risk, and antiviral drugs
		such as oseltamivir are used to treat the infection.</p>
	</div>
	<footer>Privacy policy</footer>
</body>
</html>
`

func TestTextExtractor_Extract(t *testing.T) {
	extractor := NewTextExtractor()

	article, err := extractor.Extract(influenzaPage, "https://en.wikipedia.org/wiki/Influenza")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !strings.Contains(article.Text, "infectious disease caused by influenza viruses") {
		t.Errorf("Expected article body in text, got: %s", article.Text)
	}
	if strings.Contains(article.Text, "should not appear") {
		t.Error("Script content leaked into text")
	}
	if article.Mode == "" {
		t.Error("Expected extraction mode to be set")
	}
}

func TestTextExtractor_FallbackToVisibleText(t *testing.T) {
	extractor := &TextExtractor{minReadable: 1 << 20} // readability output is never long enough

	article, err := extractor.Extract(influenzaPage, "https://en.wikipedia.org/wiki/Influenza")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if article.Mode != "visible" {
		t.Fatalf("Expected visible-text fallback, got %s", article.Mode)
	}
	if article.Title != "Influenza - Wikipedia" {
		t.Errorf("Unexpected title: %q", article.Title)
	}
	for _, unwanted := range []string{"should not appear", "Main page", "Privacy policy", "[1]"} {
		if strings.Contains(article.Text, unwanted) {
			t.Errorf("Text should not contain %q", unwanted)
		}
	}
	if !strings.Contains(article.Text, "oseltamivir") {
		t.Errorf("Expected body paragraph in text, got: %s", article.Text)
	}
}

func TestTextExtractor_InvalidURL(t *testing.T) {
	_, err := NewTextExtractor().Extract("<html></html>", "://bad")
	if err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestExtractVisibleText_BlockBreaks(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<p>First paragraph.</p><p>Second paragraph.</p>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	text := normalizeText(extractVisibleText(doc))
	if text != "First paragraph.\nSecond paragraph." {
		t.Errorf("Unexpected text: %q", text)
	}
}

func TestNormalizeText(t *testing.T) {
	in := "  a   b \r\n\n\n\n c\t d \n\n"
	if got := normalizeText(in); got != "a b\n\nc d" {
		t.Errorf("normalizeText = %q", got)
	}
}
