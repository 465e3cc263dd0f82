package scrape

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

type link struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
}

type document struct {
	Title       string
	Description string
	Canonical   string
	Lang        string
	Meta        map[string]string
	Links       []link
	Markdown    string
}

var (
	metaKeys = map[string]bool{
		"description":         true,
		"keywords":            true,
		"author":              true,
		"og:title":            true,
		"og:description":      true,
		"og:image":            true,
		"og:type":             true,
		"twitter:title":       true,
		"twitter:description": true,
		"twitter:image":       true,
	}

	// class or id fragments that mark page chrome rather than content
	boilerplate = []string{
		"cookie", "consent", "banner", "navbar", "nav-", "menu-",
		"pagination", "share", "signup", "signin", "login",
		"advert", "promo", "modal", "popup", "breadcrumb", "sidebar",
	}

	manyNewlines = regexp.MustCompile(`\n{3,}`)
)

// parseHTML extracts metadata, links and a markdown rendering of the main
// content. base resolves relative references.
func parseHTML(body []byte, base *url.URL) (*document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := &document{Meta: map[string]string{}}
	out.Title = strings.TrimSpace(doc.Find("title").First().Text())
	out.Lang, _ = doc.Find("html").Attr("lang")

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, ok := s.Attr("name")
		if !ok {
			key, _ = s.Attr("property")
		}
		key = strings.ToLower(strings.TrimSpace(key))
		content, _ := s.Attr("content")
		content = strings.TrimSpace(content)
		if metaKeys[key] && content != "" {
			if _, seen := out.Meta[key]; !seen {
				out.Meta[key] = content
			}
		}
	})
	out.Description = out.Meta["description"]
	if out.Description == "" {
		out.Description = out.Meta["og:description"]
	}
	if out.Title == "" {
		out.Title = out.Meta["og:title"]
	}
	if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		out.Canonical = resolve(base, href)
	}

	out.Links = extractLinks(doc, base)
	out.Markdown = toMarkdown(doc, base)
	return out, nil
}

func extractLinks(doc *goquery.Document, base *url.URL) []link {
	seen := map[string]bool{}
	var links []link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs := resolve(base, href)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, link{URL: abs, Text: strings.Join(strings.Fields(s.Text()), " ")})
	})
	return links
}

// resolve returns href as an absolute http(s) URL without fragment, or ""
// when it points anywhere else.
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	u := ref
	if base != nil {
		u = base.ResolveReference(ref)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

// toMarkdown converts the page's main content area, or its body, with chrome
// stripped. It mutates doc.
func toMarkdown(doc *goquery.Document, base *url.URL) string {
	var content *goquery.Selection
	for _, sel := range []string{"main", "article", `[role="main"]`, "#content", "#main"} {
		if found := doc.Find(sel); found.Length() > 0 {
			content = found.First()
			break
		}
	}
	if content == nil {
		content = doc.Find("body")
	}

	content.Find("script, style, noscript, nav, header, footer, aside, form, iframe, svg, button, input").Remove()
	content.Find(`[role="navigation"], [role="banner"], [role="contentinfo"], [aria-modal]`).Remove()
	content.Find("[class], [id]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		marker := strings.ToLower(class + " " + id)
		for _, kw := range boilerplate {
			if strings.Contains(marker, kw) {
				s.Remove()
				return
			}
		}
	})

	domain := ""
	if base != nil {
		domain = base.Scheme + "://" + base.Host
	}
	conv := md.NewConverter(domain, true, nil)
	out := conv.Convert(content)
	out = strings.ReplaceAll(out, "\r\n", "\n")
	out = manyNewlines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
