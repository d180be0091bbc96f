package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText drops non-printable characters, trims the ends and collapses
// inner runs of whitespace into a single space.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}

// NodeText returns the cleaned text of every node in the selection.
func NodeText(sel *goquery.Selection) string {
	var buffer bytes.Buffer
	for _, n := range sel.Nodes {
		getTextRecursive(n, &buffer)
	}
	return CleanText(buffer.String())
}

type Anchor struct {
	Name string
	Url  *url.URL
}

// ResolveHref parses `href` and resolves it against `base`.
func ResolveHref(base *url.URL, href string) (*url.URL, error) {
	link, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, err
	}
	if base != nil {
		link = base.ResolveReference(link)
	}
	// directory listings put literal spaces in query strings, net/http would
	// send them unescaped
	link.RawQuery = strings.ReplaceAll(link.RawQuery, " ", "%20")
	return link, nil
}

// GetAnchors turns every node in the selection into an Anchor, hrefs are resolved
// relative to `base`. Nodes without an href or with an unparsable href are skipped.
func GetAnchors(base *url.URL, sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		hasHref := false
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				hasHref = true
				break
			}
		}
		if !hasHref {
			continue
		}

		link, err := ResolveHref(base, href)
		if err != nil {
			continue
		}

		anchors = append(anchors, Anchor{
			Name: CleanText(GetText(n)),
			Url:  link,
		})
	}

	return anchors
}

// NormalizeUrl renders a url in a canonical form so that equivalent links
// discovered on different pages compare equal.
func NormalizeUrl(u *url.URL) string {
	return purell.NormalizeURL(
		u,
		purell.FlagLowercaseScheme|
			purell.FlagLowercaseHost|
			purell.FlagRemoveDefaultPort|
			purell.FlagRemoveDuplicateSlashes,
	)
}
