// Package markup turns assignment description HTML into plain text or a small
// Markdown dialect with an ordered list of regular-expression rules.
//
// There is no parse tree. Each rule runs once over the whole string, so
// overlapping or nested markup (a list inside a paragraph, a heading inside a
// link) can come out imperfect. That output is part of the contract and must
// not be "fixed" with a DOM parser.
package markup

import (
	"regexp"
	"strconv"
	"strings"
)

// Link is an anchor found in the source markup.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

type rule struct {
	re      *regexp.Regexp
	replace func(re *regexp.Regexp, s string) string
}

func literal(repl string) func(*regexp.Regexp, string) string {
	return func(re *regexp.Regexp, s string) string {
		return re.ReplaceAllString(s, repl)
	}
}

// attrs matches the rest of an opening tag, so `<b` does not also match `<br>` or `<body>`.
const attrs = `(?:\s[^>]*)?>`

var (
	tagRe  = regexp.MustCompile(`<[^>]*>`)
	itemRe = regexp.MustCompile(`(?is)<li` + attrs + `(.*?)</li>`)
	linkRe = regexp.MustCompile(`(?is)<a\s(?:[^>]*?\s)?href\s*=\s*(?:"([^"]*)"|'([^']*)')[^>]*>(.*?)</a>`)
)

var markdownRules = []rule{
	{regexp.MustCompile(`(?is)<h1` + attrs + `(.*?)</h1>`), literal("# $1\n")},
	{regexp.MustCompile(`(?is)<h2` + attrs + `(.*?)</h2>`), literal("## $1\n")},
	{regexp.MustCompile(`(?is)<h3` + attrs + `(.*?)</h3>`), literal("### $1\n")},
	{regexp.MustCompile(`(?is)<(?:strong|b)` + attrs + `(.*?)</(?:strong|b)>`), literal("**$1**")},
	{regexp.MustCompile(`(?is)<(?:em|i)` + attrs + `(.*?)</(?:em|i)>`), literal("*$1*")},
	{regexp.MustCompile(`(?is)<ul` + attrs + `(.*?)</ul>`), replaceBlock(unorderedItems)},
	{regexp.MustCompile(`(?is)<ol` + attrs + `(.*?)</ol>`), replaceBlock(orderedItems)},
	{regexp.MustCompile(`(?i)<br\s*/?>`), literal("\n")},
	{regexp.MustCompile(`(?is)<p` + attrs + `(.*?)</p>`), literal("$1\n\n")},
	{tagRe, literal("")},
}

// StripToPlainText removes every tag and decodes &nbsp; and &amp;. Nothing else
// is decoded or trimmed.
func StripToPlainText(markup string) string {
	text := tagRe.ReplaceAllString(markup, "")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	return strings.ReplaceAll(text, "&amp;", "&")
}

// ToMarkdown renders headings 1-3, bold, italic, lists, line breaks and
// paragraphs, then deletes any tag left over.
func ToMarkdown(markup string) string {
	out := markup
	for _, r := range markdownRules {
		out = r.replace(r.re, out)
	}
	return out
}

// ExtractLinks returns anchors with an href and non-empty text in source order.
// Unterminated anchors are not matched.
func ExtractLinks(markup string) []Link {
	matches := linkRe.FindAllStringSubmatch(markup, -1)
	links := make([]Link, 0, len(matches))
	for _, m := range matches {
		href := m[1]
		if href == "" {
			href = m[2]
		}
		text := strings.TrimSpace(StripToPlainText(m[3]))
		if strings.TrimSpace(href) == "" || text == "" {
			continue
		}
		links = append(links, Link{Text: text, Href: strings.TrimSpace(href)})
	}
	return links
}

func replaceBlock(render func(string) string) func(*regexp.Regexp, string) string {
	return func(re *regexp.Regexp, s string) string {
		return re.ReplaceAllStringFunc(s, func(block string) string {
			inner := re.FindStringSubmatch(block)[1]
			return render(inner)
		})
	}
}

func unorderedItems(inner string) string {
	return itemRe.ReplaceAllString(inner, "- $1\n")
}

// orderedItems numbers items from 1 within one list block.
func orderedItems(inner string) string {
	n := 0
	return itemRe.ReplaceAllStringFunc(inner, func(item string) string {
		n++
		content := itemRe.FindStringSubmatch(item)[1]
		return strconv.Itoa(n) + ". " + content + "\n"
	})
}
