// Package markdown implements C3, the Markdown Rewriter: HTML→Markdown
// conversion via an ordered list of rules, each a (predicate,
// replacement) variant, applied first-match-wins per node.
package markdown

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// Options controls which structural rules run and how URLs resolve.
type Options struct {
	NoRules               bool
	BaseURL               string
	ImgDataURLToObjectURL bool
}

// ImageOccurrence is one <img> the img-generated-alt rule rewrote; C4
// groups these by Src to build the images mixin.
type ImageOccurrence struct {
	Index int
	Alt    string
	Src    string
}

// LinkOccurrence is one <a href> the improved-inline-link rule rewrote;
// C4 uses these, keyed by Text, to build the links mixin (later
// duplicates overwrite earlier).
type LinkOccurrence struct {
	Text string
	Href string
}

// Result is the output of ToMarkdown: the rendered string plus the
// bookkeeping C4's mixins need.
type Result struct {
	Markdown string
	Images   []ImageOccurrence
	Links    []LinkOccurrence
}

var irrelevantTags = map[string]bool{
	"meta": true, "style": true, "script": true, "noscript": true,
	"link": true, "textarea": true, "select": true,
}

// ToMarkdown converts an HTML fragment per the ordered rule list. If the
// primary run fails it retries without the plugin chain (plain v1
// converter); if that also fails it returns an empty Result.
func ToMarkdown(htmlFragment string, opts Options) Result {
	res, err := convert(htmlFragment, opts)
	if err == nil {
		return res
	}

	conv := htmlmd.NewConverter("", true, nil)
	if md, ferr := conv.ConvertString(htmlFragment); ferr == nil {
		return Result{Markdown: md}
	}

	return Result{}
}

func convert(htmlFragment string, opts Options) (Result, error) {
	nodes, err := html.ParseFragment(strings.NewReader(htmlFragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: 0,
	})
	if err != nil {
		return Result{}, err
	}

	c := &converter{opts: opts}
	var b strings.Builder
	for _, n := range nodes {
		c.renderNode(&b, n)
	}

	md := b.String()
	md = collapseBlankRuns(md)
	return Result{Markdown: strings.TrimSpace(md) + "\n", Images: c.images, Links: c.links}, nil
}

type converter struct {
	opts      Options
	imgCount  int
	images    []ImageOccurrence
	links     []LinkOccurrence
}

func (c *converter) renderNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	}

	if n.Type != html.ElementNode {
		c.renderChildren(b, n)
		return
	}

	tag := strings.ToLower(n.Data)

	// Rules 1-3 are skipped when NoRules is set.
	if !c.opts.NoRules {
		if irrelevantTags[tag] {
			return // rule 1: remove-irrelevant
		}
		if tag == "svg" {
			return // rule 2: truncate-svg
		}
		if tag == "title" {
			// rule 3: title-as-h1
			text := textContent(n)
			b.WriteString(text)
			b.WriteString("\n")
			b.WriteString(strings.Repeat("=", max(1, len(text))))
			b.WriteString("\n")
			return
		}
	}

	// Rule 4: data-url-to-pseudo-object-url, only if enabled.
	if tag == "img" && c.opts.ImgDataURLToObjectURL {
		if src := attr(n, "src"); strings.HasPrefix(src, "data:") {
			sum := md5.Sum([]byte(src))
			setAttr(n, "src", fmt.Sprintf("blob:%s/%s", originOf(c.opts.BaseURL), hex.EncodeToString(sum[:])))
		}
	}

	switch tag {
	case "p":
		// rule 5: improved-paragraph
		text := collapseNewlines(strings.TrimSpace(textContentRendered(c, n)))
		b.WriteString(text)
		b.WriteString("\n\n")
		return
	case "a":
		// rule 6: improved-inline-link
		href := attr(n, "href")
		if href != "" {
			resolved := resolveURL(c.opts.BaseURL, href)
			title := attr(n, "title")
			text := collapseSpaces(textContent(n))
			c.links = append(c.links, LinkOccurrence{Text: text, Href: resolved})
			b.WriteString("[")
			b.WriteString(text)
			b.WriteString("](")
			b.WriteString(escapeParens(resolved))
			if title != "" {
				b.WriteString(" \"")
				b.WriteString(strings.ReplaceAll(title, `"`, `\"`))
				b.WriteString("\"")
			}
			b.WriteString(")")
			return
		}
	case "code":
		if !isSoleChildOfPre(n) {
			// rule 7: improved-code
			text := textContent(n)
			b.WriteString(fenceCode(text))
			return
		}
	case "img":
		// rule 8: img-generated-alt
		c.imgCount++
		alt := attr(n, "alt")
		src := attr(n, "src")
		if src == "" {
			if ds := attr(n, "data-src"); ds != "" && !strings.HasPrefix(ds, "data:") {
				src = ds
			}
		}
		resolved := resolveURL(c.opts.BaseURL, src)
		c.images = append(c.images, ImageOccurrence{Index: c.imgCount, Alt: alt, Src: resolved})
		fmt.Fprintf(b, "![Image %d: %s](%s)", c.imgCount, alt, resolved)
		return
	case "table":
		// rule 9: GFM tables plugin.
		if md, err := tableToMarkdown(n); err == nil {
			b.WriteString(md)
			b.WriteString("\n\n")
			return
		}
	}

	c.renderChildren(b, n)
}

func (c *converter) renderChildren(b *strings.Builder, n *html.Node) {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.renderNode(b, ch)
	}
}

// textContentRendered renders a node's children through the same rule
// engine (so nested links/code/images inside a <p> still convert) and
// returns the combined text.
func textContentRendered(c *converter, n *html.Node) string {
	var b strings.Builder
	c.renderChildren(&b, n)
	return b.String()
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(nd *html.Node) {
		if nd.Type == html.TextNode {
			b.WriteString(nd.Data)
			return
		}
		for ch := nd.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return b.String()
}

func isSoleChildOfPre(n *html.Node) bool {
	p := n.Parent
	if p == nil || strings.ToLower(p.Data) != "pre" {
		return false
	}
	count := 0
	for ch := p.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type == html.ElementNode {
			count++
		}
	}
	return count == 1
}

func fenceCode(text string) string {
	if strings.Contains(text, "\n") {
		return "```\n" + text + "\n```"
	}
	maxRun := 0
	run := 0
	for _, r := range text {
		if r == '`' {
			run++
			if run > maxRun {
				maxRun = run
			}
		} else {
			run = 0
		}
	}
	fence := strings.Repeat("`", maxRun+1)
	pad := ""
	if strings.HasPrefix(text, "`") || strings.HasSuffix(text, "`") {
		pad = " "
	}
	return fence + pad + text + pad + fence
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func resolveURL(base, href string) string {
	if base == "" || href == "" {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	r, err := b.Parse(href)
	if err != nil {
		return href
	}
	return r.String()
}

func originOf(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "local"
	}
	return u.Scheme + "://" + u.Host
}

func escapeParens(s string) string {
	s = strings.ReplaceAll(s, "(", `\(`)
	s = strings.ReplaceAll(s, ")", `\)`)
	return s
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

func collapseBlankRuns(s string) string {
	return blankRunRe.ReplaceAllString(s, "\n\n")
}

func collapseNewlines(s string) string {
	return blankRunRe.ReplaceAllString(s, "\n\n")
}

var spaceRunRe = regexp.MustCompile(`\s+`)

func collapseSpaces(s string) string {
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(s, " "))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// tableToMarkdown renders a <table> subtree to HTML and hands it to the
// html-to-markdown v2 converter, which has its GFM tables plugin enabled
// by default, producing a pipe-table.
func tableToMarkdown(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	md, err := htmltomarkdown.ConvertString(buf.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}
