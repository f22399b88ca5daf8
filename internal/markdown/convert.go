// Package markdown turns extracted records and HTML fragments into Markdown
// documents. Everything here is pure: no I/O and no retries.
package markdown

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	paragraphRe = regexp.MustCompile(`(?is)<p(?:\s[^>]*)?>(.*?)</p>`)
	lineBreakRe = regexp.MustCompile(`(?i)<br\s*/?>`)

	inlineRules = []struct {
		re   *regexp.Regexp
		mark string
	}{
		{regexp.MustCompile(`(?is)<strong(?:\s[^>]*)?>(.*?)</strong>`), "**"},
		{regexp.MustCompile(`(?is)<b(?:\s[^>]*)?>(.*?)</b>`), "**"},
		{regexp.MustCompile(`(?is)<em(?:\s[^>]*)?>(.*?)</em>`), "*"},
		{regexp.MustCompile(`(?is)<i(?:\s[^>]*)?>(.*?)</i>`), "*"},
		{regexp.MustCompile(`(?is)<del(?:\s[^>]*)?>(.*?)</del>`), "~~"},
		{regexp.MustCompile(`(?is)<strike(?:\s[^>]*)?>(.*?)</strike>`), "~~"},
		{regexp.MustCompile(`(?is)<s(?:\s[^>]*)?>(.*?)</s>`), "~~"},
	}

	figureRe     = regexp.MustCompile(`(?is)<figure(?:\s[^>]*)?>(.*?)</figure>`)
	figureImgRe  = regexp.MustCompile(`(?is)<img\s[^>]*?src\s*=\s*["']([^"']*)["']`)
	figureCapRe  = regexp.MustCompile(`(?is)<figcaption(?:\s[^>]*)?>(.*?)</figcaption>`)
	anchorRe     = regexp.MustCompile(`(?is)<a\s[^>]*?href\s*=\s*["']([^"']*)["'][^>]*>(.*?)</a>`)
	listItemRe   = regexp.MustCompile(`(?is)<li(?:\s[^>]*)?>(.*?)</li>`)
	listWrapRe   = regexp.MustCompile(`(?i)</?(?:ul|ol)(?:\s[^>]*)?>`)
	anyTagRe     = regexp.MustCompile(`(?s)<[^>]+>`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	schemeRe     = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
	)
)

// ConvertHTML converts an HTML fragment to Markdown. Relative links are
// resolved against baseURL. The rules run in a fixed order and each one is
// independent of the others.
func ConvertHTML(fragment, baseURL string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	out := paragraphRe.ReplaceAllString(fragment, "$1\n\n")
	out = lineBreakRe.ReplaceAllString(out, "\n")
	for _, rule := range inlineRules {
		out = rule.re.ReplaceAllString(out, rule.mark+"$1"+rule.mark)
	}
	out = figureRe.ReplaceAllStringFunc(out, func(block string) string {
		return convertFigure(block, baseURL)
	})
	out = anchorRe.ReplaceAllStringFunc(out, func(tag string) string {
		m := anchorRe.FindStringSubmatch(tag)
		return fmt.Sprintf("[%s](%s)", strings.TrimSpace(m[2]), ResolveURL(baseURL, m[1]))
	})
	out = listItemRe.ReplaceAllString(out, "- $1\n")
	out = listWrapRe.ReplaceAllString(out, "")
	out = anyTagRe.ReplaceAllString(out, "")
	out = entityReplacer.Replace(out)
	out = blankLinesRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func convertFigure(block, baseURL string) string {
	inner := figureRe.FindStringSubmatch(block)[1]
	img := figureImgRe.FindStringSubmatch(inner)
	if img == nil {
		return inner
	}
	caption := ""
	if m := figureCapRe.FindStringSubmatch(inner); m != nil {
		caption = strings.TrimSpace(anyTagRe.ReplaceAllString(m[1], ""))
	}
	src := ResolveURL(baseURL, img[1])
	if caption == "" {
		return fmt.Sprintf("\n\n![](%s)\n\n", src)
	}
	return fmt.Sprintf("\n\n![%s](%s)\n*%s*\n\n", caption, src, caption)
}

// ResolveURL makes href absolute against baseURL. Hrefs with a scheme,
// fragments and mailto links are returned unchanged. A leading-slash href is
// appended to baseURL as is, other relative hrefs after a "/". baseURL is an
// origin, so a trailing slash on it is dropped first to avoid "//" joins.
// Protocol-relative hrefs ("//host/x") name another host and get https.
func ResolveURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return href
	case schemeRe.MatchString(href), strings.HasPrefix(href, "#"):
		return href
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	}
	base := strings.TrimRight(baseURL, "/")
	if strings.HasPrefix(href, "/") {
		return base + href
	}
	return base + "/" + href
}
