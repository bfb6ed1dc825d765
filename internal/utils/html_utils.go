package utils

import (
	"html/template"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// EnhanceHTMLContent 为 HTML 中的图片和外链增加安全属性, 并把 @username 提及转成链接
func EnhanceHTMLContent(htmlStr string) template.HTML {
	if htmlStr == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return template.HTML(htmlStr)
	}

	// 增强图片属性
	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		s.SetAttr("referrerpolicy", "no-referrer")
		s.SetAttr("loading", "lazy")
	})

	// user generated links must not pass ranking signals
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
			s.SetAttr("rel", "nofollow ugc noopener noreferrer")
		}
	})

	// 提及: only in plain paragraphs, never inside links or code
	doc.Find("p, li").Each(func(i int, s *goquery.Selection) {
		s.Contents().Each(func(j int, n *goquery.Selection) {
			if goquery.NodeName(n) != "#text" {
				return
			}
			text := n.Text()
			if !strings.Contains(text, "@") {
				return
			}
			linked := linkMentions(text)
			if linked != template.HTMLEscapeString(text) {
				n.ReplaceWithHtml(linked)
			}
		})
	})

	// goquery renders full document tags if missing, we just want the body content
	html, _ := doc.Find("body").Html()
	if html == "" {
		html, _ = doc.Html()
	}

	return template.HTML(html)
}

// linkMentions escapes text and wraps every @username in a profile link.
func linkMentions(text string) string {
	var b strings.Builder
	last := 0
	for _, loc := range mentionPattern.FindAllStringSubmatchIndex(text, -1) {
		// loc[2:4] is the username group, the @ sits right before it
		at := loc[2] - 1
		b.WriteString(template.HTMLEscapeString(text[last:at]))
		name := text[loc[2]:loc[3]]
		b.WriteString(`<a class="mention" href="/u/` + template.HTMLEscapeString(name) + `">@` + template.HTMLEscapeString(name) + `</a>`)
		last = loc[3]
	}
	b.WriteString(template.HTMLEscapeString(text[last:]))
	return b.String()
}
