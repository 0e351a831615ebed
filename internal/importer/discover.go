package importer

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// feedLink はHTMLのheadで見つかった<link rel="alternate">。
type feedLink struct {
	URL  string
	Atom bool
}

// feedMediaTypes はそれだけでフィードと判断できるContent-Type。
var feedMediaTypes = map[string]bool{
	"application/rss+xml":  true,
	"application/atom+xml": true,
	"application/rdf+xml":  true,
}

// mediaTypeOf はContent-Typeからパラメータを除いたメディアタイプを小文字で返す。
func mediaTypeOf(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return strings.ToLower(mt)
}

// looksLikeFeed はレスポンスがRSS/Atom文書かを判定する。
// 汎用XMLや不明なContent-Typeの場合はボディ先頭のルート要素で判断する。
func looksLikeFeed(contentType string, body []byte) bool {
	mt := mediaTypeOf(contentType)
	if feedMediaTypes[mt] {
		return true
	}
	if strings.Contains(mt, "html") {
		return false
	}

	head := body
	if len(head) > 4096 {
		head = head[:4096]
	}
	lower := strings.ToLower(string(head))
	switch {
	case strings.Contains(lower, "<rss"), strings.Contains(lower, "<rdf:rdf"):
		return true
	case strings.Contains(lower, "<feed") && strings.Contains(lower, "http://www.w3.org/2005/atom"):
		return true
	}
	return false
}

// discoverFeedLinks はHTMLのheadからRSS/Atomの代替リンクを集める。
// 相対URLはpageURL基準で絶対URLに解決する。bodyに入った時点で探索を終える。
func discoverFeedLinks(htmlBody []byte, pageURL string) []feedLink {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []feedLink
	z := html.NewTokenizer(bytes.NewReader(htmlBody))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return links
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return links
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "body":
				return links
			case "link":
				if !hasAttr {
					continue
				}
				if link, ok := readAlternateLink(z, base); ok {
					links = append(links, link)
				}
			}
		}
	}
}

// readAlternateLink は現在のlink要素の属性を読み、フィードへの代替リンクなら返す。
func readAlternateLink(z *html.Tokenizer, base *url.URL) (feedLink, bool) {
	var rel, typ, href string
	for {
		key, val, more := z.TagAttr()
		switch strings.ToLower(string(key)) {
		case "rel":
			rel = strings.ToLower(string(val))
		case "type":
			typ = strings.ToLower(string(val))
		case "href":
			href = strings.TrimSpace(string(val))
		}
		if !more {
			break
		}
	}

	if href == "" || !containsToken(rel, "alternate") {
		return feedLink{}, false
	}
	var atom bool
	switch typ {
	case "application/rss+xml":
	case "application/atom+xml":
		atom = true
	default:
		return feedLink{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return feedLink{}, false
	}
	return feedLink{URL: base.ResolveReference(ref).String(), Atom: atom}, true
}

// containsToken は空白区切りの属性値にtokenが含まれるかを返す。
func containsToken(attr, token string) bool {
	for _, f := range strings.Fields(attr) {
		if f == token {
			return true
		}
	}
	return false
}

// pickFeedLink は候補から取り込むフィードを1つ選ぶ。
// ページと同じホストのものを優先し、同点ならAtom、それでも同点なら先頭を選ぶ。
func pickFeedLink(links []feedLink, pageURL string) (feedLink, bool) {
	if len(links) == 0 {
		return feedLink{}, false
	}
	pageHost := hostOf(pageURL)

	best, bestScore := 0, -1
	for i, l := range links {
		score := 0
		if hostOf(l.URL) == pageHost {
			score += 2
		}
		if l.Atom {
			score++
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return links[best], true
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
