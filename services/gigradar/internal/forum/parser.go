package forum

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gigradar/services/gigradar/internal/errors"
	"gigradar/services/gigradar/internal/textnorm"

	"github.com/PuerkitoBio/goquery"
)

const NoDescription = "No description found"

var (
	threadIDRe     = regexp.MustCompile(`\.(\d+)$`)
	trailingPathRe = regexp.MustCompile(`/(unread|latest|page-\d+)/?$`)
)

// listingThread is one thread card on a board page.
type listingThread struct {
	Link     string
	ThreadID string
	Title    string
	Author   string
	Replies  *int
	Views    *int
	PostedAt *time.Time
}

var timeSelectors = []string{
	".structItem-startDate time.u-dt",
	".structItem-cell--main time.u-dt",
	".structItem-minor time.u-dt",
	"time",
}

func parseListing(body []byte, baseURL string) ([]listingThread, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Parse("parsing listing html", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.InvalidInput("forum base url", err)
	}

	var threads []listingThread
	doc.Find("div.structItem--thread").Each(func(_ int, card *goquery.Selection) {
		anchor := card.Find(".structItem-title a:not(.labelLink)").Last()
		href, ok := anchor.Attr("href")
		if !ok {
			return
		}
		link := canonicalURL(base, href)
		if link == "" {
			return
		}

		t := listingThread{
			Link:     link,
			ThreadID: threadID(link),
			Title:    strings.TrimSpace(anchor.Text()),
			Author:   author(card),
		}

		counts := card.Find(".structItem-cell--meta dl.pairs.pairs--justified dd")
		if counts.Length() > 0 {
			t.Replies = parseCount(counts.Eq(0).Text())
		}
		if counts.Length() > 1 {
			t.Views = parseCount(counts.Eq(1).Text())
		}

		for _, sel := range timeSelectors {
			node := card.Find(sel).First()
			if node.Length() == 0 {
				continue
			}
			if ts, ok := timeFromNode(node); ok {
				t.PostedAt = &ts
			}
			break
		}

		threads = append(threads, t)
	})
	return threads, nil
}

func author(card *goquery.Selection) string {
	if a, ok := card.Attr("data-author"); ok && strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return strings.TrimSpace(card.Find(".structItem-minor .username").First().Text())
}

func timeFromNode(node *goquery.Selection) (time.Time, bool) {
	for _, attr := range []string{"datetime", "data-datetime", "title"} {
		if v, ok := node.Attr(attr); ok {
			if ts, ok := parseForumTime(v); ok {
				return ts, true
			}
		}
	}
	return parseForumTime(node.Text())
}

// canonicalURL resolves href against the board and strips query, fragment
// and trailing unread/latest/page-N segments.
func canonicalURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)
	u.RawQuery = ""
	u.Fragment = ""
	path := u.Path
	for trailingPathRe.MatchString(path) {
		path = trailingPathRe.ReplaceAllString(path, "/")
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	u.Path = path
	u.RawPath = ""
	return u.String()
}

func threadID(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if m := threadIDRe.FindStringSubmatch(segments[len(segments)-1]); len(m) == 2 {
		return m[1]
	}
	return ""
}

// parseCount reads "1,234", "1.2K" and "3M" style counters.
func parseCount(raw string) *int {
	s := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(raw, ",", "")))
	if s == "" {
		return nil
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "K"):
		mult, s = 1e3, strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult, s = 1e6, strings.TrimSuffix(s, "M")
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return nil
	}
	n := int(f*mult + 0.5)
	return &n
}

var forumTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"Jan 2, 2006 at 3:04 PM",
	"Jan 2, 2006",
}

// parseForumTime accepts the layouts the board emits; numeric strings are
// unix seconds and values without a zone are UTC.
func parseForumTime(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), true
	}
	for _, layout := range forumTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseThreadBody returns the plain text of the opening post.
func parseThreadBody(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", errors.Parse("parsing thread html", err)
	}
	wrapper := doc.Find("article.message.message--post").First().Find(".message-content .bbWrapper").First()
	if wrapper.Length() == 0 {
		return NoDescription, nil
	}
	wrapper.Find("br").ReplaceWithHtml("\n")
	wrapper.Find("script, style").Remove()

	text := textnorm.CleanPostBody(wrapper.Text())
	if text == "" {
		return NoDescription, nil
	}
	return text, nil
}
