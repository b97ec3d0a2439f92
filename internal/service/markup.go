package service

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"metargb/media-service/internal/models"
)

// Attributes are extra <img> attributes; they override the generated ones
type Attributes map[string]string

// ParseAttributes accepts a map or a query string such as
// "class=hero&loading=lazy". Anything else yields no attributes.
func ParseAttributes(v any) Attributes {
	attrs := Attributes{}

	switch val := v.(type) {
	case nil:
	case Attributes:
		for k, s := range val {
			attrs.set(k, s)
		}
	case map[string]string:
		for k, s := range val {
			attrs.set(k, s)
		}
	case map[string]any:
		for k, s := range val {
			if s == nil {
				continue
			}
			attrs.set(k, fmt.Sprint(s))
		}
	case string:
		query, err := url.ParseQuery(strings.TrimPrefix(val, "?"))
		if err != nil {
			return attrs
		}
		for k, values := range query {
			if len(values) > 0 {
				attrs.set(k, values[len(values)-1])
			}
		}
	}

	return attrs
}

// attributeName limits names to what html.Render can emit verbatim
var attributeName = regexp.MustCompile(`^[a-z_:][a-z0-9_.:-]*$`)

// set drops names that are not plain attribute names; html.Render writes
// keys unescaped
func (a Attributes) set(name, value string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !attributeName.MatchString(name) {
		return
	}
	a[name] = value
}

// renderImg builds the <img> element for src
func renderImg(src *models.ImageSrc, size, alt string, extra Attributes) (string, error) {
	sizeClass := strings.ToLower(strings.TrimSpace(size))
	if sizeClass == "" {
		sizeClass = SizeFull
	}

	var attrs []html.Attribute
	if src.Width > 0 {
		attrs = append(attrs, html.Attribute{Key: "width", Val: strconv.Itoa(src.Width)})
	}
	if src.Height > 0 {
		attrs = append(attrs, html.Attribute{Key: "height", Val: strconv.Itoa(src.Height)})
	}
	attrs = append(attrs,
		html.Attribute{Key: "src", Val: src.URL},
		html.Attribute{Key: "class", Val: "attachment-" + sizeClass + " size-" + sizeClass},
		html.Attribute{Key: "alt", Val: strings.TrimSpace(stripTags(alt))},
		html.Attribute{Key: "decoding", Val: "async"},
	)

	used := make(map[string]bool, len(extra))
	for i := range attrs {
		if v, ok := extra[attrs[i].Key]; ok {
			attrs[i].Val = v
			used[attrs[i].Key] = true
		}
	}

	names := make([]string, 0, len(extra))
	for name := range extra {
		if !used[name] && attributeName.MatchString(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		attrs = append(attrs, html.Attribute{Key: name, Val: extra[name]})
	}

	node := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Img,
		Data:     "img",
		Attr:     attrs,
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, node); err != nil {
		return "", fmt.Errorf("failed to render image markup: %w", err)
	}
	return buf.String(), nil
}

// stripTags returns the text content of s
func stripTags(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}
