package chaupal

import (
	"bytes"
	"html/template"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

type markdownSimplifier struct{}

// Transform will replace headings of any level by headings of the lowest level, posts being
// short enough to not need any structure.
func (m *markdownSimplifier) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	for n := node.FirstChild(); n != nil; n = n.NextSibling() {
		if n.Kind() == ast.KindHeading {
			heading := n.(*ast.Heading)
			heading.Level = 6
		}
	}
}

// hashtagParser turns "#Navratri" into a link to the explore page filtered on that tag.
type hashtagParser struct{}

func (p *hashtagParser) Trigger() []byte {
	return []byte{'#'}
}

func (p *hashtagParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, segment := block.PeekLine()

	n := hashtagLen(line)
	if n == 0 {
		return nil
	}

	tag := string(line[1:n])
	link := ast.NewLink()
	link.Destination = []byte("/api/explore?tag=" + url.QueryEscape(tag))
	link.AppendChild(link, ast.NewTextSegment(segment.WithStop(segment.Start+n)))
	block.Advance(n)

	return link
}

// hashtagLen returns the length in bytes of the hashtag starting line, including the leading
// '#', or 0 if line doesn't start with one.
func hashtagLen(line []byte) int {
	if len(line) < 2 || line[0] != '#' {
		return 0
	}

	i := 1
	for i < len(line) {
		r, size := utf8.DecodeRune(line[i:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && !unicode.Is(unicode.Mn, r) && !unicode.Is(unicode.Mc, r) {
			break
		}
		i += size
	}

	if i == 1 {
		return 0
	}
	return i
}

// Hashtags returns the lower-cased tags found in text, without their leading '#', in order
// of appearance and without duplicates. A '#' glued to a preceding word doesn't start a tag.
func Hashtags(text string) []string {
	line := []byte(text)
	seen := map[string]bool{}
	tags := []string{}

	for i := 0; i < len(line); i++ {
		if line[i] != '#' {
			continue
		}
		if i > 0 {
			prev, _ := utf8.DecodeLastRune(line[:i])
			if !unicode.IsSpace(prev) && !unicode.IsPunct(prev) {
				continue
			}
		}
		n := hashtagLen(line[i:])
		if n == 0 {
			continue
		}
		tag := strings.ToLower(string(line[i+1 : i+n]))
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
		i += n - 1
	}

	return tags
}

// HasHashtag reports whether text carries tag, ignoring case and a leading '#'.
func HasHashtag(text string, tag string) bool {
	tag = strings.ToLower(strings.TrimPrefix(tag, "#"))
	for _, t := range Hashtags(text) {
		if t == tag {
			return true
		}
	}
	return false
}

var simplifier = markdownSimplifier{}
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.NewLinkify(
			extension.WithLinkifyAllowedProtocols([][]byte{
				[]byte("http:"),
				[]byte("https:"),
			}),
		),
	),
	goldmark.WithParserOptions(
		parser.WithASTTransformers(util.Prioritized(&simplifier, 100)),
		parser.WithInlineParsers(util.Prioritized(&hashtagParser{}, 900)),
	),
)

func renderBody(body string) template.HTML {
	buf := bytes.NewBufferString("")
	source := []byte(body)
	err := md.Convert(source, buf)

	if err != nil {
		return template.HTML(template.HTMLEscapeString(body))
	}

	return template.HTML(buf.String())
}
