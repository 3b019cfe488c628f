package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrNoHeading is returned when a document has content before its first
// heading.
var ErrNoHeading = errors.New("content before first heading")

var (
	headingPattern  = regexp.MustCompile(`^(#{1,3}) .+$`)
	sectionPrefix   = regexp.MustCompile(`^[A-Za-z0-9.]+\.\s*`)
	chapterPrefix   = regexp.MustCompile(`^Chapter\s+[0-9]+\.\s*`)
	codeFenceMarker = "```"
)

// ProtoChunk is the raw text under one heading, before token budgeting.
type ProtoChunk struct {
	Index      int
	Header     string
	HeaderPath []string
	Content    string
}

// Parser yields a document's proto-chunks in order, one per heading. A
// reference entry yields a single proto-chunk under its first heading; later
// heading lines are kept as content.
type Parser struct {
	r                *bufio.Reader
	isReferenceEntry bool

	headingPath []string
	inCodeBlock bool
	current     *ProtoChunk
	content     strings.Builder
	hasContent  bool
	nextIndex   int

	line int
	eof  bool
}

func NewParser(r io.Reader, isReferenceEntry bool) *Parser {
	return &Parser{r: bufio.NewReader(r), isReferenceEntry: isReferenceEntry}
}

// Next returns the next proto-chunk, or io.EOF once the document is
// exhausted.
func (p *Parser) Next() (ProtoChunk, error) {
	for !p.eof {
		line, err := p.r.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return ProtoChunk{}, fmt.Errorf("read line %d: %w", p.line+1, err)
			}
			p.eof = true
			if line == "" {
				break
			}
		}
		p.line++

		done, ok, err := p.consume(line)
		if err != nil {
			return ProtoChunk{}, err
		}
		if ok {
			return done, nil
		}
	}

	if p.current != nil {
		return p.close(), nil
	}
	return ProtoChunk{}, io.EOF
}

// consume feeds one line (terminator included) and reports a proto-chunk
// closed by it.
func (p *Parser) consume(line string) (ProtoChunk, bool, error) {
	text := strings.TrimRight(line, "\r\n")

	m := headingPattern.FindStringSubmatch(text)
	if m == nil || p.inCodeBlock || (p.isReferenceEntry && p.current != nil) {
		blank := strings.TrimSpace(text) == ""
		if p.current == nil {
			if blank {
				return ProtoChunk{}, false, nil
			}
			return ProtoChunk{}, false, fmt.Errorf("%w: line %d", ErrNoHeading, p.line)
		}
		if strings.HasPrefix(text, codeFenceMarker) {
			p.inCodeBlock = !p.inCodeBlock
		}
		if blank && !p.hasContent {
			return ProtoChunk{}, false, nil
		}
		p.content.WriteString(line)
		p.hasContent = true
		return ProtoChunk{}, false, nil
	}

	depth := len(m[1])
	if len(p.headingPath) > depth-1 {
		p.headingPath = p.headingPath[:depth-1]
	}
	header := cleanHeading(text)
	p.headingPath = append(p.headingPath, header)

	var done ProtoChunk
	closed := p.current != nil
	if closed {
		done = p.close()
	}

	p.current = &ProtoChunk{
		Index:      p.nextIndex,
		Header:     header,
		HeaderPath: append([]string(nil), p.headingPath...),
	}
	p.nextIndex++
	return done, closed, nil
}

func (p *Parser) close() ProtoChunk {
	out := *p.current
	out.Content = p.content.String()
	p.current = nil
	p.content.Reset()
	p.hasContent = false
	return out
}

// cleanHeading drops the # marker and "5.3. " or "Chapter 5. " numbering.
func cleanHeading(text string) string {
	h := strings.TrimSpace(strings.TrimLeft(text, "#"))
	h = strings.TrimSpace(sectionPrefix.ReplaceAllString(h, ""))
	h = strings.TrimSpace(chapterPrefix.ReplaceAllString(h, ""))
	return h
}

// ParseAll drains a parser.
func ParseAll(p *Parser) ([]ProtoChunk, error) {
	var out []ProtoChunk
	for {
		c, err := p.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
}
