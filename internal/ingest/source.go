package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Document is one markdown page of the docs build.
type Document struct {
	Filename         string
	Title            string
	Slug             string
	IsReferenceEntry bool
	Body             io.Reader
}

// skippedPages describe the documentation itself rather than the database.
var skippedPages = map[string]bool{
	"legalnotice.md":             true,
	"biblio.md":                  true,
	"bookindex.md":               true,
	"bug-reporting.md":           true,
	"source-format.md":           true,
	"error-message-reporting.md": true,
	"error-style-guide.md":       true,
	"source-conventions.md":      true,
	"sourcerepo.md":              true,
}

func skipped(name string) bool {
	return skippedPages[name] || strings.HasPrefix(name, "docguide")
}

// ListDocuments returns the markdown files under dir relative to dir, in
// lexical order. Hidden directories and metadata pages are left out.
func ListDocuments(dir string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".md") || skipped(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list documents in %s: %w", dir, err)
	}
	return names, nil
}

// ReadDocument loads a page and parses its front matter block:
//
//	---
//	title: Table Basics
//	slug: ddl-basics.html
//	refentry: False
//	---
func ReadDocument(dir, name string) (*Document, error) {
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	doc, err := parseFrontMatter(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	doc.Filename = filepath.Base(name)
	return doc, nil
}

// parseFrontMatter splits "key: value" lines on the first colon; titles may
// contain further colons.
func parseFrontMatter(data []byte) (*Document, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	offset := 0
	readLine := func() (string, bool) {
		line, err := r.ReadString('\n')
		offset += len(line)
		if err != nil && line == "" {
			return "", false
		}
		return strings.TrimRight(line, "\r\n"), true
	}

	first, ok := readLine()
	if !ok || strings.TrimSpace(first) != "---" {
		return nil, fmt.Errorf("missing front matter")
	}

	doc := &Document{}
	closed := false
	for {
		line, ok := readLine()
		if !ok {
			break
		}
		if strings.TrimSpace(line) == "---" {
			closed = true
			break
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "title":
			doc.Title = value
		case "slug":
			doc.Slug = value
		case "refentry":
			ref, err := strconv.ParseBool(strings.ToLower(value))
			if err != nil {
				return nil, fmt.Errorf("front matter refentry %q: %w", value, err)
			}
			doc.IsReferenceEntry = ref
		}
	}
	if !closed {
		return nil, fmt.Errorf("unterminated front matter")
	}
	if doc.Slug == "" {
		return nil, fmt.Errorf("front matter has no slug")
	}

	doc.Body = bytes.NewReader(data[offset:])
	return doc, nil
}

// PageURL is the public URL of a page of the given docs version.
func PageURL(baseURL string, version int, slug string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strconv.Itoa(version) + "/" + slug
}
