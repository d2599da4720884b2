// Package frontmatter reads the YAML header of markdown command and agent
// files. Only the header is consumed; the body is never read.
package frontmatter

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// maxHeaderLine bounds a single header line. Longer lines fail the parse.
const maxHeaderLine = 64 * 1024

// Header holds the frontmatter fields marketsync cares about.
type Header struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ParseHeader decodes the block between the leading "---" line and the next
// "---" line into matter. A reader without a leading delimiter leaves matter
// untouched and returns nil; an unterminated header is an error.
func ParseHeader(r io.Reader, matter any) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxHeaderLine)

	if !scanner.Scan() {
		return scanner.Err()
	}
	if strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\uFEFF")) != "---" {
		return nil
	}

	var buf bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			if err := yaml.Unmarshal(buf.Bytes(), matter); err != nil {
				return errors.Wrap(err, "decoding frontmatter")
			}
			return nil
		}
		buf.WriteString(strings.TrimSuffix(line, "\r"))
		buf.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "reading frontmatter")
	}
	return errors.New("missing closing frontmatter delimiter")
}

// ReadHeader opens path and parses its frontmatter into a Header.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, errors.Wrap(err, "opening file")
	}
	defer f.Close()

	if err := ParseHeader(f, &h); err != nil {
		return Header{}, errors.Wrapf(err, "parsing %s", path)
	}
	h.Description = strings.TrimSpace(h.Description)
	return h, nil
}
