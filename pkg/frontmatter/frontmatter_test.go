package frontmatter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Header
		wantErr string
	}{
		{
			name:  "description and name",
			input: "---\nname: build\ndescription: Build the project\n---\n\n# Build\n",
			want:  Header{Name: "build", Description: "Build the project"},
		},
		{
			name:  "crlf line endings",
			input: "---\r\ndescription: Deploy\r\n---\r\nbody\r\n",
			want:  Header{Description: "Deploy"},
		},
		{
			name:  "leading byte order mark",
			input: "\uFEFF---\ndescription: Lint\n---\n",
			want:  Header{Description: "Lint"},
		},
		{
			name:  "no frontmatter",
			input: "# Just a heading\n",
			want:  Header{},
		},
		{
			name:  "empty input",
			input: "",
			want:  Header{},
		},
		{
			name:  "extra fields ignored",
			input: "---\ndescription: Review\nallowed-tools: Bash, Read\nmodel: sonnet\n---\n",
			want:  Header{Description: "Review"},
		},
		{
			name:    "unterminated",
			input:   "---\ndescription: never closed\n",
			wantErr: "missing closing frontmatter delimiter",
		},
		{
			name:    "invalid yaml",
			input:   "---\ndescription: [unclosed\n---\n",
			wantErr: "decoding frontmatter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Header
			err := ParseHeader(strings.NewReader(tt.input), &got)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "review.md")
	require.NoError(t, os.WriteFile(path, []byte("---\ndescription: |\n  Review a diff\n---\nbody\n"), 0o644))

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, "Review a diff", h.Description)

	_, err = ReadHeader(filepath.Join(dir, "missing.md"))
	require.Error(t, err)
}
