package inventory

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/thoreinstein/marketsync/pkg/fileutil"
)

// Export formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// Formats lists the formats Export accepts besides text.
var Formats = []string{FormatJSON, FormatYAML, FormatTOML}

// Export encodes the result for machine consumption. Text output is rendered
// by the CLI, not here.
func (r *Result) Export(format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "marshaling JSON")
		}
		return append(data, '\n'), nil
	case FormatYAML:
		return fileutil.MarshalYAML(r)
	case FormatTOML:
		data, err := toml.Marshal(r)
		if err != nil {
			return nil, errors.Wrap(err, "marshaling TOML")
		}
		return data, nil
	default:
		return nil, errors.Newf("unsupported format %q", format)
	}
}
