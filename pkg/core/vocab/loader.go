package vocab

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	hjson "github.com/hjson/hjson-go/v4"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v2"

	"statement_stitch/pkg/models"
)

// ErrUnsupportedFormat is returned for vocabulary files that are neither YAML
// nor HJSON/JSON.
var ErrUnsupportedFormat = errors.New("unsupported vocabulary format")

// LoadFile reads a vocabulary file and layers it over the defaults.
//
// Statement entries present in the file replace the default entry for that
// type entirely; thresholds present in the file override the default value
// field by field. Supported extensions: .yaml, .yml, .hjson, .json.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read vocabulary %s", path)
	}

	cfg, err := Parse(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to load vocabulary %s", path)
	}
	return cfg, nil
}

// Parse decodes vocabulary data in the given format (a file extension) and
// layers it over the defaults.
func Parse(data []byte, ext string) (*Config, error) {
	overlay := Config{Thresholds: DefaultThresholds()}

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	case ".hjson", ".json":
		if err := hjson.Unmarshal(data, &overlay); err != nil {
			return nil, fmt.Errorf("failed to parse hjson: %w", err)
		}
	default:
		return nil, fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}

	cfg := Default()
	cfg.Thresholds = overlay.Thresholds
	for t, e := range overlay.Vocabulary.Statements {
		if e == nil {
			continue
		}
		if models.ParseStatementType(string(t)) == models.Unknown {
			return nil, fmt.Errorf("unknown statement type %q in vocabulary", t)
		}
		cfg.Vocabulary.Statements[models.ParseStatementType(string(t))] = e
	}
	cfg.Vocabulary.normalize()

	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
