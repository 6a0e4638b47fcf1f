package allowlist

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"github.com/okvl/guessquote-bot/internal/obslog"
)

const defaultFile = `# Author allow-list for quote selection.
#
# List the numeric user IDs whose messages are eligible as quotes. An empty
# list means every archived author is eligible.
#
# allowed_ids:
#   - 123456789
#   - 987654321
allowed_ids: []
`

type fileFormat struct {
	AllowedIDs []int64 `yaml:"allowed_ids"`
}

// Load reads the allow-list file, creating a documented default when the
// file does not exist yet. A nil or empty result means no filtering.
func Load(path string) ([]int64, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if werr := os.WriteFile(path, []byte(defaultFile), 0o644); werr != nil {
			return nil, fmt.Errorf("create allowlist %s: %w", path, werr)
		}
		obslog.L().Info("created default allowlist", zap.String("path", path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read allowlist %s: %w", path, err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse allowlist %s: %w", path, err)
	}
	if len(f.AllowedIDs) > 0 {
		obslog.L().Info("allowlist loaded", zap.String("path", path), zap.Int("authors", len(f.AllowedIDs)))
	}
	return f.AllowedIDs, nil
}
