// Package rootdir resolves the per-namespace state directory for an
// instance. Operators may override the default root through an optional
// options.json shipped next to the bundle.
package rootdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/shimrun/shimrun/internal/errdefs"
)

// DefaultRoot is used when the bundle carries no options.json or the file
// does not set a root.
const DefaultRoot = "/run/shimrun"

// Resolve returns the state directory for the given bundle and namespace.
// A missing options.json is not an error; the default root applies.
func Resolve(bundle, namespace string) (string, error) {
	optionsPath := filepath.Join(bundle, "options.json")

	if _, err := os.Stat(optionsPath); err != nil {
		if os.IsNotExist(err) {
			return filepath.Join(DefaultRoot, namespace), nil
		}
		return "", fmt.Errorf("%w: stat %s: %v", errdefs.ErrResolution, optionsPath, err)
	}

	v := viper.New()
	v.SetConfigFile(optionsPath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var parseErr viper.ConfigParseError
		if errors.As(err, &parseErr) {
			return "", fmt.Errorf("%w: parsing %s: %v", errdefs.ErrConfig, optionsPath, err)
		}
		return "", fmt.Errorf("%w: reading %s: %v", errdefs.ErrResolution, optionsPath, err)
	}

	root := v.GetString("root")
	if root == "" {
		root = DefaultRoot
	}
	return filepath.Join(root, namespace), nil
}
