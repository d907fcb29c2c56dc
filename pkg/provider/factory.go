package provider

import (
	"strings"

	"github.com/NERVsystems/osmtiles/pkg/core"
)

const filePrefix = "file:"

// Options carries settings that apply to providers built by New.
type Options struct {
	Overpass []OverpassOption
	Mock     []MockOption
	File     []FileOption
}

// New builds a provider by name: "overpass", "mock" or "file:<path>".
func New(name string, opts Options) (Provider, error) {
	n := strings.TrimSpace(name)
	switch {
	case strings.EqualFold(n, "overpass"):
		return NewOverpass(opts.Overpass...), nil
	case strings.EqualFold(n, "mock"):
		return NewMock(opts.Mock...), nil
	case strings.HasPrefix(strings.ToLower(n), filePrefix):
		path := strings.TrimSpace(n[len(filePrefix):])
		if path == "" {
			return nil, core.NewError(core.ErrConfig, "file provider needs a path").
				WithGuidance("Use file:<path>, for example file:berlin.json")
		}
		return NewFile(path, opts.File...), nil
	default:
		return nil, core.Errorf(core.ErrConfig, "Unknown provider type: %s", name).
			WithGuidance("Available providers: " + strings.Join(Available(), ", "))
	}
}

// Available lists the provider names accepted by New.
func Available() []string {
	return []string{"overpass", "mock", filePrefix + "<path>"}
}
