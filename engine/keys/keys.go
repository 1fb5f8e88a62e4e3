// Package keys provides API key accessors. Engine components receive an
// Accessor at construction instead of reading credentials from ambient state.
package keys

import (
	"os"
	"strings"

	"github.com/dnastudio/trendscout/engine/domain"
)

// Accessor returns the active API key or a *domain.ConfigError.
type Accessor interface {
	Key() (string, error)
}

// Func adapts a plain function to Accessor.
type Func func() (string, error)

func (f Func) Key() (string, error) { return f() }

// Static returns an accessor for a fixed key. A blank key yields a
// ConfigError for service.
func Static(service, key string) Accessor {
	return Func(func() (string, error) {
		k := strings.TrimSpace(key)
		if k == "" {
			return "", domain.NewConfigError(service)
		}
		return k, nil
	})
}

// Env returns an accessor that reads the first non-blank variable among names.
// Lookups happen on every call so rotated keys are picked up.
func Env(service string, names ...string) Accessor {
	return Func(func() (string, error) {
		for _, n := range names {
			if v := strings.TrimSpace(os.Getenv(n)); v != "" {
				return v, nil
			}
		}
		return "", domain.NewConfigError(service)
	})
}

// Chain tries each accessor in order and returns the first key found.
func Chain(service string, accessors ...Accessor) Accessor {
	return Func(func() (string, error) {
		for _, a := range accessors {
			if a == nil {
				continue
			}
			if k, err := a.Key(); err == nil {
				return k, nil
			}
		}
		return "", domain.NewConfigError(service)
	})
}

// YouTube is the default YouTube Data API key lookup.
func YouTube() Accessor {
	return Env("youtube", "YOUTUBE_TRENDS_API_KEY", "YOUTUBE_API_KEY", "YT_API_KEY")
}

// Gemini is the default Gemini key lookup.
func Gemini() Accessor {
	return Env("gemini", "GEMINI_API_KEY", "GOOGLE_API_KEY")
}
