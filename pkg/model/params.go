package model

import (
	"strconv"
	"strings"

	"github.com/chazu/kerf/pkg/kerrors"
)

// Params are the key=value settings a description is evaluated with.
type Params map[string]string

// ParseParams parses "key=value" pairs. Keys are trimmed; a later pair
// overrides an earlier one.
func ParseParams(pairs []string) (Params, error) {
	p := make(Params, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, kerrors.New(kerrors.InvalidDescription, "parameter %q is not key=value", kv)
		}
		p[k] = v
	}
	return p, nil
}

// Float returns the parameter as a number, or def when it is unset.
func (p Params) Float(key string, def float64) (float64, error) {
	s, ok := p[key]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, kerrors.Wrap(err, kerrors.InvalidDescription, "parameter %q", key)
	}
	return f, nil
}

// Get returns the parameter, or def when it is unset.
func (p Params) Get(key, def string) string {
	if s, ok := p[key]; ok {
		return s
	}
	return def
}
