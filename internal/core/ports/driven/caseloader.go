package driven

import "github.com/radnorm/radnorm/internal/core/domain"

// CaseLoader reads parse-case definitions from operator configuration.
// The registry is seeded from a loader at process start; registration at
// runtime goes through the case service instead.
type CaseLoader interface {
	// Load reads all case definitions from the given path. The path may be
	// a single definition file or a directory of them.
	Load(path string) ([]domain.ParseCase, error)
}
