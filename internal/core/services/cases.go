package services

import (
	"context"
	"fmt"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driven"
	"github.com/radnorm/radnorm/internal/core/ports/driving"
	"github.com/radnorm/radnorm/internal/logger"
)

// Ensure CaseService implements the interface.
var _ driving.CaseService = (*CaseService)(nil)

// CaseService exposes the parse case registry to driving adapters and
// performs ad-hoc detection on raw inputs without persisting anything.
type CaseService struct {
	registry      *CaseRegistry
	parsers       driven.ParserRegistry
	fingerprinter *Fingerprinter
}

// NewCaseService creates a case service.
func NewCaseService(registry *CaseRegistry, parsers driven.ParserRegistry) *CaseService {
	return &CaseService{
		registry:      registry,
		parsers:       parsers,
		fingerprinter: NewFingerprinter(),
	}
}

// List returns all registered cases in registration order.
func (s *CaseService) List() []domain.ParseCase {
	return s.registry.List()
}

// Get returns a case by name.
func (s *CaseService) Get(name string) (*domain.ParseCase, error) {
	return s.registry.Get(name)
}

// Register adds or replaces a case definition.
func (s *CaseService) Register(c domain.ParseCase) error {
	if err := s.registry.Register(c); err != nil {
		return err
	}
	logger.Info("Registered parse case %q (%d mappings)", c.Name, len(c.Mappings))
	return nil
}

// Detect parses the raw input, fingerprints it and matches it against the
// registry. Used by operators to preview how an unknown export would be
// handled before ingesting it.
func (s *CaseService) Detect(ctx context.Context, raw *domain.RawInput) (*domain.Detection, error) {
	root, err := s.parsers.Parse(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	fp := s.fingerprinter.Extract(root)
	logger.Debug("Fingerprint for %s: %d tokens (hash %x)", raw.SourceIdentifier, len(fp.Tokens), fp.Hash())

	detection := s.registry.Detect(fp)
	return &detection, nil
}
