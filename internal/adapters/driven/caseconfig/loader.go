// Package caseconfig loads parse-case definitions from YAML files.
//
// A definition file holds one or more cases under a top-level "cases" key.
// The built-in LIDC reference pack ships embedded so a fresh install can
// detect the common annotation export shapes without any operator setup.
package caseconfig

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driven"
)

//go:embed lidc.yaml
var lidcPack []byte

// Ensure Loader implements the interface.
var _ driven.CaseLoader = (*Loader)(nil)

// casePack is the YAML document shape.
type casePack struct {
	Cases []caseDef `yaml:"cases"`
}

// caseDef is one parse case as written by operators.
type caseDef struct {
	Name          string       `yaml:"name"`
	Description   string       `yaml:"description"`
	Reference     []string     `yaml:"reference"`
	Mappings      []mappingDef `yaml:"mappings"`
	KeywordFields []string     `yaml:"keyword_fields"`
}

// mappingDef is one field-mapping rule.
type mappingDef struct {
	Field     string `yaml:"field"`
	Source    string `yaml:"source"`
	Kind      string `yaml:"kind"`
	Required  bool   `yaml:"required"`
	Default   string `yaml:"default"`
	Transform string `yaml:"transform"`
}

// Loader reads parse-case packs from disk.
type Loader struct{}

// NewLoader creates a case loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads all case definitions from path. A directory loads every
// .yaml/.yml file in it, sorted by name so pack ordering is deterministic.
func (l *Loader) Load(path string) ([]domain.ParseCase, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading case pack %s: %w", path, err)
	}

	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("reading case pack directory %s: %w", path, err)
		}
		files = files[:0]
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			switch filepath.Ext(entry.Name()) {
			case ".yaml", ".yml":
				files = append(files, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(files)
	}

	var cases []domain.ParseCase
	seen := make(map[string]string)
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading case file %s: %w", file, err)
		}
		parsed, err := parsePack(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing case file %s: %w", file, err)
		}
		for _, c := range parsed {
			if prior, ok := seen[c.Name]; ok {
				return nil, fmt.Errorf("%w: case %q defined in both %s and %s",
					domain.ErrInvalidInput, c.Name, prior, file)
			}
			seen[c.Name] = file
			cases = append(cases, c)
		}
	}
	return cases, nil
}

// Defaults returns the embedded LIDC reference pack.
func (l *Loader) Defaults() ([]domain.ParseCase, error) {
	cases, err := parsePack(lidcPack)
	if err != nil {
		return nil, fmt.Errorf("parsing built-in case pack: %w", err)
	}
	return cases, nil
}

// parsePack decodes and validates one YAML document.
func parsePack(raw []byte) ([]domain.ParseCase, error) {
	var pack casePack
	if err := yaml.Unmarshal(raw, &pack); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	cases := make([]domain.ParseCase, 0, len(pack.Cases))
	for i, def := range pack.Cases {
		c, err := def.toDomain()
		if err != nil {
			return nil, fmt.Errorf("case %d: %w", i, err)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// toDomain validates and converts one definition.
func (d caseDef) toDomain() (domain.ParseCase, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return domain.ParseCase{}, fmt.Errorf("%w: case name is required", domain.ErrInvalidInput)
	}

	mappings := make([]domain.FieldMapping, 0, len(d.Mappings))
	for _, m := range d.Mappings {
		kind := domain.FieldKind(m.Kind)
		if m.Kind == "" {
			kind = domain.KindString
		}
		if !kind.Valid() {
			return domain.ParseCase{}, fmt.Errorf("%w: case %q field %q: unknown kind %q",
				domain.ErrInvalidInput, name, m.Field, m.Kind)
		}
		if m.Field == "" || m.Source == "" {
			return domain.ParseCase{}, fmt.Errorf("%w: case %q: mapping needs field and source",
				domain.ErrInvalidInput, name)
		}
		mappings = append(mappings, domain.FieldMapping{
			Field:     m.Field,
			Source:    m.Source,
			Kind:      kind,
			Required:  m.Required,
			Default:   m.Default,
			Transform: m.Transform,
		})
	}

	tokens := make([]string, 0, len(d.Reference))
	for _, t := range d.Reference {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	sort.Strings(tokens)

	return domain.ParseCase{
		Name:          name,
		Description:   d.Description,
		Reference:     domain.StructuralFingerprint{Tokens: tokens},
		Mappings:      mappings,
		KeywordFields: d.KeywordFields,
	}, nil
}
