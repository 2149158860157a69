package merging

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

//go:embed plans/*.yaml
var defaultPlans embed.FS

// StrategyType names a relation merge strategy.
type StrategyType string

const (
	StrategyReassignUnique     StrategyType = "reassign_unique"
	StrategyReassignAll        StrategyType = "reassign_all"
	StrategySingletonPreserve  StrategyType = "singleton_preserve"
	StrategyNumericReconcile   StrategyType = "numeric_reconcile"
	StrategyDirectedGraphMerge StrategyType = "directed_graph_merge"
	StrategyCascade            StrategyType = "cascade"
)

// Comparator picks the better of two numeric values.
type Comparator string

const (
	ComparatorMin Comparator = "min"
	ComparatorMax Comparator = "max"
)

// Step is one (relation, strategy, parameters) tuple of a plan.
type Step struct {
	Relation string       `yaml:"relation" json:"relation"`
	Strategy StrategyType `yaml:"strategy" json:"strategy"`

	// Table and Column locate the rows owned by the entity.
	Table  string            `yaml:"table,omitempty" json:"table,omitempty"`
	Column string            `yaml:"column,omitempty" json:"column,omitempty"`
	Scope  map[string]string `yaml:"scope,omitempty" json:"scope,omitempty"`

	// Keys identify duplicate rows between source and target.
	Keys []string `yaml:"keys,omitempty" json:"keys,omitempty"`

	// singleton_preserve
	Flag string `yaml:"flag,omitempty" json:"flag,omitempty"`

	// numeric_reconcile reads Field on the entity table itself.
	Field      string     `yaml:"field,omitempty" json:"field,omitempty"`
	Comparator Comparator `yaml:"comparator,omitempty" json:"comparator,omitempty"`

	// directed_graph_merge
	FromColumn string `yaml:"from_column,omitempty" json:"from_column,omitempty"`
	ToColumn   string `yaml:"to_column,omitempty" json:"to_column,omitempty"`
}

// Plan is the ordered list of steps that merges one entity kind.
type Plan struct {
	Kind  models.EntityKind `yaml:"kind" json:"kind"`
	Table string            `yaml:"table" json:"table"`
	Steps []Step            `yaml:"steps" json:"steps"`
}

// Plans indexes plans by entity kind.
type Plans map[models.EntityKind]*Plan

// Get returns the plan for kind.
func (p Plans) Get(kind models.EntityKind) (*Plan, bool) {
	plan, ok := p[kind]
	return plan, ok
}

// Kinds returns the planned kinds in a stable order.
func (p Plans) Kinds() []models.EntityKind {
	kinds := make([]models.EntityKind, 0, len(p))
	for kind := range p {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// DefaultPlans returns the plans compiled into the binary.
func DefaultPlans() (Plans, error) {
	return LoadPlans(defaultPlans, "plans")
}

// LoadPlans reads every *.yaml file in dir and validates it. Later files may
// not redefine a kind.
func LoadPlans(fsys fs.FS, dir string) (Plans, error) {
	matches, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list plans in %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no merge plans found in %s", dir)
	}
	sort.Strings(matches)

	plans := Plans{}
	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read plan %s: %w", name, err)
		}

		plan, err := ParsePlan(data)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", name, err)
		}
		if _, exists := plans[plan.Kind]; exists {
			return nil, fmt.Errorf("plan %s: kind %s is already planned", name, plan.Kind)
		}
		plans[plan.Kind] = plan
	}
	return plans, nil
}

// ParsePlan decodes and validates a single YAML plan.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate checks that every step is executable. Table and column names end
// up in SQL, so all of them must be plain identifiers.
func (p *Plan) Validate() error {
	if !p.Kind.Valid() {
		return fmt.Errorf("unknown entity kind %q", p.Kind)
	}
	if !database.ValidIdentifier(p.Table) {
		return fmt.Errorf("invalid entity table %q", p.Table)
	}

	seen := map[string]bool{}
	for i, step := range p.Steps {
		if step.Relation == "" {
			return fmt.Errorf("step %d: relation is required", i)
		}
		if seen[step.Relation] {
			return fmt.Errorf("step %d: relation %s appears twice", i, step.Relation)
		}
		seen[step.Relation] = true

		if err := step.validate(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Relation, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	if err := s.validateScope(); err != nil {
		return err
	}

	switch s.Strategy {
	case StrategyReassignUnique:
		if len(s.Keys) == 0 {
			return fmt.Errorf("%s needs keys", s.Strategy)
		}
		return s.validateOwner()
	case StrategyReassignAll, StrategyCascade:
		return s.validateOwner()
	case StrategySingletonPreserve:
		if s.Flag == "" {
			return fmt.Errorf("%s needs flag", s.Strategy)
		}
		return s.validateOwner()
	case StrategyNumericReconcile:
		if s.Field == "" {
			return fmt.Errorf("%s needs field", s.Strategy)
		}
		if s.Comparator != ComparatorMin && s.Comparator != ComparatorMax {
			return fmt.Errorf("unknown comparator %q", s.Comparator)
		}
		return identifiers(s.Field)
	case StrategyDirectedGraphMerge:
		if s.Table == "" || s.FromColumn == "" || s.ToColumn == "" {
			return fmt.Errorf("%s needs table, from_column and to_column", s.Strategy)
		}
		if s.FromColumn == s.ToColumn {
			return fmt.Errorf("from_column and to_column must differ")
		}
		return identifiers(append([]string{s.Table, s.FromColumn, s.ToColumn}, s.Keys...)...)
	default:
		return fmt.Errorf("unknown strategy %q", s.Strategy)
	}
}

func (s Step) validateOwner() error {
	if s.Table == "" || s.Column == "" {
		return fmt.Errorf("%s needs table and column", s.Strategy)
	}
	names := append([]string{s.Table, s.Column}, s.Keys...)
	if s.Flag != "" {
		names = append(names, s.Flag)
	}
	return identifiers(names...)
}

// validateScope checks scope columns for every strategy, since they are
// rendered as field names by the relation repository.
func (s Step) validateScope() error {
	for column := range s.Scope {
		if !database.ValidIdentifier(column) {
			return fmt.Errorf("invalid scope column %q", column)
		}
	}
	return nil
}

func identifiers(names ...string) error {
	for _, name := range names {
		if !database.ValidIdentifier(name) {
			return fmt.Errorf("invalid identifier %q", name)
		}
	}
	return nil
}

// References lists the table.column pairs the plan touches, used by the
// coverage check.
func (p *Plan) References() []string {
	refs := []string{}
	for _, step := range p.Steps {
		switch step.Strategy {
		case StrategyNumericReconcile:
			continue
		case StrategyDirectedGraphMerge:
			refs = append(refs, database.Column(step.Table, step.FromColumn), database.Column(step.Table, step.ToColumn))
		default:
			refs = append(refs, database.Column(step.Table, step.Column))
		}
	}
	return refs
}
