// Package catalog holds the immutable task template definitions: what has to
// be done, by which role, in which period, with what evidence.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/ferndale/shiftboard/internal/evidence"
	"github.com/ferndale/shiftboard/internal/period"
	"gopkg.in/yaml.v3"
)

// Role identifies who a template belongs to.
type Role string

const (
	RoleManager     Role = "manager"
	RoleChef        Role = "chef"
	RoleDutyManager Role = "duty_manager"
	RoleCEO         Role = "ceo" // review-only, owns no templates
)

// ValidRoles is the canonical set of accepted role strings.
var ValidRoles = map[Role]bool{
	RoleManager: true, RoleChef: true, RoleDutyManager: true, RoleCEO: true,
}

// Template is one checklist item definition. Immutable after load.
type Template struct {
	ID          string        `yaml:"id"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	Role        Role          `yaml:"role"`
	Evidence    evidence.Kind `yaml:"evidence"`
	Notice      bool          `yaml:"notice"`   // informational, never submittable
	Floating    bool          `yaml:"floating"` // not bound to a period, always offered
	PeriodID    string        `yaml:"period"`
	Trigger     string        `yaml:"trigger"` // gating trigger id, optional
}

// Actionable reports whether the template accepts submissions.
func (t Template) Actionable() bool { return !t.Notice }

// Catalog is the validated set of templates for one deployment.
type Catalog struct {
	templates []Template
	byID      map[string]int
}

// File is the on-disk catalog document.
type File struct {
	Tasks []Template `yaml:"tasks"`
}

// Load reads and validates a catalog YAML file against the period table.
func Load(path string, table *period.Table) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data, table)
}

// Parse unmarshals catalog YAML and validates it against the period table.
func Parse(data []byte, table *period.Table) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	return New(f.Tasks, table)
}

// New validates templates and builds a Catalog.
func New(templates []Template, table *period.Table) (*Catalog, error) {
	var errs []string
	byID := make(map[string]int, len(templates))
	for i, t := range templates {
		if t.ID == "" {
			errs = append(errs, fmt.Sprintf("tasks[%d].id is required", i))
			continue
		}
		if _, dup := byID[t.ID]; dup {
			errs = append(errs, fmt.Sprintf("tasks[%d]: duplicate id %q", i, t.ID))
			continue
		}
		byID[t.ID] = i
		if t.Title == "" {
			errs = append(errs, fmt.Sprintf("task %q: title is required", t.ID))
		}
		if !ValidRoles[t.Role] || t.Role == RoleCEO {
			errs = append(errs, fmt.Sprintf("task %q: invalid role %q", t.ID, t.Role))
		}
		kind := t.Evidence
		if kind == "" {
			kind = evidence.KindNone
		}
		if !evidence.ValidKinds[kind] {
			errs = append(errs, fmt.Sprintf("task %q: invalid evidence kind %q", t.ID, t.Evidence))
		}
		if t.Actionable() && kind == evidence.KindNone {
			errs = append(errs, fmt.Sprintf("task %q: actionable task must declare an evidence kind", t.ID))
		}
		if t.Notice && kind != evidence.KindNone {
			errs = append(errs, fmt.Sprintf("task %q: notice task cannot require evidence", t.ID))
		}
		if !t.Floating && t.PeriodID == "" {
			errs = append(errs, fmt.Sprintf("task %q: non-floating task must bind a period", t.ID))
		}
		if t.Floating && t.PeriodID != "" {
			errs = append(errs, fmt.Sprintf("task %q: floating task cannot bind a period", t.ID))
		}
		if t.PeriodID != "" && table != nil && table.ByID(t.PeriodID) == nil {
			errs = append(errs, fmt.Sprintf("task %q: unknown period %q", t.ID, t.PeriodID))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("catalog: validation failed: %s", strings.Join(errs, "; "))
	}

	out := make([]Template, len(templates))
	copy(out, templates)
	for i := range out {
		if out[i].Evidence == "" {
			out[i].Evidence = evidence.KindNone
		}
	}
	idx := make(map[string]int, len(out))
	for i, t := range out {
		idx[t.ID] = i
	}
	return &Catalog{templates: out, byID: idx}, nil
}

// For returns the non-floating templates bound to the period for the role,
// in declaration order.
func (c *Catalog) For(periodID string, role Role) []Template {
	var out []Template
	for _, t := range c.templates {
		if !t.Floating && t.PeriodID == periodID && t.Role == role {
			out = append(out, t)
		}
	}
	return out
}

// Floating returns the always-available templates for the role.
func (c *Catalog) Floating(role Role) []Template {
	var out []Template
	for _, t := range c.templates {
		if t.Floating && t.Role == role {
			out = append(out, t)
		}
	}
	return out
}

// ByID returns the template with the given id.
func (c *Catalog) ByID(id string) (Template, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Template{}, false
	}
	return c.templates[i], true
}

// All returns every template in declaration order.
func (c *Catalog) All() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// GatedBy returns the templates whose visibility is gated by the trigger.
func (c *Catalog) GatedBy(trigger string) []Template {
	var out []Template
	for _, t := range c.templates {
		if t.Trigger == trigger {
			out = append(out, t)
		}
	}
	return out
}
