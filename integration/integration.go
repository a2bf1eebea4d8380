// Package integration loads YAML manifests describing the external
// services a compiled state machine may call and exposes them as a
// core.LookupService, the way the sheens service layer reads its spec
// directory off disk and turns it into runnable machinery.
package integration

import (
	"fmt"
	"io/ioutil"
	"strings"
	"sync"

	"github.com/gorhill/cronexpr"
	"github.com/jsccast/yaml"

	"github.com/aslcompile/aslc/ast"
	"github.com/aslcompile/aslc/core"
)

// Descriptor is the on-disk shape of one integration manifest entry.
// Name is the qualified call name a compiled function invokes it
// under, e.g. "ddb.table.getItem".
type Descriptor struct {
	Name           string   `yaml:"name"`
	Resource       string   `yaml:"resource"`
	TimeoutSeconds int      `yaml:"timeoutSeconds"`
	Params         []string `yaml:"params"`
	Retry          []Retry  `yaml:"retry"`

	// Schedule, if set, is a cron expression describing when this
	// integration is expected to run unattended (a scheduled Task
	// outside any call graph). It is validated at load time but not
	// otherwise interpreted by this package.
	Schedule string `yaml:"schedule"`
}

// Retry mirrors core.RetryRule in YAML-friendly form.
type Retry struct {
	ErrorEquals     []string `yaml:"errorEquals"`
	IntervalSeconds int      `yaml:"intervalSeconds"`
	MaxAttempts     int      `yaml:"maxAttempts"`
	BackoffRate     float64  `yaml:"backoffRate"`
}

type manifest struct {
	Integrations []Descriptor `yaml:"integrations"`
}

// Manifest is a loaded, validated set of integration descriptors,
// implementing core.LookupService by wrapping a core.Registry.
type Manifest struct {
	mu       sync.RWMutex
	registry *core.Registry
	schedule map[string]*cronexpr.Expression
}

// NewManifest makes an empty Manifest.
func NewManifest() *Manifest {
	return &Manifest{registry: core.NewRegistry(), schedule: map[string]*cronexpr.Expression{}}
}

// Resolve implements core.LookupService.
func (m *Manifest) Resolve(callee ast.Expr) (core.Integration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.Resolve(callee)
}

// Schedule returns the parsed cron expression registered for name, if
// any.
func (m *Manifest) Schedule(name string) (*cronexpr.Expression, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.schedule[name]
	return c, ok
}

// Add registers one descriptor, validating its Schedule (if any)
// eagerly so a malformed cron expression fails at load time rather
// than at the first attempted lookup.
func (m *Manifest) Add(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("integration: descriptor missing name")
	}
	if d.Resource == "" {
		return fmt.Errorf("integration %q: missing resource", d.Name)
	}
	retry := make([]core.RetryRule, 0, len(d.Retry))
	for _, r := range d.Retry {
		retry = append(retry, core.RetryRule{
			ErrorEquals:     r.ErrorEquals,
			IntervalSeconds: r.IntervalSeconds,
			MaxAttempts:     r.MaxAttempts,
			BackoffRate:     r.BackoffRate,
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry.Register(d.Name, &core.TaskIntegration{
		QualifiedName:  d.Name,
		Resource:       d.Resource,
		TimeoutSeconds: d.TimeoutSeconds,
		Retry:          retry,
		ParamNames:     d.Params,
	})
	if d.Schedule != "" {
		c, err := cronexpr.Parse(d.Schedule)
		if err != nil {
			return fmt.Errorf("integration %q: bad schedule %q: %w", d.Name, d.Schedule, err)
		}
		m.schedule[d.Name] = c
	}
	return nil
}

// LoadFile parses one YAML manifest file and adds every descriptor it
// contains.
func (m *Manifest) LoadFile(filename string) error {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return err
	}
	var doc manifest
	if err := yaml.Unmarshal(bs, &doc); err != nil {
		return fmt.Errorf("integration: parsing %s: %w", filename, err)
	}
	for _, d := range doc.Integrations {
		if err := m.Add(d); err != nil {
			return fmt.Errorf("integration: %s: %w", filename, err)
		}
	}
	return nil
}

// LoadDir loads every "*.yaml" file directly inside dir (no
// recursion), mirroring the flat spec-directory convention the
// sheens service layer uses for its own YAML specs.
func LoadDir(dir string) (*Manifest, error) {
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	m := NewManifest()
	for _, fi := range files {
		name := fi.Name()
		if fi.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		if err := m.LoadFile(dir + "/" + name); err != nil {
			return nil, err
		}
	}
	return m, nil
}
