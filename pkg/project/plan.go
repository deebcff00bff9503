package project

import (
	"time"

	"github.com/xbuild/xbuild/pkg/engine"
)

// Plan is the outcome of one resolution run: the prepared configurations of
// a project.
type Plan struct {
	RunID          string
	Project        *Project
	Configurations []*Configuration
	ResolvedAt     time.Time
}

// Configuration returns the named prepared configuration.
func (p *Plan) Configuration(name string) (*Configuration, bool) {
	for _, c := range p.Configurations {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Snapshot returns the serializable form of the plan, consumed by builders,
// stores and policy checks.
func (p *Plan) Snapshot() *engine.PlanSnapshot {
	s := &engine.PlanSnapshot{
		RunID:          p.RunID,
		Project:        p.Project.Name,
		Folder:         p.Project.Folder,
		Generator:      p.Project.Descriptor.Generator,
		Commands:       p.Project.Commands,
		Configurations: make([]engine.ConfigurationSnapshot, 0, len(p.Configurations)),
		ResolvedAt:     p.ResolvedAt,
	}
	for _, c := range p.Configurations {
		s.Configurations = append(s.Configurations, c.Snapshot())
	}
	return s
}
