package engine

import "time"

// PlanSnapshot is the serializable form of a resolved build plan.
// It is the only contract between the resolver and downstream builders.
type PlanSnapshot struct {
	// RunID uniquely identifies the resolution run that produced this plan.
	RunID string `json:"run_id" yaml:"runId"`

	// Project is the resolved project name.
	Project string `json:"project" yaml:"project"`

	// Folder is the absolute project root.
	Folder string `json:"folder" yaml:"folder"`

	// Generator is the generator requested by the descriptor, if any.
	Generator string `json:"generator,omitempty" yaml:"generator,omitempty"`

	// Commands are the named command lines declared by the project.
	Commands map[string][]string `json:"commands,omitempty" yaml:"commands,omitempty"`

	// Configurations are the resolved configurations, sorted by name.
	Configurations []ConfigurationSnapshot `json:"configurations" yaml:"configurations"`

	// ResolvedAt is when the plan was produced.
	ResolvedAt time.Time `json:"resolved_at" yaml:"resolvedAt"`
}

// ConfigurationSnapshot is one fully resolved build configuration.
type ConfigurationSnapshot struct {
	Name                 string                         `json:"name" yaml:"name"`
	Target               string                         `json:"target" yaml:"target"`
	Profiles             []string                       `json:"profiles" yaml:"profiles"`
	Toolchain            string                         `json:"toolchain" yaml:"toolchain"`
	ToolchainChain       []string                       `json:"toolchain_chain" yaml:"toolchainChain"`
	Language             string                         `json:"language" yaml:"language"`
	Tool                 ToolSnapshot                   `json:"tool" yaml:"tool"`
	Artefact             ArtefactSnapshot               `json:"artefact" yaml:"artefact"`
	SourceFolders        []string                       `json:"source_folders" yaml:"sourceFolders"`
	AddIncludeFolders    []string                       `json:"add_include_folders" yaml:"addIncludeFolders"`
	RemoveIncludeFolders []string                       `json:"remove_include_folders" yaml:"removeIncludeFolders"`
	AddSymbols           []string                       `json:"add_symbols" yaml:"addSymbols"`
	RemoveSymbols        []string                       `json:"remove_symbols" yaml:"removeSymbols"`
	Options              map[string][]string            `json:"options,omitempty" yaml:"options,omitempty"`
	ToolOptions          map[string]map[string][]string `json:"tool_options,omitempty" yaml:"toolOptions,omitempty"`
}

// ToolSnapshot describes the tool selected to produce the artefact.
type ToolSnapshot struct {
	Name            string `json:"name" yaml:"name"`
	Type            string `json:"type" yaml:"type"`
	FullCommandName string `json:"full_command_name" yaml:"fullCommandName"`
	FullDescription string `json:"full_description" yaml:"fullDescription"`
	OutputFlag      string `json:"output_flag,omitempty" yaml:"outputFlag,omitempty"`
	Output          string `json:"output,omitempty" yaml:"output,omitempty"`
}

// ArtefactSnapshot describes the final build output.
type ArtefactSnapshot struct {
	Type      string `json:"type" yaml:"type"`
	Name      string `json:"name" yaml:"name"`
	Prefix    string `json:"prefix" yaml:"prefix"`
	Suffix    string `json:"suffix" yaml:"suffix"`
	Extension string `json:"extension" yaml:"extension"`
	FullName  string `json:"full_name" yaml:"fullName"`
}

// Violation is a single policy finding against a plan.
type Violation struct {
	// Policy is the name of the policy that produced the finding.
	Policy string `json:"policy"`

	// Configuration is the offending configuration name, if any.
	Configuration string `json:"configuration,omitempty"`

	// Message is a human-readable explanation.
	Message string `json:"message"`

	// Severity is one of info, warning, error.
	Severity string `json:"severity"`
}

// CheckResult is the outcome of evaluating policies against a plan.
type CheckResult struct {
	// Allowed is false when at least one error-severity violation was found.
	Allowed bool `json:"allowed"`

	// Violations lists all findings.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists policies that failed to evaluate.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the check ran.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Configuration returns the snapshot for the named configuration.
func (p *PlanSnapshot) Configuration(name string) (*ConfigurationSnapshot, bool) {
	for i := range p.Configurations {
		if p.Configurations[i].Name == name {
			return &p.Configurations[i], true
		}
	}
	return nil, false
}
