package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"

	"github.com/xbuild/xbuild/pkg/engine"
	"github.com/xbuild/xbuild/pkg/options"
)

// SupportedSchemaVersion is the descriptor schema family understood by the
// parser.
const SupportedSchemaVersion = "v0.2"

// Parser decodes project and package descriptors.
type Parser struct {
	cache    *FileCache
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewParser creates a parser reading through cache.
func NewParser(cache *FileCache, logger zerolog.Logger) *Parser {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Parser{
		cache:    cache,
		validate: v,
		logger:   logger.With().Str("component", "descriptor-parser").Logger(),
	}
}

// Cache returns the file cache used by the parser.
func (p *Parser) Cache() *FileCache {
	return p.cache
}

// FindProject returns the path of the project descriptor in folder.
func FindProject(folder string) (string, error) {
	for _, name := range ProjectFileNames {
		path := filepath.Join(folder, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", engine.NewIOError(
		fmt.Sprintf("no project descriptor (%s) in '%s'", strings.Join(ProjectFileNames, ", "), folder),
		nil,
	).WithCode(engine.ErrCodeNotFound).WithSubject(folder)
}

// LoadProject finds and parses the project descriptor in folder.
func (p *Parser) LoadProject(folder string) (*ProjectDescriptor, error) {
	path, err := FindProject(folder)
	if err != nil {
		return nil, err
	}
	return p.ParseProject(path)
}

var projectFields = map[string]bool{
	"schemaVersion":  true,
	"name":           true,
	"generator":      true,
	"commands":       true,
	"toolchains":     true,
	"targets":        true,
	"profiles":       true,
	"configurations": true,
}

var commonFields = map[string]bool{
	"artefact":             true,
	"artifact":             true,
	"addSourceFolders":     true,
	"removeSourceFolders":  true,
	"addIncludeFolders":    true,
	"removeIncludeFolders": true,
	"addSymbols":           true,
	"removeSymbols":        true,
	"options":              true,
	"language":             true,
}

var configurationFields = map[string]bool{
	"target":    true,
	"toolchain": true,
	"profiles":  true,
}

// ParseProject reads and decodes the project descriptor at path.
func (p *Parser) ParseProject(path string) (*ProjectDescriptor, error) {
	doc, err := p.cache.ReadDocument(path)
	if err != nil {
		return nil, err
	}

	pd := &ProjectDescriptor{
		Path:           doc.Path,
		Folder:         filepath.Dir(doc.Path),
		Commands:       make(map[string][]string),
		Toolchains:     make(map[string]any),
		ToolOrder:      make(map[string][]string),
		Targets:        make(map[string]*CommonDescriptor),
		Profiles:       make(map[string]*CommonDescriptor),
		Configurations: make(map[string]*ConfigurationDescriptor),
		Raw:            doc.Data,
	}
	data := doc.Data

	if err := p.checkSchemaVersion(pd, data["schemaVersion"]); err != nil {
		return nil, err
	}

	for _, key := range []string{"name", "generator"} {
		if raw, ok := data[key]; ok {
			s, err := options.String(raw, key)
			if err != nil {
				return nil, err
			}
			if key == "name" {
				pd.Name = s
			} else {
				pd.Generator = s
			}
		}
	}

	if raw, ok := data["commands"]; ok {
		commands, err := options.Object(raw, "commands")
		if err != nil {
			return nil, err
		}
		for _, name := range options.SortedKeys(commands) {
			argv, err := options.StringList(commands[name], "commands."+name)
			if err != nil {
				return nil, err
			}
			pd.Commands[name] = argv
		}
	}

	if raw, ok := data["toolchains"]; ok {
		if pd.Toolchains, err = options.Object(raw, "toolchains"); err != nil {
			return nil, err
		}
		for name := range pd.Toolchains {
			keys, err := doc.ObjectKeys("toolchains", name, "tools")
			if err != nil {
				return nil, engine.NewParseError("failed to read tool order", err).
					WithCode(engine.ErrCodeSyntax).WithSubject(doc.Path)
			}
			if keys != nil {
				pd.ToolOrder[name] = keys
			}
		}
	}

	if pd.Common, err = p.parseCommon(pd, "", data, projectFields); err != nil {
		return nil, err
	}

	for _, section := range []struct {
		key string
		dst map[string]*CommonDescriptor
	}{
		{"targets", pd.Targets},
		{"profiles", pd.Profiles},
	} {
		entries, err := p.section(data, section.key)
		if err != nil {
			return nil, err
		}
		for _, name := range options.SortedKeys(entries) {
			prefix := section.key + "." + name
			m, err := options.Object(entries[name], prefix)
			if err != nil {
				return nil, err
			}
			if section.dst[name], err = p.parseCommon(pd, prefix, m, nil); err != nil {
				return nil, err
			}
		}
	}

	configurations, err := p.section(data, "configurations")
	if err != nil {
		return nil, err
	}
	for _, name := range options.SortedKeys(configurations) {
		cd, err := p.parseConfiguration(pd, name, configurations[name])
		if err != nil {
			return nil, err
		}
		pd.Configurations[name] = cd
	}

	sort.Strings(pd.Ignored)
	for _, field := range pd.Ignored {
		p.logger.Warn().Str("file", pd.Path).Str("field", field).Msg("Ignored descriptor field")
	}

	p.logger.Debug().
		Str("file", pd.Path).
		Int("targets", len(pd.Targets)).
		Int("profiles", len(pd.Profiles)).
		Int("configurations", len(pd.Configurations)).
		Msg("Project descriptor parsed")

	return pd, nil
}

func (p *Parser) checkSchemaVersion(pd *ProjectDescriptor, raw any) error {
	if raw == nil {
		return engine.NewSchemaError("Project descriptor has no mandatory 'schemaVersion'", nil).
			WithCode(engine.ErrCodeMissingField).WithSubject(pd.Path)
	}
	version, err := options.String(raw, "schemaVersion")
	if err != nil {
		return err
	}

	v := "v" + strings.TrimPrefix(version, "v")
	if !semver.IsValid(v) || semver.MajorMinor(v) != SupportedSchemaVersion {
		return engine.NewSchemaError(
			fmt.Sprintf("Project descriptor schemaVersion '%s' is an unsupported version, expected 0.2.x", version),
			nil,
		).WithCode(engine.ErrCodeUnsupportedVersion).WithSubject(pd.Path)
	}
	pd.SchemaVersion = version
	return nil
}

func (p *Parser) section(data map[string]any, key string) (map[string]any, error) {
	raw, ok := data[key]
	if !ok {
		return nil, nil
	}
	return options.Object(raw, key)
}

func (p *Parser) parseConfiguration(pd *ProjectDescriptor, name string, raw any) (*ConfigurationDescriptor, error) {
	prefix := "configurations." + name
	m, err := options.Object(raw, prefix)
	if err != nil {
		return nil, err
	}

	common, err := p.parseCommon(pd, prefix, m, configurationFields)
	if err != nil {
		return nil, err
	}
	cd := &ConfigurationDescriptor{CommonDescriptor: common, Name: name}

	var refs configurationRefs
	if rawTarget, ok := m["target"]; ok {
		if refs.Target, err = options.String(rawTarget, prefix+".target"); err != nil {
			return nil, err
		}
	}
	if rawToolchain, ok := m["toolchain"]; ok {
		if refs.Toolchain, err = options.String(rawToolchain, prefix+".toolchain"); err != nil {
			return nil, err
		}
	}
	if rawProfiles, ok := m["profiles"]; ok {
		if refs.Profiles, err = options.StringList(rawProfiles, prefix+".profiles"); err != nil {
			return nil, err
		}
		if refs.Profiles == nil {
			refs.Profiles = []string{}
		}
	}

	if err := p.validate.Struct(refs); err != nil {
		return nil, translateValidation(name, err)
	}

	cd.Target = refs.Target
	cd.Toolchain = refs.Toolchain
	cd.Profiles = refs.Profiles
	return cd, nil
}

func translateValidation(configuration string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return engine.NewSchemaError(fmt.Sprintf("Configuration '%s' is invalid", configuration), err)
	}

	fe := verrs[0]
	field := fe.Field()
	msg := fmt.Sprintf("Configuration '%s' has no mandatory '%s'", configuration, field)
	if fe.Tag() == "min" {
		msg = fmt.Sprintf("Configuration '%s' has no mandatory '%s', at least one entry is required", configuration, field)
	}
	return engine.NewSchemaError(msg, err).
		WithCode(engine.ErrCodeMissingField).
		WithSubject("configurations." + configuration + "." + field)
}

// parseCommon decodes the common-shape fields of m. Fields in extra are
// handled by the caller; anything else is recorded as ignored.
func (p *Parser) parseCommon(pd *ProjectDescriptor, prefix string, m map[string]any, extra map[string]bool) (*CommonDescriptor, error) {
	cd := newCommonDescriptor()
	path := func(key string) string {
		if prefix == "" {
			return key
		}
		return prefix + "." + key
	}

	for _, key := range options.SortedKeys(m) {
		value := m[key]
		if !commonFields[key] {
			if !extra[key] {
				pd.Ignored = append(pd.Ignored, path(key))
			}
			continue
		}

		switch key {
		case "artefact", "artifact":
			obj, err := options.Object(value, path(key))
			if err != nil {
				return nil, err
			}
			a, ignored, err := options.ArtefactFromMap(obj, path(key))
			if err != nil {
				return nil, err
			}
			for _, f := range ignored {
				pd.Ignored = append(pd.Ignored, path(key)+"."+f)
			}
			if cd.Artefact == nil {
				cd.Artefact = a
			} else {
				cd.Artefact.FillFrom(a)
			}
		case "options":
			obj, err := options.Object(value, path(key))
			if err != nil {
				return nil, err
			}
			if err := p.parseOptions(pd, path(key), obj, cd.Options); err != nil {
				return nil, err
			}
		case "language":
			s, err := options.String(value, path(key))
			if err != nil {
				return nil, err
			}
			cd.Language = s
		default:
			list, err := options.StringList(value, path(key))
			if err != nil {
				return nil, err
			}
			p.setCommonList(cd, key, list)
		}
	}
	return cd, nil
}

func (p *Parser) setCommonList(cd *CommonDescriptor, key string, list []string) {
	switch key {
	case "addSourceFolders":
		cd.Sources.AddSourceFolders = list
	case "removeSourceFolders":
		cd.Sources.RemoveSourceFolders = list
	case "addIncludeFolders":
		cd.Includes.AddIncludeFolders = list
	case "removeIncludeFolders":
		cd.Includes.RemoveIncludeFolders = list
	case "addSymbols":
		cd.Symbols.AddSymbols = list
	case "removeSymbols":
		cd.Symbols.RemoveSymbols = list
	}
}

// parseOptions decodes { "<toolchain>": { lists..., "tools": { "<tool>": { lists... } } } }.
func (p *Parser) parseOptions(pd *ProjectDescriptor, prefix string, m map[string]any, dst *options.BuildOptions) error {
	for _, toolchain := range options.SortedKeys(m) {
		tcPath := prefix + "." + toolchain
		obj, err := options.Object(m[toolchain], tcPath)
		if err != nil {
			return err
		}

		bag := options.NewToolchainOptions(toolchain)
		lists := make(map[string]any, len(obj))
		for key, value := range obj {
			if key != "tools" {
				lists[key] = value
			}
		}
		if err := p.decodeToolOptions(pd, tcPath, lists, bag.Common); err != nil {
			return err
		}

		if rawTools, ok := obj["tools"]; ok {
			tools, err := options.Object(rawTools, tcPath+".tools")
			if err != nil {
				return err
			}
			for _, tool := range options.SortedKeys(tools) {
				toolPath := tcPath + ".tools." + tool
				toolObj, err := options.Object(tools[tool], toolPath)
				if err != nil {
					return err
				}
				if err := p.decodeToolOptions(pd, toolPath, toolObj, bag.Tool(tool)); err != nil {
					return err
				}
			}
		}
		dst.Add(bag)
	}
	return nil
}

func (p *Parser) decodeToolOptions(pd *ProjectDescriptor, prefix string, m map[string]any, dst *options.ToolOptions) error {
	lists := make(map[string][]string, len(m))
	for key, value := range m {
		list, err := options.StringList(value, prefix+"."+key)
		if err != nil {
			return err
		}
		lists[key] = list
	}

	decoded, unknown := options.ToolOptionsFromMap(lists)
	for _, key := range unknown {
		pd.Ignored = append(pd.Ignored, prefix+"."+key)
	}
	dst.AppendFrom(decoded)
	return nil
}

// ParsePackage reads the package descriptor in folder.
func (p *Parser) ParsePackage(folder string) (*PackageDescriptor, error) {
	doc, err := p.cache.ReadDocument(filepath.Join(folder, PackageFileName))
	if err != nil {
		return nil, err
	}
	data := doc.Data

	pkg := &PackageDescriptor{
		Path:   doc.Path,
		Folder: filepath.Dir(doc.Path),
	}
	if name, ok := data["name"].(string); ok {
		pkg.Name = name
	}
	if version, ok := data["version"].(string); ok {
		pkg.Version = version
	}
	if _, ok := data["xpack"].(map[string]any); ok {
		pkg.IsXpack = true
	}

	if raw, ok := data["directories"]; ok {
		dirs, err := options.Object(raw, pkg.Path+": directories")
		if err != nil {
			return nil, err
		}
		if pkg.Directories.Src, err = options.StringList(dirs["src"], pkg.Path+": directories.src"); err != nil {
			return nil, err
		}
		if pkg.Directories.Include, err = options.StringList(dirs["include"], pkg.Path+": directories.include"); err != nil {
			return nil, err
		}
	}

	if raw, ok := data["dependencies"]; ok {
		if _, err := options.Object(raw, pkg.Path+": dependencies"); err != nil {
			return nil, err
		}
		if pkg.Dependencies, err = doc.ObjectKeys("dependencies"); err != nil {
			return nil, engine.NewParseError("failed to read dependencies", err).WithSubject(pkg.Path)
		}
	}

	return pkg, nil
}
