package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Flags is a bit set describing how a dependency takes part in the application.
type Flags uint32

const (
	// FlagDirect marks dependencies declared by the application itself.
	FlagDirect Flags = 1 << iota
	// FlagOptional marks dependencies introduced through an optional edge.
	FlagOptional
	// FlagRuntimeCP marks dependencies on the runtime classpath.
	FlagRuntimeCP
	// FlagDeploymentCP marks dependencies on the deployment (build time) classpath.
	FlagDeploymentCP
	// FlagRuntimeExtensionArtifact marks the runtime artifact of an activated extension.
	FlagRuntimeExtensionArtifact
	// FlagTopLevelRuntimeExtensionArtifact marks runtime extension artifacts that are also direct.
	FlagTopLevelRuntimeExtensionArtifact
	// FlagCompileOnly marks provided dependencies that are on neither classpath.
	FlagCompileOnly
	// FlagMissingFromApplication marks direct dependency entries whose target
	// is not part of the application.
	FlagMissingFromApplication
	// FlagReloadable marks workspace modules that can be reloaded in dev mode.
	FlagReloadable
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagDirect, "DIRECT"},
	{FlagOptional, "OPTIONAL"},
	{FlagRuntimeCP, "RUNTIME_CP"},
	{FlagDeploymentCP, "DEPLOYMENT_CP"},
	{FlagRuntimeExtensionArtifact, "RUNTIME_EXTENSION_ARTIFACT"},
	{FlagTopLevelRuntimeExtensionArtifact, "TOP_LEVEL_RUNTIME_EXTENSION_ARTIFACT"},
	{FlagCompileOnly, "COMPILE_ONLY"},
	{FlagMissingFromApplication, "MISSING_FROM_APPLICATION"},
	{FlagReloadable, "RELOADABLE"},
}

// Has reports whether all bits of flag are set.
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// Any reports whether at least one bit of flag is set.
func (f Flags) Any(flag Flags) bool {
	return f&flag != 0
}

// Names lists the names of the set flags in declaration order.
func (f Flags) Names() []string {
	names := make([]string, 0, len(flagNames))
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return names
}

func (f Flags) String() string {
	return strings.Join(f.Names(), "|")
}

// ParseFlags parses names separated by "|" or ",".
func ParseFlags(s string) (Flags, error) {
	var f Flags
	for _, name := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		name = strings.ToUpper(strings.TrimSpace(name))
		found := false
		for _, fn := range flagNames {
			if fn.name == name {
				f |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown dependency flag %q", name)
		}
	}
	return f, nil
}

func (f Flags) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Names())
}

func (f *Flags) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParseFlags(strings.Join(names, "|"))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
