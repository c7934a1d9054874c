package definition

import (
	"reflect"
	"sort"
)

// FieldDef describes a configuration field that can also be set from a CLI flag.
type FieldDef struct {
	Path      string       // Config path like "polling.interval"
	Default   any          // Default value
	CLIFlag   string       // CLI flag name like "poll-interval"
	Shorthand string       // Single character shorthand like "o"
	EnvVar    string       // Environment variable name like "KADOA_POLL_INTERVAL"
	Type      reflect.Type // Field type used to register the flag
	Help      string       // Help text for CLI
}

// Registry holds all configuration field definitions
type Registry struct {
	fields map[string]FieldDef
}

// NewRegistry creates a new field registry
func NewRegistry() *Registry {
	return &Registry{
		fields: make(map[string]FieldDef),
	}
}

// Register adds a field definition to the registry
func (r *Registry) Register(field *FieldDef) {
	r.fields[field.Path] = *field
}

// GetField returns a field definition by path
func (r *Registry) GetField(path string) (FieldDef, bool) {
	field, exists := r.fields[path]
	return field, exists
}

// Sorted returns every field ordered by config path.
func (r *Registry) Sorted() []FieldDef {
	out := make([]FieldDef, 0, len(r.fields))
	for _, field := range r.fields {
		out = append(out, field)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// GetCLIFlagMapping returns a map of CLI flag names to config paths
func (r *Registry) GetCLIFlagMapping() map[string]string {
	mapping := make(map[string]string)
	for path, field := range r.fields {
		if field.CLIFlag != "" {
			mapping[field.CLIFlag] = path
		}
	}
	return mapping
}
