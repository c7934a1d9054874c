package config

import (
	"reflect"
	"sync"
)

// EnvMapping ties a KADOA_* variable to the config path it sets.
type EnvMapping struct {
	EnvVar     string
	ConfigPath string
}

type leaf struct {
	path      string
	env       string
	sensitive bool
}

var sensitiveType = reflect.TypeFor[SensitiveString]()

// leaves walks the koanf tags of Config once. A field is sensitive when it
// is a SensitiveString or carries sensitive:"true".
var leaves = sync.OnceValue(func() []leaf {
	var out []leaf
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := range t.NumField() {
			f := t.Field(i)
			name := f.Tag.Get("koanf")
			if !f.IsExported() || name == "" || name == "-" {
				continue
			}
			if prefix != "" {
				name = prefix + "." + name
			}
			if f.Type.Kind() == reflect.Struct && f.Type.PkgPath() != "time" {
				walk(f.Type, name)
				continue
			}
			env := f.Tag.Get("env")
			if env == "-" {
				env = ""
			}
			out = append(out, leaf{
				path:      name,
				env:       env,
				sensitive: f.Type == sensitiveType || f.Tag.Get("sensitive") == "true",
			})
		}
	}
	walk(reflect.TypeFor[Config](), "")
	return out
})

// GenerateEnvMappings lists every field that has an env tag.
func GenerateEnvMappings() []EnvMapping {
	var out []EnvMapping
	for _, l := range leaves() {
		if l.env != "" {
			out = append(out, EnvMapping{EnvVar: l.env, ConfigPath: l.path})
		}
	}
	return out
}

// GenerateEnvToConfigMap indexes GenerateEnvMappings by variable name.
func GenerateEnvToConfigMap() map[string]string {
	out := map[string]string{}
	for _, m := range GenerateEnvMappings() {
		out[m.EnvVar] = m.ConfigPath
	}
	return out
}

// GetEnvVarForConfigPath returns the variable that sets path, or "".
func GetEnvVarForConfigPath(path string) string {
	for _, l := range leaves() {
		if l.path == path {
			return l.env
		}
	}
	return ""
}

// IsSensitiveConfigPath reports whether the value at path must be redacted.
func IsSensitiveConfigPath(path string) bool {
	for _, l := range leaves() {
		if l.path == path {
			return l.sensitive
		}
	}
	return false
}
