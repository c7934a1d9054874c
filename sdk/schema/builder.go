package schema

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

var rawFields = map[RawFormat]struct {
	name string
	key  string
}{
	RawHTML:     {name: "rawHtml", key: "HTML"},
	RawMarkdown: {name: "rawMarkdown", key: "MARKDOWN"},
	RawURL:      {name: "rawUrl", key: "PAGE_URL"},
}

// Builder assembles a schema definition. Every method returns a new Builder;
// rules are checked once by Build.
type Builder struct {
	entity string
	fields []Field
	errs   []error
}

// New returns an empty builder.
func New() Builder {
	return Builder{}
}

func (b Builder) clone() Builder {
	return Builder{
		entity: b.entity,
		fields: slices.Clone(b.fields),
		errs:   slices.Clone(b.errs),
	}
}

// Entity sets the entity name, e.g. "Product".
func (b Builder) Entity(name string) Builder {
	next := b.clone()
	next.entity = strings.TrimSpace(name)
	return next
}

// Field adds a structured SCHEMA field.
func (b Builder) Field(name, description string, dataType DataType, opts FieldOptions) Builder {
	next := b.clone()
	next.fields = append(next.fields, Field{
		Name:        name,
		Description: description,
		FieldType:   FieldTypeSchema,
		DataType:    dataType,
		Example:     opts.Example,
		IsKey:       opts.IsKey,
	})
	return next
}

// Classify adds a CLASSIFICATION field choosing among categories.
func (b Builder) Classify(name, description string, categories ...Category) Builder {
	next := b.clone()
	next.fields = append(next.fields, Field{
		Name:        name,
		Description: description,
		FieldType:   FieldTypeClassification,
		Categories:  slices.Clone(categories),
	})
	return next
}

// Raw captures raw page content in the given formats. Formats already present are skipped.
func (b Builder) Raw(formats ...RawFormat) Builder {
	next := b.clone()
	for _, format := range formats {
		raw, ok := rawFields[format]
		if !ok {
			next.errs = append(next.errs, fmt.Errorf("unsupported raw format %q", format))
			continue
		}
		if slices.ContainsFunc(next.fields, func(f Field) bool { return f.Name == raw.name }) {
			continue
		}
		next.fields = append(next.fields, Field{
			Name:        raw.name,
			Description: fmt.Sprintf("Raw page content in %s format", strings.ToUpper(string(format))),
			FieldType:   FieldTypeMetadata,
			MetadataKey: raw.key,
		})
	}
	return next
}

// Build validates the accumulated fields and returns the definition.
func (b Builder) Build(ctx context.Context) (Definition, error) {
	if ctx == nil {
		return Definition{}, fmt.Errorf("context is required")
	}
	log := logger.FromContext(ctx)
	log.Debug("building schema definition", "entity", b.entity, "fields", len(b.fields))
	collected := slices.Clone(b.errs)
	collected = append(collected, validateFields(b.fields)...)
	if err := validateEntity(b.entity, b.fields); err != nil {
		collected = append(collected, err)
	}
	if len(collected) > 0 {
		return Definition{}, &sdkerrors.BuildError{Errors: collected}
	}
	return Definition{EntityName: b.entity, Fields: cloneFields(b.fields)}, nil
}

func validateFields(fields []Field) []error {
	errs := make([]error, 0)
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.FieldType != FieldTypeMetadata && !fieldNamePattern.MatchString(f.Name) {
			errs = append(errs, fmt.Errorf("field name %q must be alphanumeric only", f.Name))
		}
		key := strings.ToLower(f.Name)
		if _, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("duplicate field name: %q", f.Name))
		}
		seen[key] = struct{}{}
		switch f.FieldType {
		case FieldTypeSchema:
			if f.DataType.RequiresExample() && !hasExample(f.Example) {
				errs = append(errs, fmt.Errorf("field %q with type %s requires an example", f.Name, f.DataType))
			}
		case FieldTypeClassification:
			if len(f.Categories) == 0 {
				errs = append(errs, fmt.Errorf("classification field %q requires at least one category", f.Name))
			}
		}
	}
	return errs
}

func validateEntity(entity string, fields []Field) error {
	if entity != "" {
		return nil
	}
	for _, f := range fields {
		if f.FieldType == FieldTypeSchema || f.FieldType == FieldTypeClassification {
			return fmt.Errorf("entity name is required when schema or classification fields are defined")
		}
	}
	return nil
}

func hasExample(example any) bool {
	switch v := example.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []string:
		return len(v) > 0
	default:
		return true
	}
}

func cloneFields(fields []Field) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		f.Categories = slices.Clone(f.Categories)
		out[i] = f
	}
	return out
}
