// Package schema describes extraction schemas and manages them on the platform.
package schema

import "time"

// DataType is the value type of a schema field.
type DataType string

const (
	DataTypeString   DataType = "STRING"
	DataTypeNumber   DataType = "NUMBER"
	DataTypeBoolean  DataType = "BOOLEAN"
	DataTypeDate     DataType = "DATE"
	DataTypeDateTime DataType = "DATETIME"
	DataTypeMoney    DataType = "MONEY"
	DataTypeImage    DataType = "IMAGE"
	DataTypeLink     DataType = "LINK"
	DataTypeObject   DataType = "OBJECT"
	DataTypeArray    DataType = "ARRAY"
)

// RequiresExample reports whether fields of this type must carry an example value.
func (d DataType) RequiresExample() bool {
	switch d {
	case DataTypeString, DataTypeImage, DataTypeLink, DataTypeObject, DataTypeArray:
		return true
	}
	return false
}

// FieldType distinguishes extracted, classified and metadata fields.
type FieldType string

const (
	FieldTypeSchema         FieldType = "SCHEMA"
	FieldTypeClassification FieldType = "CLASSIFICATION"
	FieldTypeMetadata       FieldType = "METADATA"
)

// RawFormat selects raw page content captured alongside structured fields.
type RawFormat string

const (
	RawHTML     RawFormat = "html"
	RawMarkdown RawFormat = "markdown"
	RawURL      RawFormat = "url"
)

// Category is one option of a classification field.
type Category struct {
	Title      string `json:"title"`
	Definition string `json:"definition"`
}

// FieldOptions carries optional attributes of a SCHEMA field.
type FieldOptions struct {
	// Example is a string or a list of strings.
	Example any
	IsKey   bool
}

// Field is a single field of an extraction schema.
type Field struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	FieldType   FieldType  `json:"fieldType"`
	DataType    DataType   `json:"dataType,omitempty"`
	Example     any        `json:"example,omitempty"`
	IsKey       bool       `json:"isKey,omitempty"`
	Categories  []Category `json:"categories,omitempty"`
	MetadataKey string     `json:"metadataKey,omitempty"`
}

// Definition is a validated set of fields with its entity name.
type Definition struct {
	EntityName string
	Fields     []Field
}

// Schema is a schema stored on the platform.
type Schema struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Entity    string    `json:"entity,omitempty"`
	Fields    []Field   `json:"schema"`
	IsPublic  bool      `json:"isPublic,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// CreateInput is the body of a schema creation request.
type CreateInput struct {
	Name   string  `json:"name"`
	Entity string  `json:"entity,omitempty"`
	Fields []Field `json:"fields"`
}

// UpdateInput is the body of a schema update request. Empty values are left unchanged.
type UpdateInput struct {
	Name   string  `json:"name,omitempty"`
	Entity string  `json:"entity,omitempty"`
	Fields []Field `json:"fields,omitempty"`
}
