// Package schema describes the models the admin operates on: their table, columns,
// column types and relations. Schemas are built once at startup (from code or from
// a manifest) and are read-only afterwards.
package schema

import (
	"fmt"
	"strings"
)

// FieldType represents the semantic type of a model column
type FieldType int

const (
	// Text types
	TypeString FieldType = iota
	TypeText

	// Numeric types
	TypeInt
	TypeBigInt
	TypeFloat
	TypeDecimal

	// Boolean
	TypeBool

	// Time types
	TypeTimestamp
	TypeDate

	// Identifiers
	TypeUUID

	// Validated text types
	TypeEmail
	TypeURL
	TypeColor
	TypePassword

	// Uploaded files (stored as URL strings)
	TypeFile
	TypeImage

	// Structured
	TypeJSON
	TypeEnum

	// Relations
	TypeForeignKey
	TypeManyToMany
)

// String returns the string representation of the field type
func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeInt:
		return "int"
	case TypeBigInt:
		return "bigint"
	case TypeFloat:
		return "float"
	case TypeDecimal:
		return "decimal"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	case TypeDate:
		return "date"
	case TypeUUID:
		return "uuid"
	case TypeEmail:
		return "email"
	case TypeURL:
		return "url"
	case TypeColor:
		return "color"
	case TypePassword:
		return "password"
	case TypeFile:
		return "file"
	case TypeImage:
		return "image"
	case TypeJSON:
		return "json"
	case TypeEnum:
		return "enum"
	case TypeForeignKey:
		return "fk"
	case TypeManyToMany:
		return "m2m"
	default:
		return "unknown"
	}
}

// ParseFieldType converts a string to a FieldType
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "char", "varchar":
		return TypeString, nil
	case "text":
		return TypeText, nil
	case "int", "integer", "smallint":
		return TypeInt, nil
	case "bigint":
		return TypeBigInt, nil
	case "float", "double":
		return TypeFloat, nil
	case "decimal", "numeric":
		return TypeDecimal, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "timestamp", "datetime":
		return TypeTimestamp, nil
	case "date":
		return TypeDate, nil
	case "uuid":
		return TypeUUID, nil
	case "email":
		return TypeEmail, nil
	case "url":
		return TypeURL, nil
	case "color":
		return TypeColor, nil
	case "password":
		return TypePassword, nil
	case "file":
		return TypeFile, nil
	case "image":
		return TypeImage, nil
	case "json", "jsonb":
		return TypeJSON, nil
	case "enum":
		return TypeEnum, nil
	case "fk", "foreign_key", "belongs_to":
		return TypeForeignKey, nil
	case "m2m", "many_to_many":
		return TypeManyToMany, nil
	default:
		return 0, fmt.Errorf("unknown field type: %s", s)
	}
}

// IsNumeric returns true for integer and decimal types
func (t FieldType) IsNumeric() bool {
	return t == TypeInt || t == TypeBigInt || t == TypeFloat || t == TypeDecimal
}

// IsRelation returns true for foreign key and many-to-many columns
func (t FieldType) IsRelation() bool {
	return t == TypeForeignKey || t == TypeManyToMany
}
