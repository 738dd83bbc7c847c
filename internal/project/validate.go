// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package project

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/miranda/internal/apperr"
	"github.com/pdiddy/miranda/pkg/types"
)

// maxChildNameLen bounds bucket, table, and column names.
const maxChildNameLen = 100

func validateProjectInput(op string, in CreateProjectInput) (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", apperr.Validation(op, "project name is required")
	}
	if utf8.RuneCountInString(name) > types.MaxProjectNameLen {
		return "", apperr.Validation(op, "project name too long (max %d characters)", types.MaxProjectNameLen)
	}
	if !in.Template.Valid() {
		return "", apperr.Validation(op, "invalid template %q: must be one of %v", in.Template, types.Templates)
	}
	return name, nil
}

func validateName(op, kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation(op, "%s name is required", kind)
	}
	if utf8.RuneCountInString(name) > maxChildNameLen {
		return "", apperr.Validation(op, "%s name too long (max %d characters)", kind, maxChildNameLen)
	}
	return name, nil
}

// validateColumns checks a table schema: at least one column, unique
// non-empty names, known types. Missing types default to text.
func validateColumns(op string, columns []types.Column) ([]types.Column, error) {
	if len(columns) == 0 {
		return nil, apperr.Validation(op, "table schema needs at least one column")
	}
	seen := make(map[string]bool, len(columns))
	out := make([]types.Column, 0, len(columns))
	for i, c := range columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, apperr.Validation(op, "column %d has no name", i)
		}
		if seen[name] {
			return nil, apperr.Validation(op, "duplicate column name %q", name)
		}
		seen[name] = true
		typ := c.Type
		if typ == "" {
			typ = types.ColumnText
		}
		if !typ.Valid() {
			return nil, apperr.Validation(op, "column %q has unknown type %q", name, c.Type)
		}
		out = append(out, types.Column{Name: name, Type: typ})
	}
	return out, nil
}

// validateRow checks that a row only uses schema columns and that each
// non-nil value matches its column type.
func validateRow(op string, columns []types.Column, index int, row types.Row) error {
	byName := make(map[string]types.ColumnType, len(columns))
	for _, c := range columns {
		byName[c.Name] = c.Type
	}
	for key, val := range row {
		typ, ok := byName[key]
		if !ok {
			return apperr.Validation(op, "row %d: unknown column %q", index, key)
		}
		if val == nil {
			continue
		}
		if !valueMatches(typ, val) {
			return apperr.Validation(op, "row %d: column %q expects %s, got %T", index, key, typ, val)
		}
	}
	return nil
}

func valueMatches(typ types.ColumnType, val any) bool {
	switch typ {
	case types.ColumnText:
		_, ok := val.(string)
		return ok
	case types.ColumnBoolean:
		_, ok := val.(bool)
		return ok
	case types.ColumnNumber:
		switch val.(type) {
		case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
			return true
		}
	}
	return false
}
