// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"fmt"
	"sort"
	"strings"
)

// Well-known field names.
const (
	FieldTaskName      = "task.name"
	FieldSpawnLocation = "spawn.location"
)

// moduleCacheMarker locates the Go module cache inside a file path.
const moduleCacheMarker = "/pkg/mod/"

func sprint(v any) string { return fmt.Sprint(v) }

// TruncateLocation shortens a source path inside the Go module cache
// to "<mod>/module@version/file.go:line". Other paths are unchanged.
func TruncateLocation(location string) string {
	if index := strings.LastIndex(location, moduleCacheMarker); index >= 0 {
		return "<mod>/" + location[index+len(moduleCacheMarker):]
	}
	return location
}

// NormalizeFields drops fields with empty string values, truncates
// spawn locations, and sorts the rest: task.name first, spawn.location
// last, everything else by name. The input slice is not modified.
func NormalizeFields(fields []Field) []Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]Field, 0, len(fields))
	for _, field := range fields {
		if field.Name == "" || field.Value.Empty() {
			continue
		}
		if field.Name == FieldSpawnLocation {
			field.Value = Debug(TruncateLocation(field.Value.Format()))
		}
		out = append(out, field)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return fieldRank(out[i].Name) < fieldRank(out[j].Name) ||
			(fieldRank(out[i].Name) == fieldRank(out[j].Name) && out[i].Name < out[j].Name)
	})
	return out
}

func fieldRank(name string) int {
	switch name {
	case FieldTaskName:
		return 0
	case FieldSpawnLocation:
		return 2
	default:
		return 1
	}
}
