// Package documents maps provider file ids to human display names for the
// fixed document set the assistant searches.
package documents

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/user/docchat/internal/logx"
)

// Document is one searchable document.
type Document struct {
	Name   string `json:"name"`
	FileID string `json:"file_id"`
}

// Default is the built-in document set.
var Default = []Document{
	{Name: "Nagaland Innovation Hub.pdf", FileID: "file-9WYEvRbNZC2BDRcBvD94sG"},
	{Name: "Mizoram Development of Helipads.pdf", FileID: "file-2zox9ddsxAu8aHFpaPLdcz"},
	{Name: "Assam Road Project.pdf", FileID: "file-UHsBDvmRKbojdEED8dzyPy"},
	{Name: "Khankawn Rongura Road Project.pdf", FileID: "file-DcV8nEaEJgdwW3Cut7WezM"},
	{Name: "Coffee Development Nagaland.pdf", FileID: "file-VyZ3evk98qT3QQMJkoBbM8"},
}

// Table is an immutable two-way lookup between names and file ids.
type Table struct {
	docs   []Document
	byName map[string]string
	byID   map[string]string
}

// NewTable builds a table from docs. Entries without a file id are listed but
// cannot be attached.
func NewTable(docs []Document) *Table {
	t := &Table{
		byName: make(map[string]string, len(docs)),
		byID:   make(map[string]string, len(docs)),
	}
	for _, d := range docs {
		t.docs = append(t.docs, d)
		if strings.TrimSpace(d.FileID) == "" {
			continue
		}
		t.byName[Normalize(d.Name)] = d.FileID
		t.byID[d.FileID] = d.Name
	}
	return t
}

// Load reads a JSON array of documents from path. An empty path returns the
// default table.
func Load(path string) (*Table, error) {
	if path == "" {
		return NewTable(Default), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading documents file: %w", err)
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing documents file: %w", err)
	}
	return NewTable(docs), nil
}

// Normalize lowercases a human-entered name, ensures a .pdf suffix and maps
// spaces to underscores, so "Assam Road Project" and
// "assam_road_project.pdf" compare equal.
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return ""
	}
	if !strings.HasSuffix(s, ".pdf") {
		s += ".pdf"
	}
	return strings.ReplaceAll(s, " ", "_")
}

// NameForID maps a file id to its display name. Unknown ids get a
// placeholder built from the id's last six characters.
func (t *Table) NameForID(fileID string) string {
	if fileID == "" {
		return ""
	}
	if name, ok := t.byID[fileID]; ok {
		return name
	}
	tail := fileID
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	return "Document_" + tail + ".pdf"
}

// IDForName maps a display or normalized name to its file id.
func (t *Table) IDForName(name string) (string, bool) {
	id, ok := t.byName[Normalize(name)]
	if !ok {
		logx.Warn().Str("document", name).Str("normalized", Normalize(name)).Msg("no file id configured for document")
	}
	return id, ok
}

// IDsForNames resolves every known name and skips the rest.
func (t *Table) IDsForNames(names []string) []string {
	var ids []string
	for _, n := range names {
		if id, ok := t.IDForName(n); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Available lists the display names in table order.
func (t *Table) Available() []string {
	out := make([]string, 0, len(t.docs))
	for _, d := range t.docs {
		out = append(out, d.Name)
	}
	return out
}

// Known reports whether name matches an available document.
func (t *Table) Known(name string) bool {
	_, ok := t.Display(name)
	return ok
}

// Display returns the canonical display name for a human-entered or
// normalized name.
func (t *Table) Display(name string) (string, bool) {
	n := Normalize(name)
	for _, d := range t.docs {
		if Normalize(d.Name) == n {
			return d.Name, true
		}
	}
	return "", false
}
