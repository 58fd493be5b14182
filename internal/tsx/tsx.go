// Package tsx syntax-checks generated TSX components with tree-sitter.
package tsx

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// SyntaxError is one error or missing node found in the parse tree.
// Row and Column are 1-based.
type SyntaxError struct {
	Row    int    `json:"row"`
	Column int    `json:"column"`
	Kind   string `json:"kind"`
	Text   string `json:"text,omitempty"`
}

func (e SyntaxError) String() string {
	return fmt.Sprintf("%d:%d: %s", e.Row, e.Column, e.Kind)
}

// Report summarizes a parsed TSX file.
type Report struct {
	Components    []string      `json:"components"`
	Imports       []string      `json:"imports"`
	DefaultExport bool          `json:"defaultExport"`
	Errors        []SyntaxError `json:"errors,omitempty"`
}

// Valid reports whether the file parsed cleanly and has a default export.
func (r *Report) Valid() bool {
	return r != nil && len(r.Errors) == 0 && r.DefaultExport
}

// Err describes why the report is not valid, or returns nil.
func (r *Report) Err() error {
	switch {
	case r == nil:
		return fmt.Errorf("tsx: no report")
	case r.Valid():
		return nil
	case len(r.Errors) > 0:
		msgs := make([]string, 0, len(r.Errors))
		for _, e := range r.Errors {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("tsx: %d syntax error(s): %s", len(r.Errors), strings.Join(msgs, "; "))
	default:
		return fmt.Errorf("tsx: no default export")
	}
}

// Validator parses TSX sources. A new tree-sitter parser is created per
// call, so a Validator is safe for concurrent use.
type Validator struct {
	lang *tree_sitter.Language
}

// NewValidator creates a Validator with the TSX grammar.
func NewValidator() *Validator {
	return &Validator{lang: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())}
}

// Validate parses source and reports components, imports and syntax errors.
func (v *Validator) Validate(source []byte) (*Report, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(v.lang); err != nil {
		return nil, fmt.Errorf("tsx: set language: %w", err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("tsx: tree-sitter returned nil tree")
	}
	defer tree.Close()

	root := tree.RootNode()
	report := &Report{}

	cursor := root.Walk()
	defer cursor.Close()
	walk(cursor, source, report)

	if root.HasError() {
		collectErrors(root, source, report)
	}
	return report, nil
}

func walk(cursor *tree_sitter.TreeCursor, source []byte, report *Report) {
	node := cursor.Node()

	switch node.Kind() {
	case "function_declaration":
		if name := fieldText(node, "name", source); isComponentName(name) {
			report.Components = append(report.Components, name)
		}

	case "lexical_declaration":
		for i := uint(0); i < node.NamedChildCount(); i++ {
			decl := node.NamedChild(i)
			if decl == nil || decl.Kind() != "variable_declarator" {
				continue
			}
			value := decl.ChildByFieldName("value")
			if value == nil || (value.Kind() != "arrow_function" && value.Kind() != "function_expression") {
				continue
			}
			if name := fieldText(decl, "name", source); isComponentName(name) {
				report.Components = append(report.Components, name)
			}
		}

	case "import_statement":
		if src := node.ChildByFieldName("source"); src != nil {
			report.Imports = append(report.Imports, strings.Trim(src.Utf8Text(source), "\"'`"))
		}

	case "export_statement":
		for i := uint(0); i < node.ChildCount(); i++ {
			if c := node.Child(i); c != nil && c.Kind() == "default" {
				report.DefaultExport = true
			}
		}
	}

	if cursor.GotoFirstChild() {
		walk(cursor, source, report)
		for cursor.GotoNextSibling() {
			walk(cursor, source, report)
		}
		cursor.GotoParent()
	}
}

// collectErrors records ERROR and MISSING nodes, descending only into
// subtrees that contain errors.
func collectErrors(node *tree_sitter.Node, source []byte, report *Report) {
	pos := node.StartPosition()
	switch {
	case node.IsMissing():
		report.Errors = append(report.Errors, SyntaxError{
			Row: int(pos.Row) + 1, Column: int(pos.Column) + 1,
			Kind: "missing " + node.Kind(),
		})
		return
	case node.IsError():
		report.Errors = append(report.Errors, SyntaxError{
			Row: int(pos.Row) + 1, Column: int(pos.Column) + 1,
			Kind: "unexpected input",
			Text: truncate(node.Utf8Text(source), 40),
		})
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if c := node.Child(i); c != nil && (c.HasError() || c.IsMissing()) {
			collectErrors(c, source, report)
		}
	}
}

func fieldText(node *tree_sitter.Node, field string, source []byte) string {
	if n := node.ChildByFieldName(field); n != nil {
		return n.Utf8Text(source)
	}
	return ""
}

// isComponentName reports whether name follows the React component
// convention of starting with an upper-case letter.
func isComponentName(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
