// Package analyzer extracts declaration summaries from produced source
// files. The completion recorder embeds these summaries in the
// specification document so a reader can see what a task actually
// shipped without opening the files.
//
// Go sources are inspected through go/parser and go/ast; other file
// types are listed without structural detail.
package analyzer

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"os"
	"path/filepath"
	"strings"
)

// Declaration is one top-level declaration in a source file.
type Declaration struct {
	Kind      string `json:"kind"` // "func", "method", "type"
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Doc       string `json:"doc,omitempty"` // first sentence of the doc comment
}

// FileSummary is the structural summary of one file.
type FileSummary struct {
	File         string        `json:"file"`
	Package      string        `json:"package,omitempty"`
	Doc          string        `json:"doc,omitempty"`
	Declarations []Declaration `json:"declarations,omitempty"`
	Err          string        `json:"error,omitempty"`
}

// Analyzer resolves file paths relative to a project root.
type Analyzer struct {
	root string
}

// New creates an analyzer rooted at the given project directory.
func New(root string) *Analyzer {
	return &Analyzer{root: root}
}

// AnalyzeFiles summarizes each path in order. Per-file failures are
// reported in the summary's Err field, never as a Go error — one
// unparsable file must not hide the rest.
func (a *Analyzer) AnalyzeFiles(paths []string) []FileSummary {
	summaries := make([]FileSummary, 0, len(paths))
	for _, p := range paths {
		summaries = append(summaries, a.AnalyzeFile(p))
	}
	return summaries
}

// AnalyzeFile summarizes a single file.
func (a *Analyzer) AnalyzeFile(path string) FileSummary {
	summary := FileSummary{File: path}

	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(a.root, path)
	}

	if _, err := os.Stat(full); err != nil {
		summary.Err = fmt.Sprintf("file not found: %s", path)
		return summary
	}
	if filepath.Ext(full) != ".go" {
		return summary // listed, but not structurally analyzed
	}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, full, nil, parser.ParseComments)
	if err != nil {
		summary.Err = fmt.Sprintf("parse error: %v", err)
		return summary
	}

	summary.Package = f.Name.Name
	summary.Doc = docLine(f.Doc)

	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			summary.Declarations = append(summary.Declarations, funcDeclaration(fset, d))
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, s := range d.Specs {
				ts, ok := s.(*ast.TypeSpec)
				if !ok {
					continue
				}
				summary.Declarations = append(summary.Declarations, Declaration{
					Kind:      "type",
					Name:      ts.Name.Name,
					Signature: "type " + ts.Name.Name + " " + typeKind(ts.Type),
					Doc:       firstDoc(ts.Doc, d.Doc),
				})
			}
		}
	}

	return summary
}

func funcDeclaration(fset *token.FileSet, d *ast.FuncDecl) Declaration {
	kind := "func"
	var sig strings.Builder
	sig.WriteString("func ")
	if d.Recv != nil && len(d.Recv.List) > 0 {
		kind = "method"
		sig.WriteString("(" + exprString(fset, d.Recv.List[0].Type) + ") ")
	}
	sig.WriteString(d.Name.Name)

	// FuncType prints as "func(args) results"; strip the keyword so
	// the name slots in where it belongs.
	ft := exprString(fset, d.Type)
	sig.WriteString(strings.TrimPrefix(ft, "func"))

	return Declaration{
		Kind:      kind,
		Name:      d.Name.Name,
		Signature: sig.String(),
		Doc:       docLine(d.Doc),
	}
}

func exprString(fset *token.FileSet, e ast.Expr) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, e); err != nil {
		return ""
	}
	return buf.String()
}

func typeKind(e ast.Expr) string {
	switch e.(type) {
	case *ast.StructType:
		return "struct"
	case *ast.InterfaceType:
		return "interface"
	default:
		return "alias"
	}
}

// docLine reduces a doc comment to its first line.
func docLine(cg *ast.CommentGroup) string {
	if cg == nil {
		return ""
	}
	text := strings.TrimSpace(cg.Text())
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return text
}

func firstDoc(groups ...*ast.CommentGroup) string {
	for _, g := range groups {
		if line := docLine(g); line != "" {
			return line
		}
	}
	return ""
}
