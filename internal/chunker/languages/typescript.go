package languages

import (
	"clara/internal/chunker"

	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

var tsTopLevel = []string{
	"function_declaration",
	"generator_function_declaration",
	"class_declaration",
	"abstract_class_declaration",
	"interface_declaration",
	"enum_declaration",
}

func RegisterTypeScript(r *chunker.Registry) {
	r.Register(&chunker.LanguageSpec{
		Name:          chunker.LangTypeScript,
		Language:      typescript.GetLanguage(),
		TopLevel:      tsTopLevel,
		Wrappers:      []string{"export_statement"},
		CommentPrefix: "//",
		Extensions:    []string{"ts", "mts", "cts"},
	})
	r.Register(&chunker.LanguageSpec{
		Name:          chunker.LangTSX,
		Language:      tsx.GetLanguage(),
		TopLevel:      tsTopLevel,
		Wrappers:      []string{"export_statement"},
		CommentPrefix: "//",
		Extensions:    []string{"tsx"},
	})
}
