package languages

import (
	"clara/internal/chunker"

	"github.com/smacker/go-tree-sitter/javascript"
)

func RegisterJavaScript(r *chunker.Registry) {
	r.Register(&chunker.LanguageSpec{
		Name:     chunker.LangJavaScript,
		Language: javascript.GetLanguage(),
		TopLevel: []string{
			"function_declaration",
			"generator_function_declaration",
			"class_declaration",
		},
		Wrappers:      []string{"export_statement"},
		CommentPrefix: "//",
		Extensions:    []string{"js", "jsx", "mjs", "cjs"},
	})
}
