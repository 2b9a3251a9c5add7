package languages

import (
	"clara/internal/chunker"

	"github.com/smacker/go-tree-sitter/golang"
)

func RegisterGo(r *chunker.Registry) {
	r.Register(&chunker.LanguageSpec{
		Name:          chunker.LangGo,
		Language:      golang.GetLanguage(),
		TopLevel:      []string{"function_declaration", "method_declaration", "type_declaration"},
		CommentPrefix: "//",
		Extensions:    []string{"go"},
	})
}
