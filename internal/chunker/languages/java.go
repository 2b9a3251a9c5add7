package languages

import (
	"clara/internal/chunker"

	"github.com/smacker/go-tree-sitter/java"
)

func RegisterJava(r *chunker.Registry) {
	r.Register(&chunker.LanguageSpec{
		Name:     chunker.LangJava,
		Language: java.GetLanguage(),
		TopLevel: []string{
			"class_declaration",
			"interface_declaration",
			"enum_declaration",
			"record_declaration",
		},
		CommentPrefix: "//",
		Extensions:    []string{"java"},
	})
}
