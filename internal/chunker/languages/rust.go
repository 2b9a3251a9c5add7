package languages

import (
	"clara/internal/chunker"

	"github.com/smacker/go-tree-sitter/rust"
)

func RegisterRust(r *chunker.Registry) {
	r.Register(&chunker.LanguageSpec{
		Name:     chunker.LangRust,
		Language: rust.GetLanguage(),
		TopLevel: []string{
			"function_item",
			"impl_item",
			"struct_item",
			"enum_item",
			"trait_item",
		},
		CommentPrefix: "//",
		Extensions:    []string{"rs"},
	})
}
