package languages

import (
	"clara/internal/chunker"

	"github.com/smacker/go-tree-sitter/python"
)

func RegisterPython(r *chunker.Registry) {
	r.Register(&chunker.LanguageSpec{
		Name:          chunker.LangPython,
		Language:      python.GetLanguage(),
		TopLevel:      []string{"function_definition", "class_definition", "decorated_definition"},
		CommentPrefix: "#",
		Extensions:    []string{"py", "pyi"},
	})
}
