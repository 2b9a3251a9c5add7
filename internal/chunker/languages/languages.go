// Package languages holds the fixed set of tree-sitter grammars the chunker
// understands.
package languages

import "clara/internal/chunker"

// Default returns a registry with every shipped language plus notebooks.
func Default() *chunker.Registry {
	r := chunker.NewRegistry()
	RegisterPython(r)
	RegisterGo(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterJava(r)
	RegisterRust(r)
	return r
}
