package config

// DefaultPatterns are the file-name globs ingested when the config does not
// list its own. They are matched against the base name of each file.
var DefaultPatterns = []string{
	// Python
	"*.py",
	// Markdown
	"*.md",
	"*.mdx",
	// reStructuredText
	"*.rst",
	// Jupyter
	"*.ipynb",
	// C / C++
	"*.c",
	"*.h",
	"*.cpp",
	"*.hpp",
	"*.cc",
	"*.hh",
	// C#
	"*.cs",
	// Java
	"*.java",
	// JavaScript / TypeScript
	"*.js",
	"*.jsx",
	"*.ts",
	"*.tsx",
	// Ruby
	"*.rb",
	// PHP
	"*.php",
	// Swift
	"*.swift",
	// Objective-C / MATLAB
	"*.m",
	"*.mm",
	// Kotlin
	"*.kt",
	// Scala
	"*.scala",
	// Lua
	"*.lua",
	// Go
	"*.go",
	// Rust
	"*.rs",
	// Dart
	"*.dart",
	// Haskell
	"*.hs",
	// Shell
	"*.sh",
	"*.bash",
	// Perl
	"*.pl",
	"*.pm",
	// R
	"*.r",
	// Groovy
	"*.groovy",
	// Julia
	"*.jl",
	// Elixir
	"*.ex",
	"*.exs",
	// Elm
	"*.elm",
	// Erlang
	"*.erl",
	"*.hrl",
	// F#
	"*.fs",
	"*.fsx",
	// SQL
	"*.sql",
	// XML / HTML
	"*.xml",
	"*.html",
	"*.htm",
	// Stylesheets
	"*.css",
	"*.scss",
	"*.sass",
	"*.less",
	"Dockerfile",
	"README",
}
