package review

import (
	"path/filepath"
	"strings"

	"github.com/sevigo/merge-warden/internal/core"
)

// reviewableExtensions holds the file extensions considered source code worth
// sending to the LLM. Lookup is case-insensitive.
var reviewableExtensions = newExtensionSet(
	// C and C++
	".c", ".h", ".cpp", ".cc", ".cxx", ".c++", ".hpp", ".hh", ".hxx", ".h++",
	// C#
	".cs",
	// Go
	".go",
	// Rust
	".rs",
	// Java
	".java",
	// Kotlin
	".kt", ".kts",
	// Swift
	".swift",
	// Objective-C and Objective-C++
	".m", ".mm",
	// iOS interface and asset definitions
	".storyboard", ".xib", ".xcassets",
	// HarmonyOS ArkTS
	".ets", ".hml",
	// JavaScript and TypeScript
	".js", ".mjs", ".cjs", ".ts", ".jsx", ".tsx",
	// Mini-program dialects (WeChat, Alipay, ByteDance, Kuaishou, Baidu)
	".wxml", ".wxs", ".axml", ".sjs", ".ttml", ".ksml", ".swan",
	// Flutter
	".dart",
	// Vue
	".vue",
	// Web
	".html", ".htm", ".css", ".scss", ".less",
	// PHP
	".php", ".phtml",
	// Python
	".py", ".pyw", ".pyi",
	// Ruby
	".rb", ".erb", ".rake",
	// Shell
	".sh", ".bash", ".zsh", ".ksh",
	// Lua
	".lua",
	// Configuration
	".json", ".yaml", ".yml", ".xml",
	// Makefile fragments
	".mk",
)

// Makefile carries no extension and is matched by name.
const makefileName = "Makefile"

func newExtensionSet(exts ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		set[ext] = struct{}{}
	}
	return set
}

// ShouldReview reports whether a changed file is eligible for an LLM review.
// Deleted files and renames that carry no content change are skipped, as are
// files outside the known source extensions.
func ShouldReview(change core.FileChange) bool {
	if change.DeletedFile {
		return false
	}
	if change.RenamedFile && strings.TrimSpace(change.Diff) == "" {
		return false
	}

	path := change.Path()
	if path == "" {
		return false
	}

	if filepath.Base(path) == makefileName {
		return true
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	_, ok := reviewableExtensions[ext]
	return ok
}
