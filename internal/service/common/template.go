//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"path/filepath"
	"strings"
)

// Placeholders understood by Expand.
const (
	VarRoot       = "{root}"
	VarToolDir    = "{tool_dir}"
	VarEntryPoint = "{entry_point}"
	VarArtifact   = "{artifact}"
	VarOutput     = "{output}"
	VarExtraArgs  = "{extra_args}"
)

// Vars maps a placeholder to its values.
type Vars map[string][]string

// Expand substitutes placeholders in an argv template. A token that is exactly
// a placeholder expands to all its values, possibly none; placeholders inside
// a longer token are replaced by the values joined with spaces.
func Expand(template []string, vars Vars) []string {
	pairs := make([]string, 0, len(vars)*2) //nolint:mnd // Old and new string per placeholder.
	for name, values := range vars {
		pairs = append(pairs, name, strings.Join(values, " "))
	}

	replacer := strings.NewReplacer(pairs...)
	expanded := make([]string, 0, len(template))

	for _, token := range template {
		if values, ok := vars[token]; ok {
			expanded = append(expanded, values...)
			continue
		}

		expanded = append(expanded, replacer.Replace(token))
	}

	return expanded
}

// ProgramPath anchors a relative program path containing a separator at root.
// Bare names are left for the search path.
func ProgramPath(root, program string) string {
	if filepath.IsAbs(program) || !strings.ContainsAny(program, `/\`) {
		return program
	}

	return filepath.Join(root, program)
}
