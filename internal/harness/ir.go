package harness

import (
	"regexp"
	"strings"
)

// defineRE matches the start of a function definition and captures its
// global name, quoted or not.
var defineRE = regexp.MustCompile(`(?m)^[ \t]*define\b[^@\n]*@("[^"\n]*"|[-a-zA-Z$._0-9]+)[ \t]*\(`)

// DefinedFunctions lists the functions ir defines, in order. Declarations
// are not included.
func DefinedFunctions(ir string) []string {
	var names []string
	for _, m := range defineRE.FindAllStringSubmatch(ir, -1) {
		names = append(names, strings.Trim(m[1], `"`))
	}
	return names
}

// EntryPoint picks the symbol to load from ir: preferred if ir defines it,
// otherwise the first defined function.
func EntryPoint(ir, preferred string) (string, bool) {
	names := DefinedFunctions(ir)
	if len(names) == 0 {
		return "", false
	}
	for _, n := range names {
		if n == preferred {
			return n, true
		}
	}
	return names[0], true
}
