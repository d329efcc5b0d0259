package cmd

import (
	"fmt"
	"io"
	"strings"
)

// renderRules displays the loaded rule names
func renderRules(w io.Writer, rulesPath string, rules []string) {
	headerColor.Fprintf(w, "RULES %s\n", rulesPath)
	headerColor.Fprintln(w, strings.Repeat("=", 60))

	if len(rules) == 0 {
		warningColor.Fprintln(w, "No rule files found, the rule set is empty")
		return
	}

	for i, name := range rules {
		fmt.Fprintf(w, "%4d  %s\n", i+1, name)
	}
	fmt.Fprintln(w, strings.Repeat("-", 60))
	successColor.Fprintf(w, "OK ")
	infoColor.Fprintf(w, "%d %s compiled\n", len(rules), plural(len(rules), "rule", "rules"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
