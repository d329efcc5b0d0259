package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"pulsar/detect"
	"pulsar/matcher"

	"go.uber.org/zap"
)

// CheckRulesDirectory warns when the rules path is missing or is not a
// directory. Loading still proceeds; an absent tree simply yields no rules.
func CheckRulesDirectory(path string, sugar *zap.SugaredLogger) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	info, err := os.Stat(absPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		sugar.Warnw("Rules directory does not exist, no rules will be loaded", "path", absPath)
	case err != nil:
		sugar.Warnw("Rules directory is not accessible", "path", absPath, "error", err)
	case !info.IsDir():
		sugar.Warnw("Rules path is not a directory, no rules will be loaded", "path", absPath)
	}
}

// IsRuleLoadError reports whether err comes from listing, reading, parsing
// or compiling the rule set.
func IsRuleLoadError(err error) bool {
	return errors.Is(err, detect.ErrRuleListing) ||
		errors.Is(err, detect.ErrRuleLoading) ||
		errors.Is(err, detect.ErrRuleParsing) ||
		errors.Is(err, detect.ErrRuleCompile)
}

// ClassifyRuleLoadError provides a specific message with remediation hints
// for a failure returned while building the rules engine.
func ClassifyRuleLoadError(err error, rulesPath string) string {
	if err == nil {
		return ""
	}

	var listErr *detect.RuleListingError
	if errors.As(err, &listErr) {
		return fmt.Sprintf("Rule files under %s could not be listed: %v\n"+
			"  The file name pattern %q is invalid.", rulesPath, listErr.Err, listErr.Pattern)
	}

	var loadErr *detect.RuleLoadingError
	if errors.As(err, &loadErr) {
		hint := "  - Check the file is readable: ls -la " + loadErr.Name
		if errors.Is(err, fs.ErrPermission) {
			hint = fmt.Sprintf("  - Permission denied, run 'chmod 644 %s' or adjust the owner", loadErr.Name)
		}
		return fmt.Sprintf("Rule file %s could not be read: %v\n"+
			"  Remediation:\n"+
			"%s\n"+
			"  - Rule files must be UTF-8 text", loadErr.Name, loadErr.Err, hint)
	}

	var parseErr *detect.RuleParsingError
	if errors.As(err, &parseErr) {
		return fmt.Sprintf("Rule file %s is malformed: %v\n"+
			"  Remediation:\n"+
			"  - A rule file is a YAML list of rules, each with a name and a condition\n"+
			"  - Run 'pulsar validate %s' after fixing it", parseErr.Filename, parseErr.Err, rulesPath)
	}

	var compileErr *detect.RuleCompileError
	if errors.As(err, &compileErr) {
		msg := fmt.Sprintf("Rules under %s do not compile:\n  %v", rulesPath, compileErr.Err)
		if errors.Is(err, matcher.ErrDuplicateRule) {
			msg += "\n  Rule names must be unique across all files."
		}
		return msg
	}

	return fmt.Sprintf("Failed to load rules from %s: %v", rulesPath, err)
}
