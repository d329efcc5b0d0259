package detect

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"
)

// RuleFilePattern selects rule files by base name
const RuleFilePattern = "*.yaml"

// RuleFile is the raw content of a rule file. It only lives between the
// scan and parse steps of a load.
type RuleFile struct {
	Path string
	Body string
}

// ScanRuleFiles reads every file under root, at any depth, whose name
// matches RuleFilePattern. Paths are returned in lexical order and are
// reported under root even when reached through a symlinked directory;
// each link target is walked once.
//
// A missing root yields no files. Entries that cannot be resolved while
// walking are skipped; a matching file that cannot be read aborts the scan
// with a *RuleLoadingError.
func ScanRuleFiles(root string, logger *zap.SugaredLogger) ([]RuleFile, error) {
	return scanRuleFiles(root, RuleFilePattern, logger)
}

func scanRuleFiles(root, pattern string, logger *zap.SugaredLogger) ([]RuleFile, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	paths, err := listRuleFiles(root, pattern)
	if err != nil {
		return nil, err
	}

	files := make([]RuleFile, 0, len(paths))
	for _, path := range paths {
		file, err := readRuleFile(path, logger)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func listRuleFiles(root, pattern string) ([]string, error) {
	if _, err := filepath.Match(pattern, "x"); err != nil {
		return nil, &RuleListingError{Pattern: pattern, Err: err}
	}

	start := root
	visited := make(map[string]bool)
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		start = resolved
		visited[resolved] = true
	}

	var paths []string
	if err := walkRuleDir(start, root, pattern, visited, &paths); err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

// walkRuleDir collects matching files under dir, reporting them under
// prefix. Symlinked directories are followed once per resolved target.
func walkRuleDir(dir, prefix, pattern string, visited map[string]bool, paths *[]string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped, as is a missing root
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		reported := filepath.Join(prefix, rel)

		if d.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				// dangling link
				return nil
			}
			if info.IsDir() {
				target, err := filepath.EvalSymlinks(path)
				if err != nil || visited[target] {
					return nil
				}
				visited[target] = true
				return walkRuleDir(target, reported, pattern, visited, paths)
			}
		}

		matched, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return &RuleListingError{Pattern: pattern, Err: err}
		}
		if matched {
			*paths = append(*paths, reported)
		}
		return nil
	})
}

func readRuleFile(path string, logger *zap.SugaredLogger) (RuleFile, error) {
	logger.Debugf("loading rule %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return RuleFile{}, &RuleLoadingError{Name: path, Err: err}
	}
	if !utf8.Valid(data) {
		return RuleFile{}, &RuleLoadingError{Name: path, Err: fmt.Errorf("file is not valid UTF-8")}
	}
	return RuleFile{Path: path, Body: string(data)}, nil
}
