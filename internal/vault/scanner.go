// Package vault reads markdown notes from a vault directory and extracts
// the metadata the clustering pipeline consumes: tags, resolved internal
// links, and file descriptors.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/thebtf/notemap/pkg/models"
)

var (
	tagPattern  = regexp.MustCompile(`(?:^|\s)#([\p{L}\d/_-]+)`)
	linkPattern = regexp.MustCompile(`\[\[([^\]|#]+)(?:[#|][^\]]*)?\]\]`)
)

// Note is one scanned markdown file.
type Note struct {
	Path string
	Text string
}

// Snapshot is the result of scanning a vault.
type Snapshot struct {
	Notes []Note
	// Tags maps note path to its tags.
	Tags map[string][]string
	// Links maps source note path to target note path to link count.
	Links map[string]map[string]int
	// Files maps note path to filesystem metadata.
	Files map[string]models.NoteFile
}

// Scan walks the vault root, reads every markdown note, and resolves
// wikilinks by basename. Hidden directories are skipped. Note paths are
// vault-relative with forward slashes.
func Scan(root string) (*Snapshot, error) {
	snap := &Snapshot{
		Tags:  make(map[string][]string),
		Links: make(map[string]map[string]int),
		Files: make(map[string]models.NoteFile),
	}

	var paths []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(p), ".md") {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk vault %s: %w", root, err)
	}
	sort.Strings(paths)

	// First pass: read notes and index basenames for link resolution.
	byBasename := make(map[string][]string)
	rawLinks := make(map[string][]string)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read note %s: %w", p, err)
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)
		text := string(data)

		snap.Notes = append(snap.Notes, Note{Path: rel, Text: text})
		basename := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
		snap.Files[rel] = models.NoteFile{
			Basename: basename,
			Folder:   filepath.ToSlash(filepath.Dir(rel)),
		}
		byBasename[strings.ToLower(basename)] = append(byBasename[strings.ToLower(basename)], rel)

		snap.Tags[rel] = extractTags(text)
		for _, m := range linkPattern.FindAllStringSubmatch(text, -1) {
			rawLinks[rel] = append(rawLinks[rel], strings.TrimSpace(m[1]))
		}
	}

	// Second pass: resolve links now the whole vault is indexed.
	for source, targets := range rawLinks {
		for _, target := range targets {
			resolved := resolveLink(target, byBasename)
			if resolved == "" || resolved == source {
				continue
			}
			if snap.Links[source] == nil {
				snap.Links[source] = make(map[string]int)
			}
			snap.Links[source][resolved]++
		}
	}

	return snap, nil
}

// extractTags returns deduped #tags in order of first appearance.
func extractTags(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		tag := strings.ToLower(m[1])
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}

// resolveLink maps a wikilink target to a vault-relative note path. Targets
// may be bare basenames or paths; ambiguous basenames resolve to the
// lexicographically smallest candidate.
func resolveLink(target string, byBasename map[string][]string) string {
	target = strings.TrimSuffix(target, ".md")
	key := strings.ToLower(filepath.Base(target))
	candidates := byBasename[key]
	if len(candidates) == 0 {
		return ""
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	// Prefer an exact path match, then the smallest candidate.
	normalized := filepath.ToSlash(target) + ".md"
	for _, c := range candidates {
		if strings.EqualFold(c, normalized) {
			return c
		}
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c < best {
			best = c
		}
	}
	return best
}
