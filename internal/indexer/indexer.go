// Package indexer turns a zip archive into the flat, path-sorted node list
// stored for a catalog entry.
//
// Indexing strips the single wrapper folder that "download as zip" archives
// add, optionally narrows the tree to a subfolder, and synthesizes a
// directory node for every ancestor of every retained file. Indexing the same
// bytes with the same options always yields the same nodes in the same order.
package indexer

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/klauspost/compress/zip"

	sharedErrors "github.com/javi11/skillvault/internal/errors"
)

type NodeKind string

const (
	KindFile NodeKind = "file"
	KindDir  NodeKind = "dir"
)

// DefaultExcludes drops dependency caches and version control metadata.
// Patterns match as substrings of "/"+internal path, so ".git/" keeps ".github/".
var DefaultExcludes = []string{"node_modules/", ".git/"}

// Node is one file or directory of the indexed tree.
type Node struct {
	Kind NodeKind `json:"kind"`
	// Path is the canonical relative path. Directories end with "/".
	Path string `json:"path"`
	// ParentPath is the parent directory path, "" at the tree root.
	ParentPath  string  `json:"parent_path"`
	Name        string  `json:"name"`
	Ext         *string `json:"ext"`
	Depth       int     `json:"depth"`
	Size        *int64  `json:"size"`
	ContentType *string `json:"content_type"`
	// InternalPath is the literal archive entry name, nil for synthesized directories.
	InternalPath *string `json:"internal_path"`
}

// IsDir reports whether the node is a directory.
func (n Node) IsDir() bool {
	return n.Kind == KindDir
}

// Result of indexing one archive.
type Result struct {
	// EntryCount is the number of archive files that survived filtering.
	EntryCount int
	Nodes      []Node
	// Excluded counts files dropped by the exclude patterns.
	Excluded int
	// Duplicates counts files whose canonical path was already taken.
	Duplicates int
}

// Files returns only the file nodes, in path order.
func (r *Result) Files() []Node {
	files := make([]Node, 0, r.EntryCount)
	for _, n := range r.Nodes {
		if n.Kind == KindFile {
			files = append(files, n)
		}
	}
	return files
}

// Options tune Index.
type Options struct {
	// Subfolder keeps only entries under this path (relative to the wrapper folder) and re-roots them there.
	Subfolder string
	// Excludes overrides DefaultExcludes when non-nil.
	Excludes []string
}

// Open parses data as a zip archive. Failures wrap ErrArchiveFormat.
func Open(data []byte) (*zip.Reader, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrArchiveFormat, err)
	}
	return r, nil
}

// Index indexes data, narrowed to subfolder when it is not empty.
func Index(data []byte, subfolder string) (*Result, error) {
	return IndexWithOptions(data, Options{Subfolder: subfolder})
}

// IndexWithOptions indexes data with explicit options.
func IndexWithOptions(data []byte, opts Options) (*Result, error) {
	r, err := Open(data)
	if err != nil {
		return nil, err
	}

	entries := make([]entry, 0, len(r.File))
	for _, f := range r.File {
		entries = append(entries, entry{
			name:  f.Name,
			dir:   f.FileInfo().IsDir(),
			size:  int64(f.UncompressedSize64),
			sized: true,
		})
	}

	return build(entries, opts), nil
}

// entry is the format-independent view of one archive member.
type entry struct {
	name  string
	dir   bool
	size  int64
	sized bool
}

func build(entries []entry, opts Options) *Result {
	excludes := opts.Excludes
	if excludes == nil {
		excludes = DefaultExcludes
	}
	subfolder := strings.Trim(normalizeSlashes(opts.Subfolder), "/")

	res := &Result{}
	seen := make(map[string]struct{})
	var nodes []Node

	for _, e := range entries {
		if e.dir || strings.HasSuffix(e.name, "/") {
			continue
		}

		if excluded("/"+normalizeSlashes(e.name), excludes) {
			res.Excluded++
			continue
		}

		segments, ok := splitSegments(e.name)
		if !ok || len(segments) == 0 {
			continue
		}

		// Strip the wrapper folder; a single-segment path has none.
		if len(segments) > 1 {
			segments = segments[1:]
		}

		if subfolder != "" {
			rel, ok := strings.CutPrefix(strings.Join(segments, "/"), subfolder+"/")
			if !ok || rel == "" {
				continue
			}
			segments = strings.Split(rel, "/")
		}

		path := strings.Join(segments, "/")
		if _, dup := seen[path]; dup {
			res.Duplicates++
			continue
		}
		seen[path] = struct{}{}

		nodes = append(nodes, fileNode(segments, e))
		res.EntryCount++

		for depth := 1; depth < len(segments); depth++ {
			dirPath := strings.Join(segments[:depth], "/") + "/"
			if _, ok := seen[dirPath]; ok {
				continue
			}
			seen[dirPath] = struct{}{}
			nodes = append(nodes, dirNode(segments[:depth]))
		}
	}

	slices.SortFunc(nodes, func(a, b Node) int {
		return strings.Compare(a.Path, b.Path)
	})

	res.Nodes = nodes
	if res.Nodes == nil {
		res.Nodes = []Node{}
	}
	return res
}

func fileNode(segments []string, e entry) Node {
	name := segments[len(segments)-1]
	internal := e.name

	n := Node{
		Kind:         KindFile,
		Path:         strings.Join(segments, "/"),
		ParentPath:   parentOf(segments),
		Name:         name,
		Depth:        len(segments),
		InternalPath: &internal,
	}

	if ext := Extension(name); ext != "" {
		n.Ext = &ext
	}

	var ext string
	if n.Ext != nil {
		ext = *n.Ext
	}
	ct := ContentTypeFor(ext)
	n.ContentType = &ct

	if e.sized {
		size := e.size
		n.Size = &size
	}

	return n
}

func dirNode(segments []string) Node {
	return Node{
		Kind:       KindDir,
		Path:       strings.Join(segments, "/") + "/",
		ParentPath: parentOf(segments),
		Name:       segments[len(segments)-1],
		Depth:      len(segments),
	}
}

func parentOf(segments []string) string {
	if len(segments) <= 1 {
		return ""
	}
	return strings.Join(segments[:len(segments)-1], "/") + "/"
}

// splitSegments normalizes an archive name into clean path segments.
// Names that climb out of the archive root are rejected.
func splitSegments(name string) ([]string, bool) {
	raw := strings.Split(normalizeSlashes(name), "/")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		switch s {
		case "", ".":
			continue
		case "..":
			return nil, false
		}
		segments = append(segments, s)
	}
	return segments, true
}

func normalizeSlashes(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

func excluded(path string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(path, "/"+strings.TrimPrefix(p, "/")) {
			return true
		}
	}
	return false
}
