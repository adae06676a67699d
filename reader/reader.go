package reader

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Format is a record file format
type Format int

const (
	// FormatAuto picks the format from the file extension
	FormatAuto Format = iota
	FormatParquet
	// FormatJSON is a JSON array of objects or JSON Lines
	FormatJSON
	FormatCSV
	FormatXLSX
	// FormatText is one _raw event per line
	FormatText
)

// String returns the name of the format
func (f Format) String() string {
	switch f {
	case FormatParquet:
		return "parquet"
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	case FormatXLSX:
		return "xlsx"
	case FormatText:
		return "text"
	default:
		return "auto"
	}
}

// ParseFormat parses a format name
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "parquet":
		return FormatParquet, nil
	case "json", "jsonl", "ndjson":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	case "text", "txt", "log":
		return FormatText, nil
	}
	return FormatAuto, fmt.Errorf("unsupported input format %q", s)
}

// compressedExts are stripped before the format extension is read
var compressedExts = []string{".gz", ".zst", ".zstd", ".xz"}

// DetectFormat picks a format from the file extension, ignoring a
// compression suffix. Unknown extensions are read as text.
func DetectFormat(path string) Format {
	name := strings.ToLower(filepath.Base(path))
	for _, ext := range compressedExts {
		name = strings.TrimSuffix(name, ext)
	}
	switch filepath.Ext(name) {
	case ".parquet", ".pq":
		return FormatParquet
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON
	case ".csv":
		return FormatCSV
	case ".xlsx":
		return FormatXLSX
	}
	return FormatText
}

// Options controls how files are read
type Options struct {
	Format Format

	// TimeField names the field parsed into _time. Empty tries _time,
	// timestamp, time and @timestamp.
	TimeField string
}

// maxFiles bounds how many files a glob may expand to
const maxFiles = 1000

// ReadFile reads all records of a single file
func ReadFile(path string, opts Options) ([]map[string]interface{}, error) {
	records, err := readRecords(path, opts.Format)
	if err != nil {
		return nil, err
	}
	normalizeTime(records, opts.TimeField)
	return records, nil
}

func readRecords(path string, format Format) ([]map[string]interface{}, error) {
	if format == FormatAuto {
		format = DetectFormat(path)
	}
	if format == FormatParquet {
		return readParquet(path)
	}
	return readStream(path, format)
}

func readStream(path string, format Format) ([]map[string]interface{}, error) {
	rc, err := OpenDecompressed(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	var decode func(io.Reader) ([]map[string]interface{}, error)
	switch format {
	case FormatJSON:
		decode = readJSON
	case FormatCSV:
		decode = readCSV
	case FormatXLSX:
		decode = readXLSX
	default:
		decode = readText
	}

	records, err := decode(rc)
	if err != nil {
		return nil, fmt.Errorf("invalid %s input: %w", format, err)
	}
	return records, nil
}

// isGlob reports whether a pattern contains glob wildcards
func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[]{}")
}

// ExpandPatterns resolves glob patterns, including ** for any depth, to
// a sorted list of files. Plain paths are kept as given.
func ExpandPatterns(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		if !isGlob(pattern) {
			if !seen[pattern] {
				seen[pattern] = true
				files = append(files, pattern)
			}
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern: %w", err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match pattern: %s", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}

	if len(files) > maxFiles {
		return nil, fmt.Errorf("patterns matched too many files (%d), maximum is %d", len(files), maxFiles)
	}
	return files, nil
}

// ReadFiles reads the records of every file matching the patterns, in
// pattern order.
//
// When more than one file is read, or any pattern is a glob, each record
// is tagged with its source path in _file and the content fingerprint in
// _sourceid. A single plain path is read untagged so that its output
// shape is unchanged.
func ReadFiles(patterns []string, opts Options) ([]map[string]interface{}, error) {
	files, err := ExpandPatterns(patterns)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files")
	}

	tag := len(files) > 1
	for _, p := range patterns {
		if isGlob(p) {
			tag = true
		}
	}

	var all []map[string]interface{}
	for _, path := range files {
		records, err := ReadFile(path, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if tag {
			id, err := Fingerprint(path)
			if err != nil {
				return nil, err
			}
			for _, rec := range records {
				rec["_file"] = path
				rec["_sourceid"] = id
			}
		}
		all = append(all, records...)
	}
	if all == nil {
		all = []map[string]interface{}{}
	}
	return all, nil
}

// ReadLookups loads lookup tables from files keyed by table name. Lookup
// rows are plain field tables: no _raw is kept and no _time is derived,
// so merging a row never replaces the event's own _raw or _time.
func ReadLookups(tables map[string]string) (map[string][]map[string]interface{}, error) {
	lookups := make(map[string][]map[string]interface{}, len(tables))
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rows, err := readRecords(tables[name], FormatAuto)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", name, err)
		}
		for _, row := range rows {
			delete(row, "_raw")
		}
		lookups[name] = rows
	}
	return lookups, nil
}
