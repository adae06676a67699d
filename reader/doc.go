// Package reader loads record sets and lookup tables from files.
//
// Parquet, JSON Lines, JSON arrays, CSV, XLSX and plain text logs are
// supported. Files may be gzip, zstd or xz compressed; the compression
// is detected from the leading magic bytes. Every record is a
// map[string]interface{} ready to be handed to the query executor.
//
// A timestamp field (_time, timestamp, time or @timestamp) is parsed into
// _time. When several files are read, each record is tagged with the
// source path in _file and a content fingerprint in _sourceid.
//
// Example:
//
//	records, err := reader.ReadFiles([]string{"logs/**/*.jsonl.gz"}, reader.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
package reader
