package reader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/valyala/fastjson"
)

// maxLineSize bounds a single JSON Lines or text line
const maxLineSize = 16 * 1024 * 1024

var parserPool fastjson.ParserPool

// readJSON decodes a JSON array of objects or JSON Lines. Each object
// becomes a record; its source text is kept in _raw unless the object
// has its own _raw.
func readJSON(r io.Reader) ([]map[string]interface{}, error) {
	br := bufio.NewReader(r)
	if first, err := firstNonSpace(br); err == nil && first == '[' {
		data, err := io.ReadAll(br)
		if err != nil {
			return nil, err
		}
		return readJSONArray(data)
	}
	return readJSONLines(br)
}

func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n', 0xef, 0xbb, 0xbf:
			continue
		}
		return b, br.UnreadByte()
	}
}

func readJSONArray(data []byte) ([]map[string]interface{}, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	items, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	records := make([]map[string]interface{}, 0, len(items))
	for i, item := range items {
		rec, err := jsonRecord(item, nil)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readJSONLines(r io.Reader) ([]map[string]interface{}, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	records := make([]map[string]interface{}, 0)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		v, err := p.ParseBytes(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNo, err)
		}
		rec, err := jsonRecord(v, line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// jsonRecord converts a JSON object to a record. raw is the source text;
// nil re-encodes the object.
func jsonRecord(v *fastjson.Value, raw []byte) (map[string]interface{}, error) {
	obj, err := v.Object()
	if err != nil {
		return nil, fmt.Errorf("expected a JSON object, got %s", v.Type())
	}
	rec := make(map[string]interface{}, obj.Len()+1)
	obj.Visit(func(key []byte, val *fastjson.Value) {
		rec[string(key)] = jsonValue(val)
	})
	if _, ok := rec["_raw"]; !ok {
		if raw == nil {
			raw = v.MarshalTo(nil)
		}
		rec["_raw"] = string(raw)
	}
	return rec, nil
}

// jsonValue converts a fastjson value to plain Go values. Integers become
// int64, other numbers float64, arrays []interface{} and objects
// map[string]interface{}.
func jsonValue(v *fastjson.Value) interface{} {
	switch v.Type() {
	case fastjson.TypeNull:
		return nil
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeNumber:
		if n, err := v.Int64(); err == nil {
			return n
		}
		f, _ := v.Float64()
		return f
	case fastjson.TypeString:
		s, _ := v.StringBytes()
		return string(s)
	case fastjson.TypeArray:
		arr, _ := v.Array()
		out := make([]interface{}, len(arr))
		for i, item := range arr {
			out[i] = jsonValue(item)
		}
		return out
	case fastjson.TypeObject:
		obj, _ := v.Object()
		out := make(map[string]interface{}, obj.Len())
		obj.Visit(func(key []byte, val *fastjson.Value) {
			out[string(key)] = jsonValue(val)
		})
		return out
	}
	return nil
}

// readText reads one record per non-empty line with the line in _raw
func readText(r io.Reader) ([]map[string]interface{}, error) {
	records := make([]map[string]interface{}, 0)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		records = append(records, map[string]interface{}{"_raw": line})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
