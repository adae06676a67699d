package reader

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SchemaInfo describes one field observed in a record set
type SchemaInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Count    int    `json:"count"`
	Distinct int    `json:"distinct"`
	Null     int    `json:"null"`
}

// ExtractSchemaInfo summarises the fields of a record set: the value
// type, how many records carry the field and how many distinct values it
// has. A field seen with several types reports them joined with "|".
// Fields are sorted by name.
func ExtractSchemaInfo(records []map[string]interface{}) []SchemaInfo {
	type stats struct {
		types  map[string]bool
		values map[string]bool
		count  int
		nulls  int
	}
	fields := make(map[string]*stats)

	for _, rec := range records {
		for name, v := range rec {
			st, ok := fields[name]
			if !ok {
				st = &stats{types: make(map[string]bool), values: make(map[string]bool)}
				fields[name] = st
			}
			st.count++
			if v == nil {
				st.nulls++
				continue
			}
			st.types[typeName(v)] = true
			st.values[fmt.Sprint(v)] = true
		}
	}

	infos := make([]SchemaInfo, 0, len(fields))
	for name, st := range fields {
		types := make([]string, 0, len(st.types))
		for t := range st.types {
			types = append(types, t)
		}
		sort.Strings(types)
		typ := strings.Join(types, "|")
		if typ == "" {
			typ = "null"
		}
		infos = append(infos, SchemaInfo{
			Name:     name,
			Type:     typ,
			Count:    st.count,
			Distinct: len(st.values),
			Null:     st.nulls,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// typeName returns a user-facing type name for a record value
func typeName(v interface{}) string {
	switch v.(type) {
	case string, []byte:
		return "string"
	case bool:
		return "bool"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "int"
	case float32, float64:
		return "float"
	case time.Time:
		return "time"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
