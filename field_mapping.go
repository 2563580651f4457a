// OgrMapper/field_mapping.go

package OgrMapper

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// inferFieldTypeFromValue 根据属性值推断字段类型
func inferFieldTypeFromValue(value interface{}) FieldType {
	switch v := value.(type) {
	case string:
		return FieldTypeString
	case float64: // JSON number
		// 检查是否为整数
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			if v >= math.MinInt32 && v <= math.MaxInt32 {
				return FieldTypeInteger
			}
			return FieldTypeInteger64
		}
		return FieldTypeReal
	case float32:
		return FieldTypeReal
	case int, int8, int16, int32, uint8, uint16:
		return FieldTypeInteger
	case int64, uint32, uint64:
		return FieldTypeInteger64
	case bool:
		// 没有原生布尔类型，用整数表示 (0/1)
		return FieldTypeInteger
	case time.Time:
		return FieldTypeDateTime
	case []byte:
		return FieldTypeBinary
	default:
		// nil、map、array 等默认用字符串
		return FieldTypeString
	}
}

// inferFieldTypeFromText 根据文本内容推断字段类型（CSV、DXF等无类型数据源）
func inferFieldTypeFromText(s string) FieldType {
	s = strings.TrimSpace(s)
	if s == "" {
		return FieldTypeString
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return FieldTypeInteger
		}
		return FieldTypeInteger64
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return FieldTypeReal
	}
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return FieldTypeDate
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return FieldTypeDateTime
	}
	return FieldTypeString
}

// mergeFieldTypes 合并两次推断结果，冲突时放宽为更通用的类型
func mergeFieldTypes(a, b FieldType) FieldType {
	if a == b {
		return a
	}
	numeric := func(t FieldType) int {
		switch t {
		case FieldTypeInteger:
			return 1
		case FieldTypeInteger64:
			return 2
		case FieldTypeReal:
			return 3
		}
		return 0
	}
	na, nb := numeric(a), numeric(b)
	if na > 0 && nb > 0 {
		if na > nb {
			return a
		}
		return b
	}
	return FieldTypeString
}

// formatFieldValue 将属性值格式化为字段文本
func formatFieldValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case time.Time:
		return v.Format(time.RFC3339)
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}

// typedFieldValue 按字段类型将字段文本还原为带类型的值
func typedFieldValue(fieldType FieldType, s string) interface{} {
	switch fieldType {
	case FieldTypeInteger, FieldTypeInteger64:
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v
		}
	case FieldTypeReal:
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return s
}

// inferFieldDefns 根据多条属性记录推断字段定义，字段按名称排序
func inferFieldDefns(records []map[string]interface{}) []*FieldDefn {
	types := map[string]FieldType{}
	seen := map[string]bool{}
	for _, record := range records {
		for key, value := range record {
			seen[key] = true
			if value == nil {
				continue
			}
			t := inferFieldTypeFromValue(value)
			if prev, ok := types[key]; ok {
				t = mergeFieldTypes(prev, t)
			}
			types[key] = t
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	defns := make([]*FieldDefn, 0, len(names))
	for _, name := range names {
		t, ok := types[name]
		if !ok {
			t = FieldTypeString
		}
		fd := NewFieldDefn(name, t)
		if fd.Type == FieldTypeString {
			fd.SetWidth(254)
		}
		defns = append(defns, fd)
	}
	return defns
}
