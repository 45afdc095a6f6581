package engine

import (
	"strings"

	"github.com/pkg/errors"
)

// DefaultPartition is the directory value used for null and empty partition
// values. It reads back as null.
const DefaultPartition = "__HIVE_DEFAULT_PARTITION__"

const hexDigits = "0123456789ABCDEF"

// needsEscape reports whether b can't appear literally in a partition
// directory name. The set matches Hive and Spark so trees are readable by
// either.
func needsEscape(b byte) bool {
	if b >= 0x01 && b <= 0x1F || b == 0x7F {
		return true
	}
	switch b {
	case '"', '#', '%', '\'', '*', '/', ':', '=', '?', '\\', '{', '[', ']', '^':
		return true
	}
	return false
}

// EscapePartitionValue encodes v for use in a path component.
func EscapePartitionValue(v string) string {
	n := 0
	for i := 0; i < len(v); i++ {
		if needsEscape(v[i]) {
			n++
		}
	}
	if n == 0 {
		return v
	}
	sb := strings.Builder{}
	sb.Grow(len(v) + 2*n)
	for i := 0; i < len(v); i++ {
		b := v[i]
		if needsEscape(b) {
			sb.WriteByte('%')
			sb.WriteByte(hexDigits[b>>4])
			sb.WriteByte(hexDigits[b&0xF])
			continue
		}
		sb.WriteByte(b)
	}
	return sb.String()
}

// UnescapePartitionValue reverses EscapePartitionValue. A '%' not followed by
// two hex digits is kept as is.
func UnescapePartitionValue(v string) string {
	if !strings.Contains(v, "%") {
		return v
	}
	sb := strings.Builder{}
	sb.Grow(len(v))
	for i := 0; i < len(v); i++ {
		if v[i] == '%' && i+2 < len(v) {
			hi, ok1 := unhex(v[i+1])
			lo, ok2 := unhex(v[i+2])
			if ok1 && ok2 {
				sb.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
		}
		sb.WriteByte(v[i])
	}
	return sb.String()
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// PartitionDir returns the directory name for value under column.
func PartitionDir(column string, value *string) string {
	if value == nil || *value == "" {
		return EscapePartitionValue(column) + "=" + DefaultPartition
	}
	return EscapePartitionValue(column) + "=" + EscapePartitionValue(*value)
}

// ParsePartitionDir splits a directory name produced by PartitionDir. ok is
// false if the name isn't of the form column=value.
func ParsePartitionDir(name string) (column string, value *string, ok bool) {
	i := strings.IndexByte(name, '=')
	if i <= 0 {
		return "", nil, false
	}
	column = UnescapePartitionValue(name[:i])
	raw := name[i+1:]
	if raw == DefaultPartition {
		return column, nil, true
	}
	v := UnescapePartitionValue(raw)
	return column, &v, true
}

// partitionValue finds column's value in the directory part of a slash
// separated relative path.
func partitionValue(rel, column string) (*string, error) {
	parts := strings.Split(rel, "/")
	for _, dir := range parts[:len(parts)-1] {
		col, val, ok := ParsePartitionDir(dir)
		if ok && col == column {
			return val, nil
		}
	}
	return nil, errors.Errorf("%s is not under a %s= partition", rel, column)
}
