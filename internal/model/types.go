package model

import (
	"fmt"
	"strings"
)

// LogicalType is the normalized, vendor-independent SQL type vocabulary.
type LogicalType string

const (
	Int8      LogicalType = "INT8"
	Int16     LogicalType = "INT16"
	Int32     LogicalType = "INT32"
	Int64     LogicalType = "INT64"
	Boolean   LogicalType = "BOOLEAN"
	Char      LogicalType = "CHAR"
	Varchar   LogicalType = "VARCHAR"
	Clob      LogicalType = "CLOB"
	Blob      LogicalType = "BLOB"
	Decimal   LogicalType = "DECIMAL"
	Date      LogicalType = "DATE"
	Time      LogicalType = "TIME"
	Timestamp LogicalType = "TIMESTAMP"
)

// LogicalTypes lists every LogicalType in declaration order.
var LogicalTypes = []LogicalType{
	Int8, Int16, Int32, Int64, Boolean, Char, Varchar, Clob, Blob,
	Decimal, Date, Time, Timestamp,
}

// ParseLogicalType returns the LogicalType named by s (case-insensitive).
func ParseLogicalType(s string) (LogicalType, error) {
	t := LogicalType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown logical type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the known logical types.
func (t LogicalType) Valid() bool {
	for _, known := range LogicalTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsInteger reports whether t is one of the INT* types.
func (t LogicalType) IsInteger() bool {
	switch t {
	case Int8, Int16, Int32, Int64:
		return true
	}
	return false
}

// IsText reports whether values of t are character data.
func (t LogicalType) IsText() bool {
	switch t {
	case Char, Varchar, Clob:
		return true
	}
	return false
}

// IsLOB reports whether t is a large object type.
func (t LogicalType) IsLOB() bool {
	return t == Blob || t == Clob
}

// BitSize returns the width of an integer type, or 0 for other types.
func (t LogicalType) BitSize() int {
	switch t {
	case Int8:
		return 8
	case Int16:
		return 16
	case Int32:
		return 32
	case Int64:
		return 64
	}
	return 0
}

// MappingError reports a native column type with no LogicalType equivalent.
type MappingError struct {
	Table      string
	Column     string
	NativeType string
}

func (e *MappingError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("unmapped native type %q", e.NativeType)
	}
	return fmt.Sprintf("unmapped native type %q for column %s.%s", e.NativeType, e.Table, e.Column)
}

// nativeTypes maps lower-cased native type names, as reported by the
// supported vendors' catalogs, to logical types. NUMBER is resolved
// separately because its logical type depends on precision and scale.
var nativeTypes = map[string]LogicalType{
	"tinyint": Int8,
	"int1":    Int8,

	"smallint":    Int16,
	"int2":        Int16,
	"smallserial": Int16,
	"year":        Int16,

	"integer":   Int32,
	"int":       Int32,
	"int4":      Int32,
	"mediumint": Int32,
	"serial":    Int32,

	"bigint":    Int64,
	"int8":      Int64,
	"bigserial": Int64,

	"boolean": Boolean,
	"bool":    Boolean,
	"bit":     Boolean,

	"char":      Char,
	"character": Char,
	"nchar":     Char,
	"bpchar":    Char,

	"varchar":            Varchar,
	"character varying":  Varchar,
	"varchar2":           Varchar,
	"nvarchar2":          Varchar,
	"nvarchar":           Varchar,
	"varchar_ignorecase": Varchar,

	"text":                   Clob,
	"clob":                   Clob,
	"nclob":                  Clob,
	"character large object": Clob,
	"tinytext":               Clob,
	"mediumtext":             Clob,
	"longtext":               Clob,
	"long varchar":           Clob,
	"long":                   Clob,

	"blob":                      Blob,
	"bytea":                     Blob,
	"binary large object":       Blob,
	"tinyblob":                  Blob,
	"mediumblob":                Blob,
	"longblob":                  Blob,
	"binary":                    Blob,
	"varbinary":                 Blob,
	"binary varying":            Blob,
	"raw":                       Blob,
	"long raw":                  Blob,
	"long varchar for bit data": Blob,
	"varchar () for bit data":   Blob,

	"decimal":          Decimal,
	"numeric":          Decimal,
	"dec":              Decimal,
	"real":             Decimal,
	"float":            Decimal,
	"float4":           Decimal,
	"float8":           Decimal,
	"double":           Decimal,
	"double precision": Decimal,
	"decfloat":         Decimal,
	"binary_float":     Decimal,
	"binary_double":    Decimal,

	"date": Date,

	"time":                   Time,
	"time without time zone": Time,

	"timestamp":                   Timestamp,
	"datetime":                    Timestamp,
	"timestamp without time zone": Timestamp,
	"timestamp with time zone":    Timestamp,
	"timestamptz":                 Timestamp,
}

// MapNativeType resolves a native type name to a LogicalType. Length and
// precision suffixes such as "VARCHAR(100)" or "TIMESTAMP(6)" are ignored;
// precision and scale come from the catalog columns instead. A native type
// literally named "text" is always CLOB.
func MapNativeType(native string, precision, scale int) (LogicalType, error) {
	name := normalizeNativeName(native)
	if name == "text" {
		return Clob, nil
	}
	if name == "number" {
		return mapNumber(precision, scale), nil
	}
	if t, ok := nativeTypes[name]; ok {
		return t, nil
	}
	return "", &MappingError{NativeType: native}
}

// mapNumber resolves Oracle NUMBER(p,s). The integer buckets mirror the
// widths the oracle templates emit for each integer type.
func mapNumber(precision, scale int) LogicalType {
	if scale != 0 || precision <= 0 {
		return Decimal
	}
	switch {
	case precision == 1:
		return Boolean
	case precision <= 3:
		return Int8
	case precision <= 5:
		return Int16
	case precision <= 10:
		return Int32
	case precision <= 19:
		return Int64
	}
	return Decimal
}

func normalizeNativeName(native string) string {
	name := strings.ToLower(strings.TrimSpace(native))
	if i := strings.IndexByte(name, '('); i >= 0 {
		rest := ""
		if j := strings.IndexByte(name[i:], ')'); j >= 0 {
			rest = strings.TrimSpace(name[i+j+1:])
		}
		name = strings.TrimSpace(name[:i])
		if strings.HasPrefix(rest, "with") || strings.HasPrefix(rest, "without") {
			name += " " + rest
		} else if rest == "for bit data" {
			name += " () for bit data"
		}
	}
	name = strings.TrimSuffix(name, " unsigned")
	name = strings.TrimSuffix(name, " not null")
	return strings.Join(strings.Fields(name), " ")
}
