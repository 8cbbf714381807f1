package dialect

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/syssam/sqlbridge"
)

// Kind is the logical type of a bound value. It selects the coercion applied
// before the value reaches the native driver.
type Kind int

// Value kinds.
const (
	KindText Kind = iota + 1
	KindInteger
	KindDecimal
	KindBoolean
	KindDateTime
	KindBinary
	KindJSON
	KindArray
	KindEnum
	KindUUID
)

var kindNames = map[Kind]string{
	KindText:     "text",
	KindInteger:  "integer",
	KindDecimal:  "decimal",
	KindBoolean:  "boolean",
	KindDateTime: "datetime",
	KindBinary:   "binary",
	KindJSON:     "json",
	KindArray:    "array",
	KindEnum:     "enum",
	KindUUID:     "uuid",
}

// String returns the kind name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind parses a kind name.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("dialect: unknown value kind %q", s)
}

// TypeName returns the native column type the product uses for k, or "" if
// the product has no column type for it.
func (d *Dialect) TypeName(k Kind) string {
	var names [6]string // sqlserver, postgres, mysql, sqlite, oracle, firebird
	switch k {
	case KindText:
		names = [6]string{"NVARCHAR(MAX)", "TEXT", "TEXT", "TEXT", "VARCHAR2(4000)", "VARCHAR(8191)"}
	case KindInteger:
		names = [6]string{"BIGINT", "BIGINT", "BIGINT", "INTEGER", "NUMBER(19)", "BIGINT"}
	case KindDecimal:
		names = [6]string{"DECIMAL(38,10)", "NUMERIC", "DECIMAL(65,10)", "NUMERIC", "NUMBER", "DECIMAL(18,4)"}
	case KindBoolean:
		names = [6]string{"BIT", "BOOLEAN", "BOOLEAN", "INTEGER", "NUMBER(1)", "BOOLEAN"}
	case KindDateTime:
		names = [6]string{"DATETIME2", "TIMESTAMPTZ", "DATETIME(6)", "TEXT", "TIMESTAMP WITH TIME ZONE", "TIMESTAMP"}
	case KindBinary:
		names = [6]string{"VARBINARY(MAX)", "BYTEA", "LONGBLOB", "BLOB", "BLOB", "BLOB"}
	case KindJSON:
		names = [6]string{"NVARCHAR(MAX)", "JSONB", "JSON", "TEXT", "CLOB", "BLOB SUB_TYPE TEXT"}
	case KindArray:
		names = [6]string{"", "TEXT[]", "", "", "", ""}
	case KindEnum:
		names = [6]string{"NVARCHAR(255)", "TEXT", "VARCHAR(255)", "TEXT", "VARCHAR2(255)", "VARCHAR(255)"}
	case KindUUID:
		names = [6]string{"UNIQUEIDENTIFIER", "UUID", "CHAR(36)", "TEXT", "RAW(16)", "CHAR(16) CHARACTER SET OCTETS"}
	default:
		return ""
	}
	if !d.product.Valid() {
		panic(unknownProduct(d.product))
	}
	return names[d.product-SQLServer]
}

// sqliteTime is the text layout SQLite date functions understand.
const sqliteTime = "2006-01-02 15:04:05.999999999-07:00"

var numeric = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Coerce converts v to the value the native driver expects for kind k on this
// product. A nil value, a nil pointer and a driver.Valuer producing nil all
// bind SQL NULL. The result never aliases caller-owned mutable memory.
func (d *Dialect) Coerce(k Kind, v any) (any, error) {
	v, err := d.normalize(k, v)
	if err != nil || v == nil {
		return nil, err
	}
	switch k {
	case KindText:
		return d.coerceText(k, v)
	case KindInteger:
		return d.coerceInteger(k, v)
	case KindDecimal:
		return d.coerceDecimal(k, v)
	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, d.mismatch(k, v)
		}
		switch d.product {
		case SQLite, Oracle:
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
		return b, nil
	case KindDateTime:
		t, ok := v.(time.Time)
		if !ok {
			return nil, d.mismatch(k, v)
		}
		if d.product == SQLite {
			return t.UTC().Format(sqliteTime), nil
		}
		return t, nil
	case KindBinary:
		switch b := v.(type) {
		case []byte:
			return bytes.Clone(b), nil
		case string:
			return []byte(b), nil
		}
		return nil, d.mismatch(k, v)
	case KindJSON:
		return d.coerceJSON(k, v)
	case KindArray:
		return d.coerceArray(k, v)
	case KindEnum:
		if s, ok := v.(string); ok {
			return s, nil
		}
		if s, ok := v.(fmt.Stringer); ok {
			return s.String(), nil
		}
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
			return rv.String(), nil
		}
		return nil, d.mismatch(k, v)
	case KindUUID:
		return d.coerceUUID(k, v)
	}
	return nil, d.bindingError(k, "unknown value kind", nil)
}

// normalize resolves pointers and driver.Valuer implementations. Valuers are
// not unwrapped for JSON and arrays, whose own encoders handle them.
func (d *Dialect) normalize(k Kind, v any) (any, error) {
	for v != nil {
		if k != KindJSON && k != KindArray && k != KindUUID {
			if valuer, ok := v.(driver.Valuer); ok {
				rv := reflect.ValueOf(v)
				if rv.Kind() == reflect.Pointer && rv.IsNil() {
					return nil, nil
				}
				dv, err := valuer.Value()
				if err != nil {
					return nil, d.bindingError(k, "valuer failed", err)
				}
				v = dv
				continue
			}
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer {
			return v, nil
		}
		if rv.IsNil() {
			return nil, nil
		}
		v = rv.Elem().Interface()
	}
	return nil, nil
}

func (d *Dialect) coerceText(k Kind, v any) (any, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case fmt.Stringer:
		return s.String(), nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return nil, d.mismatch(k, v)
}

func (d *Dialect) coerceInteger(k Kind, v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, d.bindingError(k, "value overflows int64", nil)
		}
		return int64(u), nil
	}
	return nil, d.mismatch(k, v)
}

func (d *Dialect) coerceDecimal(k Kind, v any) (any, error) {
	var (
		s string
		f float64
	)
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32:
		// Format at float32 precision so 9.99 stays 9.99.
		s = strconv.FormatFloat(rv.Float(), 'f', -1, 32)
		f, _ = strconv.ParseFloat(s, 64)
	case reflect.Float64:
		f = rv.Float()
		s = strconv.FormatFloat(f, 'f', -1, 64)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := d.coerceInteger(k, v)
		if err != nil {
			return nil, err
		}
		if d.product == SQLite {
			return i, nil
		}
		return strconv.FormatInt(i.(int64), 10), nil
	case reflect.String:
		s = strings.TrimSpace(rv.String())
		if !numeric.MatchString(s) {
			return nil, d.bindingError(k, fmt.Sprintf("%q is not a decimal number", s), nil)
		}
		if d.product != SQLite {
			return s, nil
		}
		var err error
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return nil, d.bindingError(k, "decimal out of range", err)
		}
	default:
		return nil, d.mismatch(k, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, d.bindingError(k, "decimal must be finite", nil)
	}
	if d.product == SQLite {
		return f, nil
	}
	return s, nil
}

func (d *Dialect) coerceJSON(k Kind, v any) (any, error) {
	var raw []byte
	switch j := v.(type) {
	case json.RawMessage:
		raw = j
	case []byte:
		raw = j
	case string:
		raw = []byte(j)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, d.bindingError(k, "cannot marshal value", err)
		}
		return string(b), nil
	}
	if !json.Valid(raw) {
		return nil, d.bindingError(k, "invalid JSON document", nil)
	}
	return string(raw), nil
}

func (d *Dialect) coerceArray(k Kind, v any) (any, error) {
	if err := d.Require(FeatureArrays); err != nil {
		return nil, d.bindingError(k, "arrays cannot be bound", err)
	}
	rv := reflect.ValueOf(v)
	if (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, d.mismatch(k, v)
	}
	// Materialize now so later mutation of the caller's slice is not observed.
	dv, err := pq.Array(v).Value()
	if err != nil {
		return nil, d.bindingError(k, "cannot encode array", err)
	}
	return dv, nil
}

func (d *Dialect) coerceUUID(k Kind, v any) (any, error) {
	var (
		u   uuid.UUID
		err error
	)
	switch x := v.(type) {
	case uuid.UUID:
		u = x
	case [16]byte:
		u = uuid.UUID(x)
	case string:
		if u, err = uuid.Parse(x); err != nil {
			return nil, d.bindingError(k, "invalid UUID", err)
		}
	case []byte:
		if u, err = uuid.FromBytes(x); err != nil {
			if u, err = uuid.ParseBytes(x); err != nil {
				return nil, d.bindingError(k, "invalid UUID", err)
			}
		}
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return nil, d.bindingError(k, "valuer failed", err)
		}
		if dv == nil {
			return nil, nil
		}
		return d.coerceUUID(k, dv)
	default:
		return nil, d.mismatch(k, v)
	}
	switch d.product {
	case Oracle, Firebird:
		b := make([]byte, 16)
		copy(b, u[:])
		return b, nil
	}
	return u.String(), nil
}

func (d *Dialect) mismatch(k Kind, v any) error {
	return d.bindingError(k, fmt.Sprintf("unsupported value of type %T", v), nil)
}

func (d *Dialect) bindingError(k Kind, reason string, err error) error {
	return &sqlbridge.ParameterBindingError{Dialect: d.Name(), Kind: k.String(), Reason: reason, Err: err}
}
