package witschema

import (
	"reflect"
	"strconv"
	"strings"
	"sync"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/callwire/codec"
	"github.com/wippyai/callwire/errors"
)

// Schema maps WIT types onto Go types the codec can decode into. Results are
// cached per WIT type. A Schema is safe for concurrent use.
type Schema struct {
	cache sync.Map // cacheKey -> reflect.Type
}

var defaultSchema = New()

func New() *Schema {
	return &Schema{}
}

// Default returns the shared schema used by the package-level helpers.
func Default() *Schema {
	return defaultSchema
}

// cacheKey identifies a WIT type: type definitions by identity, primitives
// by their Go type.
type cacheKey struct {
	def  *wit.TypeDef
	prim reflect.Type
}

func keyOf(t wit.Type) cacheKey {
	if td, ok := t.(*wit.TypeDef); ok {
		return cacheKey{def: td}
	}
	return cacheKey{prim: reflect.TypeOf(t)}
}

var (
	charType  = reflect.TypeFor[codec.Char]()
	arrayType = reflect.TypeFor[codec.Array]()
	bytesType = reflect.TypeFor[[]byte]()
)

// GoType returns the Go type a record described by t decodes into.
func (s *Schema) GoType(t wit.Type) (reflect.Type, error) {
	if t == nil {
		return nil, errors.InvalidInput(errors.PhaseNormalize, "nil WIT type")
	}
	key := keyOf(t)
	if cached, ok := s.cache.Load(key); ok {
		return cached.(reflect.Type), nil
	}
	goType, err := s.goType(t, nil)
	if err != nil {
		return nil, err
	}
	s.cache.Store(key, goType)
	return goType, nil
}

func (s *Schema) goType(t wit.Type, path []string) (reflect.Type, error) {
	switch t := t.(type) {
	case wit.Bool:
		return reflect.TypeFor[bool](), nil
	case wit.S8:
		return reflect.TypeFor[int8](), nil
	case wit.U8:
		return reflect.TypeFor[uint8](), nil
	case wit.S16:
		return reflect.TypeFor[int16](), nil
	case wit.U16:
		return reflect.TypeFor[uint16](), nil
	case wit.S32:
		return reflect.TypeFor[int32](), nil
	case wit.U32:
		return reflect.TypeFor[uint32](), nil
	case wit.S64:
		return reflect.TypeFor[int64](), nil
	case wit.U64:
		return reflect.TypeFor[uint64](), nil
	case wit.F32:
		return reflect.TypeFor[float32](), nil
	case wit.F64:
		return reflect.TypeFor[float64](), nil
	case wit.Char:
		return charType, nil
	case wit.String:
		return reflect.TypeFor[string](), nil
	case *wit.TypeDef:
		return s.typeDef(t, path)
	default:
		return nil, errors.New(errors.PhaseNormalize, errors.KindUnsupported).
			Path(path...).
			Detail("unsupported WIT type: %T", t).
			Build()
	}
}

func (s *Schema) typeDef(t *wit.TypeDef, path []string) (reflect.Type, error) {
	switch kind := t.Kind.(type) {
	case *wit.Record:
		if IsNDArray(kind) {
			return arrayType, nil
		}
		fields := make([]reflect.StructField, 0, len(kind.Fields))
		for _, f := range kind.Fields {
			ft, err := s.goType(f.Type, append(path, f.Name))
			if err != nil {
				return nil, err
			}
			fields = append(fields, reflect.StructField{
				Name: FieldName(f.Name),
				Type: ft,
				Tag:  reflect.StructTag(`wit:"` + f.Name + `" yaml:"` + f.Name + `"`),
			})
		}
		return reflect.StructOf(fields), nil

	case *wit.Tuple:
		fields := make([]reflect.StructField, 0, len(kind.Types))
		for i, et := range kind.Types {
			name := strconv.Itoa(i)
			ft, err := s.goType(et, append(path, "["+name+"]"))
			if err != nil {
				return nil, err
			}
			fields = append(fields, reflect.StructField{
				Name: "F" + name,
				Type: ft,
				Tag:  reflect.StructTag(`yaml:"` + name + `"`),
			})
		}
		return reflect.StructOf(fields), nil

	case *wit.List:
		if _, ok := kind.Type.(wit.U8); ok {
			return bytesType, nil
		}
		et, err := s.goType(kind.Type, append(path, "[]"))
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(et), nil

	case *wit.Option:
		et, err := s.goType(kind.Type, path)
		if err != nil {
			return nil, err
		}
		return reflect.PointerTo(et), nil

	case *wit.Enum:
		return reflect.TypeFor[string](), nil

	case wit.Type:
		return s.goType(kind, path)

	default:
		return nil, errors.New(errors.PhaseNormalize, errors.KindUnsupported).
			Path(path...).
			Detail("unsupported WIT type definition: %T", kind).
			Build()
	}
}

// Tag returns the canonical wire type a value of t travels as. Options
// report the tag of their present value; their absent value is None.
func Tag(t wit.Type) (codec.Tag, error) {
	switch t := t.(type) {
	case wit.Bool:
		return codec.TagBool, nil
	case wit.S8, wit.U8, wit.S16, wit.U16, wit.S32, wit.U32, wit.S64, wit.U64:
		return codec.TagInt, nil
	case wit.F32, wit.F64:
		return codec.TagDouble, nil
	case wit.Char, wit.String:
		return codec.TagText, nil
	case *wit.TypeDef:
		switch kind := t.Kind.(type) {
		case *wit.Record:
			if IsNDArray(kind) {
				return codec.TagArray, nil
			}
			return codec.TagTuple, nil
		case *wit.Tuple:
			return codec.TagTuple, nil
		case *wit.List:
			if _, ok := kind.Type.(wit.U8); ok {
				return codec.TagBlob, nil
			}
			return codec.TagList, nil
		case *wit.Option:
			return Tag(kind.Type)
		case *wit.Enum:
			return codec.TagText, nil
		case wit.Type:
			return Tag(kind)
		}
	}
	return codec.TagReserved, errors.New(errors.PhaseNormalize, errors.KindUnsupported).
		Detail("no canonical wire type for WIT type %T", t).
		Build()
}

// Decode reads the next record as a value of t.
func (s *Schema) Decode(d *codec.Decoder, t wit.Type) (any, error) {
	goType, err := s.GoType(t)
	if err != nil {
		return nil, err
	}
	ptr := reflect.New(goType)
	if err := d.Read(ptr.Interface()); err != nil {
		return nil, err
	}
	if err := validate(t, ptr.Elem(), nil); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

// DecodeAll reads one record per type, in order.
func (s *Schema) DecodeAll(d *codec.Decoder, types []wit.Type) ([]any, error) {
	out := make([]any, 0, len(types))
	for i, t := range types {
		v, err := s.Decode(d, t)
		if err != nil {
			return nil, withPath(err, "result["+strconv.Itoa(i)+"]")
		}
		out = append(out, v)
	}
	return out, nil
}

// Decode uses the default schema.
func Decode(d *codec.Decoder, t wit.Type) (any, error) {
	return defaultSchema.Decode(d, t)
}

// DecodeAll uses the default schema.
func DecodeAll(d *codec.Decoder, types []wit.Type) ([]any, error) {
	return defaultSchema.DecodeAll(d, types)
}

// validate checks constraints the Go type cannot express: enum case names.
func validate(t wit.Type, v reflect.Value, path []string) error {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return nil
	}
	switch kind := td.Kind.(type) {
	case *wit.Enum:
		name := v.String()
		for _, c := range kind.Cases {
			if c.Name == name {
				return nil
			}
		}
		return errors.InvalidData(errors.PhaseDecode, path, "unknown enum case "+strconv.Quote(name))
	case *wit.Record:
		if IsNDArray(kind) {
			return nil
		}
		for i, f := range kind.Fields {
			if err := validate(f.Type, v.Field(i), append(path, f.Name)); err != nil {
				return err
			}
		}
	case *wit.Tuple:
		for i, et := range kind.Types {
			if err := validate(et, v.Field(i), append(path, "["+strconv.Itoa(i)+"]")); err != nil {
				return err
			}
		}
	case *wit.List:
		if v.Kind() != reflect.Slice || v.Type() == bytesType {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := validate(kind.Type, v.Index(i), append(path, "["+strconv.Itoa(i)+"]")); err != nil {
				return err
			}
		}
	case *wit.Option:
		if v.IsNil() {
			return nil
		}
		return validate(kind.Type, v.Elem(), path)
	case wit.Type:
		return validate(kind, v, path)
	}
	return nil
}

// IsNDArray reports whether r is the ndarray record: shape, dtype and data
// fields in that order.
func IsNDArray(r *wit.Record) bool {
	if len(r.Fields) != 3 {
		return false
	}
	return r.Fields[0].Name == "shape" && r.Fields[1].Name == "dtype" && r.Fields[2].Name == "data"
}

// NDArray returns the WIT record describing an ndarray value.
func NDArray() *wit.TypeDef {
	return &wit.TypeDef{
		Kind: &wit.Record{
			Fields: []wit.Field{
				{Name: "shape", Type: &wit.TypeDef{Kind: &wit.List{Type: wit.S64{}}}},
				{Name: "dtype", Type: wit.String{}},
				{Name: "data", Type: &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}},
			},
		},
	}
}

// FieldName converts a kebab-case WIT field name to an exported Go name.
func FieldName(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r == '-' || r == '_' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	if b.Len() == 0 || !isLetter(b.String()[0]) {
		return "X" + b.String()
	}
	return b.String()
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func withPath(err error, elem string) error {
	if e, ok := err.(*errors.Error); ok {
		e.Path = append([]string{elem}, e.Path...)
	}
	return err
}
