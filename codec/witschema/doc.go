// Package witschema describes call results with WIT types.
//
// A result list such as "s64, list<string>, option<ndarray>" names the Go
// type each returned record decodes into:
//
//	WIT type          Go type          Wire type
//	─────────────────────────────────────────────
//	bool              bool             boolean
//	s8..s64, u8..u64  int8..uint64     signed64
//	f32, f64          float32/float64  double
//	char              codec.Char       text
//	string            string           text
//	enum              string           text
//	list<u8>          []byte           blob
//	list<T>           []T              list
//	tuple<...>        struct F0..Fn    tuple
//	record            struct           tuple
//	option<T>         *T               T or none
//	ndarray           codec.Array      ndarray
//
// The ndarray type is the record {shape: list<s64>, dtype: string,
// data: list<u8>}. Maps have no WIT form.
package witschema
