package main

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/callwire/codec"
)

// Local YAML tags for the wire types YAML has no native form for.
const (
	tagTuple   = "!tuple"
	tagNDArray = "!ndarray"
)

// fromYAML converts a YAML node into a value the codec encodes with the
// matching wire type.
func fromYAML(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromYAML(n.Content[0])
	case yaml.AliasNode:
		return fromYAML(n.Alias)
	case yaml.ScalarNode:
		return scalarFromYAML(n)
	case yaml.SequenceNode:
		items := make([]any, len(n.Content))
		for i, c := range n.Content {
			v, err := fromYAML(c)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		if n.Tag == tagTuple {
			return codec.Tuple(items), nil
		}
		return items, nil
	case yaml.MappingNode:
		if n.Tag == tagNDArray {
			return arrayFromYAML(n)
		}
		m := codec.NewMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, err := fromYAML(n.Content[i])
			if err != nil {
				return nil, err
			}
			v, err := fromYAML(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			if err := m.Set(k, v); err != nil {
				return nil, fmt.Errorf("line %d: %w", n.Content[i].Line, err)
			}
		}
		return m, nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

func scalarFromYAML(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		err := n.Decode(&b)
		return b, err
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return i, nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return f, nil
	case "!!binary":
		return decodeBinary(n)
	case "!!str":
		return n.Value, nil
	}
	return nil, fmt.Errorf("line %d: unsupported tag %s", n.Line, n.Tag)
}

func decodeBinary(n *yaml.Node) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			return -1
		}
		return r
	}, n.Value)
	data, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("line %d: binary: %w", n.Line, err)
	}
	return data, nil
}

// arrayFromYAML reads an !ndarray mapping with exactly the keys shape,
// dtype and data.
func arrayFromYAML(n *yaml.Node) (codec.Array, error) {
	var arr codec.Array
	seen := 0
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		switch key {
		case "shape":
			if err := val.Decode(&arr.Shape); err != nil {
				return arr, fmt.Errorf("line %d: ndarray shape: %w", val.Line, err)
			}
		case "dtype":
			arr.Dtype = val.Value
		case "data":
			data, err := decodeBinary(val)
			if err != nil {
				return arr, err
			}
			arr.Data = data
		default:
			return arr, fmt.Errorf("line %d: ndarray has unexpected key %q", n.Content[i].Line, key)
		}
		seen++
	}
	if seen != 3 {
		return arr, fmt.Errorf("line %d: ndarray needs shape, dtype and data", n.Line)
	}
	return arr, nil
}

// toYAML converts a dynamically decoded value into a YAML node.
func toYAML(v any) (*yaml.Node, error) {
	switch v := v.(type) {
	case nil:
		return scalar("!!null", "null"), nil
	case bool:
		return scalar("!!bool", strconv.FormatBool(v)), nil
	case int64:
		return scalar("!!int", strconv.FormatInt(v, 10)), nil
	case float64:
		return scalar("!!float", formatFloat(v)), nil
	case string:
		return scalar("!!str", v), nil
	case []byte:
		return scalar("!!binary", base64.StdEncoding.EncodeToString(v)), nil
	case []any:
		return seqToYAML("", v)
	case codec.Tuple:
		return seqToYAML(tagTuple, v)
	case *codec.Map:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		var err error
		v.Range(func(key, value any) bool {
			var kn, vn *yaml.Node
			if kn, err = toYAML(key); err != nil {
				return false
			}
			if vn, err = toYAML(value); err != nil {
				return false
			}
			n.Content = append(n.Content, kn, vn)
			return true
		})
		return n, err
	case codec.Array:
		shape := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
		for _, d := range v.Shape {
			shape.Content = append(shape.Content, scalar("!!int", strconv.FormatInt(d, 10)))
		}
		return &yaml.Node{
			Kind: yaml.MappingNode,
			Tag:  tagNDArray,
			Content: []*yaml.Node{
				scalar("!!str", "shape"), shape,
				scalar("!!str", "dtype"), scalar("!!str", v.Dtype),
				scalar("!!str", "data"), scalar("!!binary", base64.StdEncoding.EncodeToString(v.Data)),
			},
		}, nil
	}

	// Typed results, such as WIT-described structs, go through the
	// reflection based encoder.
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return n, nil
}

func seqToYAML(tag string, items []any) (*yaml.Node, error) {
	n := &yaml.Node{Kind: yaml.SequenceNode, Tag: tag}
	if tag == "" {
		n.Tag = "!!seq"
	}
	for _, item := range items {
		c, err := toYAML(item)
		if err != nil {
			return nil, err
		}
		n.Content = append(n.Content, c)
	}
	return n, nil
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	case math.IsNaN(f):
		return ".nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}
