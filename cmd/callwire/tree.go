package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wippyai/callwire/codec"
	"github.com/wippyai/callwire/errors"
)

// node is one record of an exchange, flattened in depth-first order.
type node struct {
	summary string
	offset  int
	length  int
	depth   int
	tag     codec.Tag
}

func (n node) String() string {
	line := fmt.Sprintf("%8d  %s%-8s len=%d", n.offset, strings.Repeat("  ", n.depth), n.tag, n.length)
	if n.summary != "" {
		line += "  " + n.summary
	}
	return line
}

// walk lists every record in window, descending into containers. base is
// the absolute offset of window in the exchange.
func walk(window []byte, base, depth int, out []node) ([]node, error) {
	if depth > codec.DefaultMaxDepth {
		return out, errors.InvalidData(errors.PhaseDecode, nil,
			fmt.Sprintf("nesting exceeds maximum depth %d at offset %d", codec.DefaultMaxDepth, base))
	}
	d := codec.NewDecoder(window)
	for !d.Exhausted() {
		rec, err := d.Next()
		if err != nil {
			return out, err
		}
		n := node{
			offset: base + rec.Offset,
			length: len(rec.Payload),
			depth:  depth,
			tag:    rec.Tag,
		}
		if rec.Tag.IsContainer() {
			n.summary = containerSummary(rec)
			out = append(out, n)
			out, err = walk(rec.Payload, n.offset+codec.HeaderSize, depth+1, out)
			if err != nil {
				return out, err
			}
			continue
		}
		n.summary = leafSummary(window[rec.Offset : rec.Offset+rec.Size()])
		out = append(out, n)
	}
	return out, nil
}

func containerSummary(rec codec.Record) string {
	d := codec.NewDecoder(rec.Payload)
	count := 0
	for !d.Exhausted() {
		if _, err := d.Skip(); err != nil {
			return "malformed"
		}
		count++
	}
	switch rec.Tag {
	case codec.TagMap:
		return strconv.Itoa(count/2) + " entries"
	case codec.TagArray:
		return ""
	default:
		return strconv.Itoa(count) + " items"
	}
}

const previewLen = 40

func leafSummary(record []byte) string {
	v, err := codec.Read[any](codec.NewDecoder(record))
	if err != nil {
		return "error: " + err.Error()
	}
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		if len(v) > previewLen {
			v = v[:previewLen] + "..."
		}
		return strconv.Quote(v)
	case []byte:
		return strconv.Itoa(len(v)) + " bytes"
	default:
		return fmt.Sprint(v)
	}
}

// readTree lists the records of an exchange. A malformed tail is reported
// after the records that precede it.
func readTree(data []byte) ([]node, error) {
	return walk(data, 0, 0, nil)
}

func printTree(w io.Writer, nodes []node) error {
	for _, n := range nodes {
		if _, err := fmt.Fprintln(w, n); err != nil {
			return err
		}
	}
	return nil
}
