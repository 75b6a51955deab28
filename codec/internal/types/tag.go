package types //nolint:revive // package name is used by internal consumers

// Tag identifies a canonical wire type within a record header.
type Tag uint32

const (
	// TagReserved is never written. Tag 0 marks "no tag" inside the codec.
	TagReserved Tag = iota
	TagNone
	TagBool
	TagInt
	TagDouble
	TagText
	TagBlob
	TagList
	TagTuple
	TagMap
	TagArray
)

// MaxTag is the largest assigned tag.
const MaxTag = TagArray

var tagNames = [...]string{
	TagReserved: "reserved",
	TagNone:     "none",
	TagBool:     "boolean",
	TagInt:      "signed64",
	TagDouble:   "double",
	TagText:     "text",
	TagBlob:     "blob",
	TagList:     "list",
	TagTuple:    "tuple",
	TagMap:      "map",
	TagArray:    "ndarray",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return "unknown"
}

// Valid reports whether t is an assigned tag.
func (t Tag) Valid() bool {
	return t > TagReserved && t <= MaxTag
}

// IsContainer reports whether the payload of t is a sequence of records.
func (t Tag) IsContainer() bool {
	switch t {
	case TagList, TagTuple, TagMap, TagArray:
		return true
	default:
		return false
	}
}

// FixedSize returns the payload width of scalar tags with a fixed layout.
func (t Tag) FixedSize() (uint64, bool) {
	switch t {
	case TagNone:
		return 0, true
	case TagBool:
		return 1, true
	case TagInt, TagDouble:
		return 8, true
	default:
		return 0, false
	}
}
