package message

// Level is the nesting level of an entity. Entities at a lower level sit
// closer to the top of the message tree.
type Level int

// The nesting levels used by the entity types in this package.
const (
	LevelTop        Level = 0
	LevelAttachment Level = 10
	LevelEmbedded   Level = 20
	LevelSubpart    Level = 30
)

// String returns a name for the level.
func (l Level) String() string {
	switch l {
	case LevelTop:
		return "top"
	case LevelAttachment:
		return "attachment"
	case LevelEmbedded:
		return "embedded"
	case LevelSubpart:
		return "subpart"
	}
	return "custom"
}

// CompositeRange maps a half-open range of levels, (Above, UpTo], to the
// multipart media type used to hold children at those levels.
type CompositeRange struct {
	Above     Level
	UpTo      Level
	MediaType string
}

// DefaultCompositeRanges is the mapping used unless a Config supplies its
// own.
var DefaultCompositeRanges = []CompositeRange{
	{LevelTop, LevelAttachment, "multipart/mixed"},
	{LevelAttachment, LevelEmbedded, "multipart/related"},
	{LevelEmbedded, LevelSubpart, "multipart/alternative"},
}

// compositeMediaType returns the media type for children at the given level
// or "" if no range covers it.
func compositeMediaType(ranges []CompositeRange, l Level) string {
	for _, r := range ranges {
		if l > r.Above && l <= r.UpTo {
			return r.MediaType
		}
	}
	return ""
}
