// Package danmaku decodes the remote platform's packed-protobuf danmaku
// segment format into timed comment overlays and lays them out onto an ASS
// subtitle canvas, grounded on the teacher's pkg/diskslice spill-to-disk
// buffer (for the rare video with tens of thousands of comments) and its
// general preference for small pure functions over stateful stage objects.
package danmaku

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/vidsyncd/vidsyncd/internal/models"
)

// Comment is one decoded danmaku entry. Mode distinguishes scrolling
// (right-to-left) from top-pinned and bottom-pinned comments; the wire
// format's own mode codes are normalized into this smaller set at decode
// time since every other mode (reverse-scroll, special/advanced) is folded
// into Scrolling for layout purposes.
type Comment struct {
	TimeMs  int64
	Mode    Mode
	Color   uint32
	Content string
}

// Mode is the three-lane placement a comment requests.
type Mode int

const (
	ModeScrolling Mode = iota
	ModeTop
	ModeBottom
)

// danmaku wire field numbers, per the segment protobuf's DanmakuElem
// message: 2=progress, 3=mode, 4=font size (unused here), 5=color,
// 7=content, itself nested inside a repeated field 1 (DmSegMobileReply.elems).
const (
	fieldElems     = 1
	fieldElemProgress = 2 // ms into the video
	fieldElemMode     = 3
	fieldElemColor    = 5
	fieldElemContent  = 7
)

// Decode parses one DmSegMobileReply protobuf message into its comment
// list, skipping any entry it cannot parse rather than aborting the whole
// segment — a single malformed comment must not lose the rest.
func Decode(data []byte) ([]Comment, error) {
	var comments []Comment
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, models.NewClassifiedError(models.KindMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		if num != fieldElems || typ != protowire.BytesType {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, models.NewClassifiedError(models.KindMalformed, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		elem, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, models.NewClassifiedError(models.KindMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		if c, ok := decodeElem(elem); ok {
			comments = append(comments, c)
		}
	}
	return comments, nil
}

func decodeElem(data []byte) (Comment, bool) {
	var c Comment
	rawMode := int64(1)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return c, false
		}
		data = data[n:]

		switch {
		case num == fieldElemProgress && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return c, false
			}
			c.TimeMs = int64(v)
			data = data[n:]
		case num == fieldElemMode && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return c, false
			}
			rawMode = int64(v)
			data = data[n:]
		case num == fieldElemColor && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return c, false
			}
			c.Color = uint32(v)
			data = data[n:]
		case num == fieldElemContent && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return c, false
			}
			c.Content = string(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return c, false
			}
			data = data[n:]
		}
	}
	c.Mode = normalizeMode(rawMode)
	return c, c.Content != ""
}

// normalizeMode maps the wire format's mode codes (1-3 scroll variants, 4
// bottom, 5 top, 6 reverse-scroll, 7/8 special/code) onto the three lanes
// the layout engine lays comments into.
func normalizeMode(raw int64) Mode {
	switch raw {
	case 4:
		return ModeBottom
	case 5:
		return ModeTop
	default:
		return ModeScrolling
	}
}
