package danmaku

import (
	"fmt"
	"strings"
)

// RenderASS lays comments out onto canvas and emits a complete Advanced
// SubStation Alpha document, the subtitle format Kodi and Jellyfin both
// render as a comment overlay track alongside the regular video stream.
func RenderASS(comments []Comment, canvas Canvas) string {
	placements := layout(comments, canvas)

	var b strings.Builder
	writeHeader(&b, canvas)
	writeStyles(&b, canvas)
	writeEvents(&b, placements, canvas)
	return b.String()
}

func writeHeader(b *strings.Builder, canvas Canvas) {
	fmt.Fprintf(b, "[Script Info]\n")
	fmt.Fprintf(b, "Title: danmaku\n")
	fmt.Fprintf(b, "ScriptType: v4.00+\n")
	fmt.Fprintf(b, "WrapStyle: 2\n")
	fmt.Fprintf(b, "ScaledBorderAndShadow: yes\n")
	fmt.Fprintf(b, "PlayResX: %d\n", canvas.Width)
	fmt.Fprintf(b, "PlayResY: %d\n\n", canvas.Height)
}

func writeStyles(b *strings.Builder, canvas Canvas) {
	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(b, "Style: Danmaku,sans-serif,%d,&H00FFFFFF,&H00FFFFFF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,1,0,7,0,0,0,1\n\n", canvas.FontSize)
}

func writeEvents(b *strings.Builder, placements []placement, canvas Canvas) {
	b.WriteString("[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, p := range placements {
		start := assTimestamp(p.StartMs)
		end := assTimestamp(p.EndMs)
		y := p.Lane * canvas.LaneHeight
		text := assEscape(p.Content)
		colorTag := assColorTag(p.Color)

		var effect, override string
		switch p.Mode {
		case ModeTop:
			effect = ""
			override = fmt.Sprintf(`{\an8\pos(%d,%d)%s}`, canvas.Width/2, y, colorTag)
		case ModeBottom:
			effect = ""
			override = fmt.Sprintf(`{\an2\pos(%d,%d)%s}`, canvas.Width/2, canvas.Height-y, colorTag)
		default:
			effect = fmt.Sprintf("Banner;%d;0;0;0", int(canvas.ScrollSeconds*1000))
			override = fmt.Sprintf(`{\an7\pos(%d,%d)%s}`, canvas.Width, y, colorTag)
		}

		fmt.Fprintf(b, "Dialogue: 0,%s,%s,Danmaku,,0,0,0,%s,%s%s\n", start, end, effect, override, text)
	}
}

// assTimestamp formats milliseconds as ASS's H:MM:SS.cc (centisecond)
// timestamp.
func assTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	cs := (ms / 10) % 100
	total := ms / 1000
	s := total % 60
	total /= 60
	m := total % 60
	total /= 60
	h := total
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

// assColorTag converts a packed 0xRRGGBB color into ASS's \c override,
// which expects BGR byte order.
func assColorTag(rgb uint32) string {
	r := (rgb >> 16) & 0xFF
	g := (rgb >> 8) & 0xFF
	bl := rgb & 0xFF
	if r == 0xFF && g == 0xFF && bl == 0xFF {
		return ""
	}
	return fmt.Sprintf(`\c&H%02X%02X%02X&`, bl, g, r)
}

func assEscape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\n", "\\N")
	s = strings.ReplaceAll(s, "{", "\\{")
	s = strings.ReplaceAll(s, "}", "\\}")
	return s
}
