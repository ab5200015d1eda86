package core

import (
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// TextVertex matches the text shader input: clip-space position, atlas UV, color.
type TextVertex struct {
	Pos   [2]float32
	UV    [2]float32
	Color [4]float32
}

// TextItem is one line of HUD text placed in pixels from the top-left corner.
type TextItem struct {
	Text     string
	Position [2]float32
	Scale    float32
	Color    [4]float32
}

// Glyph is where a rune sits in the atlas and how it is placed on the baseline.
type Glyph struct {
	Rect    image.Rectangle // atlas pixels
	Bearing image.Point     // top-left offset from the pen position
	Advance float32
}

// TextRenderer owns a single-channel glyph atlas for printable ASCII.
type TextRenderer struct {
	AtlasImage *image.Alpha
	Glyphs     map[rune]Glyph
	ascent     float32
	lineHeight float32
}

const (
	atlasSize   = 512
	atlasGutter = 2
)

// NewDefaultTextRenderer builds the atlas from the Go Regular font, so the HUD needs no
// font file on disk.
func NewDefaultTextRenderer(fontSize float64) (*TextRenderer, error) {
	return NewTextRenderer(goregular.TTF, fontSize)
}

func NewTextRenderer(fontBytes []byte, fontSize float64) (*TextRenderer, error) {
	f, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: fontSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("creating face: %w", err)
	}
	defer face.Close()

	m := face.Metrics()
	tr := &TextRenderer{
		AtlasImage: image.NewAlpha(image.Rect(0, 0, atlasSize, atlasSize)),
		Glyphs:     make(map[rune]Glyph),
		ascent:     float32(m.Ascent.Ceil()),
		lineHeight: float32(m.Height.Ceil()),
	}
	tr.pack(face)
	return tr, nil
}

// pack rasterizes runes 32..126 into shelves. Runes that no longer fit are skipped.
func (tr *TextRenderer) pack(face font.Face) {
	pen := image.Pt(atlasGutter, atlasGutter)
	shelf := 0
	for r := rune(32); r < 127; r++ {
		bounds, mask, maskPt, adv, ok := face.Glyph(fixed.Point26_6{}, r)
		if !ok {
			continue
		}
		size := bounds.Size()
		if pen.X+size.X > atlasSize-atlasGutter {
			pen = image.Pt(atlasGutter, pen.Y+shelf+2*atlasGutter)
			shelf = 0
		}
		if pen.Y+size.Y > atlasSize-atlasGutter {
			return
		}
		dst := image.Rectangle{Min: pen, Max: pen.Add(size)}
		draw.Draw(tr.AtlasImage, dst, mask, maskPt, draw.Src)

		tr.Glyphs[r] = Glyph{Rect: dst, Bearing: bounds.Min, Advance: float32(adv) / 64}
		pen.X += size.X + 2*atlasGutter
		shelf = max(shelf, size.Y)
	}
}

func (tr *TextRenderer) GetLineHeight(scale float32) float32 {
	if tr == nil {
		return 0
	}
	return tr.lineHeight * scale
}

// StackLines places one item per line, top-left aligned with a margin.
func (tr *TextRenderer) StackLines(lines []string, margin, scale float32, color [4]float32) []TextItem {
	items := make([]TextItem, 0, len(lines))
	step := tr.GetLineHeight(scale)
	for i, line := range lines {
		items = append(items, TextItem{
			Text:     line,
			Position: [2]float32{margin, margin + float32(i)*step},
			Scale:    scale,
			Color:    color,
		})
	}
	return items
}

// BuildVertices emits two triangles per glyph in clip space for a screenW x screenH target.
func (tr *TextRenderer) BuildVertices(items []TextItem, screenW, screenH int) []TextVertex {
	if tr == nil || screenW <= 0 || screenH <= 0 {
		return nil
	}
	toClip := func(x, y float32) [2]float32 {
		return [2]float32{x/float32(screenW)*2 - 1, 1 - y/float32(screenH)*2}
	}

	var out []TextVertex
	for _, item := range items {
		penX := item.Position[0]
		baseline := item.Position[1] + tr.ascent*item.Scale
		for _, r := range item.Text {
			g, ok := tr.Glyphs[r]
			if !ok {
				continue
			}
			x0 := penX + float32(g.Bearing.X)*item.Scale
			y0 := baseline + float32(g.Bearing.Y)*item.Scale
			x1 := x0 + float32(g.Rect.Dx())*item.Scale
			y1 := y0 + float32(g.Rect.Dy())*item.Scale
			out = appendQuad(out, toClip(x0, y0), toClip(x1, y1), tr.uv(g), item.Color)
			penX += g.Advance * item.Scale
		}
	}
	return out
}

// uv returns the glyph's atlas rectangle as (u0, v0, u1, v1).
func (tr *TextRenderer) uv(g Glyph) [4]float32 {
	const s = float32(atlasSize)
	return [4]float32{
		float32(g.Rect.Min.X) / s, float32(g.Rect.Min.Y) / s,
		float32(g.Rect.Max.X) / s, float32(g.Rect.Max.Y) / s,
	}
}

// appendQuad adds the rectangle from top-left tl to bottom-right br.
func appendQuad(out []TextVertex, tl, br [2]float32, uv [4]float32, color [4]float32) []TextVertex {
	tlV := TextVertex{Pos: tl, UV: [2]float32{uv[0], uv[1]}, Color: color}
	trV := TextVertex{Pos: [2]float32{br[0], tl[1]}, UV: [2]float32{uv[2], uv[1]}, Color: color}
	blV := TextVertex{Pos: [2]float32{tl[0], br[1]}, UV: [2]float32{uv[0], uv[3]}, Color: color}
	brV := TextVertex{Pos: br, UV: [2]float32{uv[2], uv[3]}, Color: color}
	return append(out, tlV, trV, blV, trV, brV, blV)
}
