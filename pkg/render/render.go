package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/matzehuels/sqltree/pkg/derivation"
	"github.com/matzehuels/sqltree/pkg/errors"
)

// Format is an output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatDOT  Format = "dot"
	FormatSVG  Format = "svg"
	FormatPDF  Format = "pdf"
	FormatPNG  Format = "png"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatDOT, FormatSVG, FormatPDF, FormatPNG}

// ParseFormat accepts a format name in any case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "unknown format %q (want json, dot, svg, pdf or png)", s)
}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string { return string(f) }

// Binary reports whether f is not text.
func (f Format) Binary() bool { return f == FormatPDF || f == FormatPNG }

// PNGScale is the scale factor used for PNG output.
const PNGScale = 2.0

// Render produces l in format f.
func Render(ctx context.Context, l derivation.Layout, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return RenderJSON(l)
	case FormatDOT:
		return []byte(ToDOT(l)), nil
	case FormatSVG:
		return RenderSVG(ctx, ToDOT(l))
	case FormatPDF, FormatPNG:
		svg, err := RenderSVG(ctx, ToDOT(l))
		if err != nil {
			return nil, err
		}
		if f == FormatPDF {
			return ToPDF(svg)
		}
		return ToPNG(svg, PNGScale)
	default:
		return nil, fmt.Errorf("unsupported format: %s", f)
	}
}

// RenderJSON returns the layout as indented JSON.
func RenderJSON(l derivation.Layout) ([]byte, error) {
	var buf bytes.Buffer
	if err := l.WriteJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
