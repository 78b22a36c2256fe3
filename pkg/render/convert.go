package render

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
)

// rsvgBinary is the converter used for PDF and PNG output.
const rsvgBinary = "rsvg-convert"

// ToPDF converts SVG to PDF.
func ToPDF(svg []byte) ([]byte, error) {
	return convertSVG(svg, FormatPDF)
}

// ToPNG converts SVG to PNG, scaled by scale.
func ToPNG(svg []byte, scale float64) ([]byte, error) {
	return convertSVG(svg, FormatPNG, "-z", strconv.FormatFloat(scale, 'f', 2, 64))
}

func convertSVG(svg []byte, f Format, extra ...string) ([]byte, error) {
	if _, err := exec.LookPath(rsvgBinary); err != nil {
		return nil, fmt.Errorf("%s output requires librsvg (brew install librsvg, apt install librsvg2-bin)", f)
	}

	cmd := exec.Command(rsvgBinary, append([]string{"-f", string(f)}, extra...)...)
	cmd.Stdin = bytes.NewReader(svg)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %v: %s", rsvgBinary, err, stderr.String())
	}
	return out.Bytes(), nil
}
