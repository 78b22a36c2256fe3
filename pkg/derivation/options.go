package derivation

import "github.com/matzehuels/sqltree/pkg/cache"

// Default layout parameters, in pixels.
const (
	DefaultHGap       = 80
	DefaultVGap       = 120
	DefaultCharWidth  = 7
	DefaultPadX       = 40
	DefaultPadY       = 80
	DefaultLineHeight = 20
	DefaultMinWidth   = 260
	DefaultMaxWidth   = 900
	DefaultMinHeight  = 140
)

// Options controls spacing and size estimation. Zero fields take the
// defaults; CenterX is used as given.
type Options struct {
	HGap    float64 `json:"hGap,omitempty" toml:"hgap"`
	VGap    float64 `json:"vGap,omitempty" toml:"vgap"`
	CenterX float64 `json:"centerX,omitempty" toml:"center_x"`

	CharWidth  float64 `json:"charWidth,omitempty" toml:"char_width"`
	PadX       float64 `json:"padX,omitempty" toml:"pad_x"`
	PadY       float64 `json:"padY,omitempty" toml:"pad_y"`
	LineHeight float64 `json:"lineHeight,omitempty" toml:"line_height"`
	MinWidth   float64 `json:"minWidth,omitempty" toml:"min_width"`
	MaxWidth   float64 `json:"maxWidth,omitempty" toml:"max_width"`
	MinHeight  float64 `json:"minHeight,omitempty" toml:"min_height"`
}

// WithDefaults returns o with every unset field filled in.
func (o Options) WithDefaults() Options {
	setDefault(&o.HGap, DefaultHGap)
	setDefault(&o.VGap, DefaultVGap)
	setDefault(&o.CharWidth, DefaultCharWidth)
	setDefault(&o.PadX, DefaultPadX)
	setDefault(&o.PadY, DefaultPadY)
	setDefault(&o.LineHeight, DefaultLineHeight)
	setDefault(&o.MinWidth, DefaultMinWidth)
	setDefault(&o.MaxWidth, DefaultMaxWidth)
	setDefault(&o.MinHeight, DefaultMinHeight)
	if o.MaxWidth < o.MinWidth {
		o.MaxWidth = o.MinWidth
	}
	return o
}

// KeyOpts returns the cache key options for a layout computed with o.
func (o Options) KeyOpts() cache.LayoutKeyOpts {
	o = o.WithDefaults()
	return cache.LayoutKeyOpts{
		HGap:    o.HGap,
		VGap:    o.VGap,
		CenterX: o.CenterX,
		Sizing:  []float64{o.CharWidth, o.PadX, o.PadY, o.LineHeight, o.MinWidth, o.MaxWidth, o.MinHeight},
	}
}

func setDefault(v *float64, def float64) {
	if *v <= 0 {
		*v = def
	}
}
