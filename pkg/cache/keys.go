package cache

import "fmt"

// Keyer builds cache keys. Implementations must be deterministic: equal
// inputs always give equal keys.
type Keyer interface {
	// HTTPKey keys a raw HTTP response body.
	HTTPKey(namespace, key string) string
	// TransformKey keys the conversion-service result for a schema.
	TransformKey(schemaID string) string
	// LayoutKey keys a computed derivation layout.
	LayoutKey(payloadHash string, opts LayoutKeyOpts) string
	// ArtifactKey keys a rendered artifact of a layout.
	ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string
	// HistoryKey keys a stored history document.
	HistoryKey(name string) string
}

// LayoutKeyOpts are the layout options that change the computed layout.
type LayoutKeyOpts struct {
	HGap    float64 `json:"hgap"`
	VGap    float64 `json:"vgap"`
	CenterX float64 `json:"center_x"`
	// Sizing holds the size-estimation parameters in a fixed order.
	Sizing []float64 `json:"sizing,omitempty"`
}

// ArtifactKeyOpts are the render options that change an artifact.
type ArtifactKeyOpts struct {
	Format string `json:"format"`
}

// DefaultKeyer is the standard Keyer.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard Keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// HTTPKey implements Keyer.
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return fmt.Sprintf("http:%s:%s", namespace, key)
}

// TransformKey implements Keyer.
func (DefaultKeyer) TransformKey(schemaID string) string {
	return "transform:" + schemaID
}

// LayoutKey implements Keyer.
func (DefaultKeyer) LayoutKey(payloadHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", payloadHash, opts)
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", layoutHash, opts)
}

// HistoryKey implements Keyer.
func (DefaultKeyer) HistoryKey(name string) string {
	return "history:" + name
}
