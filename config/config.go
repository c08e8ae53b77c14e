// Package config defines the configuration of a voxel extraction run.
package config

import (
	"fmt"
	"image/color"
	"math"

	"github.com/go-viper/mapstructure/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/voxelvis/colormap"
	"go.viam.com/voxelvis/pointcloud"
)

// Defaults applied to fields left unset.
const (
	DefaultFrameID            = "world"
	DefaultHeightOffset       = 5.0
	DefaultHeightScale        = 10.0
	DefaultOccupancyThreshold = 0.5
	DefaultEsdfMaxDistance    = 2.0
)

// SourceTypeSphere is the only source type currently understood.
const SourceTypeSphere = "sphere"

// A Config describes a layer to build and what to extract from it.
type Config struct {
	ConfigFilePath string `json:"-"`

	VoxelSize          float64 `json:"voxel_size"`
	VoxelsPerSide      int     `json:"voxels_per_side"`
	FrameID            string  `json:"frame_id,omitempty"`
	SurfaceDistance    float64 `json:"surface_distance,omitempty"`
	TruncationDistance float64 `json:"truncation_distance,omitempty"`
	EsdfMaxDistance    float64 `json:"esdf_max_distance,omitempty"`
	OccupancyThreshold float64 `json:"occupancy_threshold,omitempty"`

	Marker  MarkerConfig   `json:"marker"`
	Output  OutputConfig   `json:"output"`
	Sources []SourceConfig `json:"sources"`
}

// MarkerConfig controls how occupancy cubes are colored.
type MarkerConfig struct {
	HeightOffset *float64 `json:"height_offset,omitempty"`
	HeightScale  *float64 `json:"height_scale,omitempty"`
	ColorMap     string   `json:"color_map,omitempty"`
}

// OutputConfig controls where and how results are written.
type OutputConfig struct {
	Dir        string `json:"dir,omitempty"`
	PCDFormat  string `json:"pcd_format,omitempty"`
	LAS        bool   `json:"las,omitempty"`
	Histograms bool   `json:"histograms,omitempty"`
}

// AttributeMap is a free form set of source attributes.
type AttributeMap map[string]interface{}

// Has returns whether the key is set.
func (am AttributeMap) Has(key string) bool {
	_, has := am[key]
	return has
}

// A SourceConfig describes something integrated into the layers.
type SourceConfig struct {
	Type       string       `json:"type"`
	Attributes AttributeMap `json:"attributes"`

	ConvertedAttributes interface{} `json:"-"`
}

// SphereConfig is the attribute set of a sphere source.
type SphereConfig struct {
	Center []float64 `json:"center"`
	Radius float64   `json:"radius"`
	Color  string    `json:"color"`
}

// Validate ensures all parts of the config are valid and fills in defaults.
func (c *Config) Validate(path string) error {
	if !(c.VoxelSize > 0) || math.IsInf(c.VoxelSize, 0) {
		return utils.NewConfigValidationFieldRequiredError(path, "voxel_size")
	}
	if c.VoxelsPerSide <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "voxels_per_side")
	}
	if c.FrameID == "" {
		c.FrameID = DefaultFrameID
	}
	if c.SurfaceDistance < 0 {
		return utils.NewConfigValidationError(path, errors.New("surface_distance must not be negative"))
	}
	if c.SurfaceDistance == 0 {
		c.SurfaceDistance = c.VoxelSize
	}
	if c.TruncationDistance < 0 {
		return utils.NewConfigValidationError(path, errors.New("truncation_distance must not be negative"))
	}
	if c.TruncationDistance == 0 {
		c.TruncationDistance = 2 * c.VoxelSize
	}
	if c.EsdfMaxDistance < 0 {
		return utils.NewConfigValidationError(path, errors.New("esdf_max_distance must not be negative"))
	}
	if c.EsdfMaxDistance == 0 {
		c.EsdfMaxDistance = DefaultEsdfMaxDistance
	}
	if c.OccupancyThreshold == 0 {
		c.OccupancyThreshold = DefaultOccupancyThreshold
	}
	if !(c.OccupancyThreshold > 0 && c.OccupancyThreshold < 1) {
		return utils.NewConfigValidationError(path, errors.Errorf("occupancy_threshold must be in (0, 1), got %v", c.OccupancyThreshold))
	}
	if err := c.Marker.Validate(joinPath(path, "marker")); err != nil {
		return err
	}
	if err := c.Output.Validate(joinPath(path, "output")); err != nil {
		return err
	}
	for idx := range c.Sources {
		if err := c.Sources[idx].Validate(joinPath(path, fmt.Sprintf("sources.%d", idx))); err != nil {
			return err
		}
	}
	return nil
}

// Validate ensures the marker settings are usable and fills in defaults.
func (mc *MarkerConfig) Validate(path string) error {
	if mc.HeightOffset == nil {
		offset := DefaultHeightOffset
		mc.HeightOffset = &offset
	}
	if mc.HeightScale == nil {
		scale := DefaultHeightScale
		mc.HeightScale = &scale
	}
	if _, err := colormap.ByName(mc.ColorMap); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// ColorMapOrDefault returns the configured color map.
func (mc MarkerConfig) ColorMapOrDefault() colormap.ColorMap {
	cm, err := colormap.ByName(mc.ColorMap)
	if err != nil {
		return colormap.Rainbow
	}
	return cm
}

// Validate ensures the output settings are usable.
func (oc *OutputConfig) Validate(path string) error {
	if _, err := pointcloud.PCDTypeFromString(oc.PCDFormat); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// PCDType returns the configured PCD data type.
func (oc OutputConfig) PCDType() pointcloud.PCDType {
	typ, err := pointcloud.PCDTypeFromString(oc.PCDFormat)
	if err != nil {
		return pointcloud.PCDAscii
	}
	return typ
}

// Validate ensures the source is well formed and converts its attributes.
func (sc *SourceConfig) Validate(path string) error {
	switch sc.Type {
	case "":
		return utils.NewConfigValidationFieldRequiredError(path, "type")
	case SourceTypeSphere:
		sphere, err := TransformAttributeMap[*SphereConfig](sc.Attributes)
		if err != nil {
			return utils.NewConfigValidationError(path, err)
		}
		if sphere == nil {
			return utils.NewConfigValidationFieldRequiredError(path, "attributes")
		}
		if err := sphere.Validate(joinPath(path, "attributes")); err != nil {
			return err
		}
		sc.ConvertedAttributes = sphere
		return nil
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown source type %q", sc.Type))
	}
}

// Validate ensures the sphere is well formed.
func (sc *SphereConfig) Validate(path string) error {
	if len(sc.Center) != 3 {
		return utils.NewConfigValidationError(path, errors.Errorf("center must have 3 components, got %d", len(sc.Center)))
	}
	if !(sc.Radius > 0) {
		return utils.NewConfigValidationFieldRequiredError(path, "radius")
	}
	if _, err := sc.NRGBA(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// NRGBA parses the sphere's hex color. An empty color is white.
func (sc *SphereConfig) NRGBA() (color.NRGBA, error) {
	if sc.Color == "" {
		return color.NRGBA{255, 255, 255, 255}, nil
	}
	c, err := colorful.Hex(sc.Color)
	if err != nil {
		return color.NRGBA{}, errors.Wrapf(err, "invalid color %q", sc.Color)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{r, g, b, 255}, nil
}

// TransformAttributeMap decodes an attribute map into T using the json tags
// of T. Keys T does not know about are an error.
func TransformAttributeMap[T any](attributes AttributeMap) (T, error) {
	var out T
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:  "json",
		Result:   &out,
		Metadata: &md,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return out, err
	}
	if len(md.Unused) != 0 {
		return out, errors.Errorf("unknown attributes %v", md.Unused)
	}
	return out, nil
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}
