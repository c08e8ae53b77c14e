// Package ros holds the ROS visualization messages produced by voxel extraction.
// Field names follow the ROS message definitions so that the JSON encoding
// can be fed to ROS tooling as is.
package ros

import (
	"encoding/json"
	"image/color"
	"io"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Marker types from visualization_msgs/Marker.
const (
	Arrow          = 0
	Cube           = 1
	Sphere         = 2
	Cylinder       = 3
	LineStrip      = 4
	LineList       = 5
	CubeList       = 6
	SphereList     = 7
	Points         = 8
	TextViewFacing = 9
)

// Marker actions.
const (
	Add       = 0
	Delete    = 2
	DeleteAll = 3
)

// Time is a ROS timestamp.
type Time struct {
	Secs  int `json:"secs"`
	Nsecs int `json:"nsecs"`
}

// Header is std_msgs/Header.
type Header struct {
	Seq     int    `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Point is geometry_msgs/Point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vector3 is geometry_msgs/Vector3.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is geometry_msgs/Quaternion.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Pose is geometry_msgs/Pose.
type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// IdentityPose has no translation and no rotation.
var IdentityPose = Pose{Orientation: Quaternion{W: 1}}

// ColorRGBA is std_msgs/ColorRGBA with components in [0, 1].
type ColorRGBA struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

// Marker is visualization_msgs/Marker. For list types Points and Colors are
// parallel arrays.
type Marker struct {
	Header    Header      `json:"header"`
	Namespace string      `json:"ns"`
	ID        int         `json:"id"`
	Type      int         `json:"type"`
	Action    int         `json:"action"`
	Pose      Pose        `json:"pose"`
	Scale     Vector3     `json:"scale"`
	Color     ColorRGBA   `json:"color"`
	Points    []Point     `json:"points"`
	Colors    []ColorRGBA `json:"colors"`
}

// MarkerArray is visualization_msgs/MarkerArray.
type MarkerArray struct {
	Markers []Marker `json:"markers"`
}

// Reset drops every marker while keeping the backing storage.
func (ma *MarkerArray) Reset() {
	ma.Markers = ma.Markers[:0]
}

// NumPoints is the total number of points over all markers.
func (ma *MarkerArray) NumPoints() int {
	return lo.SumBy(ma.Markers, func(m Marker) int { return len(m.Points) })
}

// NewPoint converts a vector into a Point.
func NewPoint(v r3.Vector) Point {
	return Point{X: v.X, Y: v.Y, Z: v.Z}
}

// Vector converts the point back into a vector.
func (p Point) Vector() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// NewColorRGBA converts an 8 bit color into unit components.
func NewColorRGBA(c color.NRGBA) ColorRGBA {
	return ColorRGBA{
		R: float32(c.R) / 255,
		G: float32(c.G) / 255,
		B: float32(c.B) / 255,
		A: float32(c.A) / 255,
	}
}

// NRGBA converts the color back to 8 bit components, rounding to nearest.
func (c ColorRGBA) NRGBA() color.NRGBA {
	to8 := func(f float32) uint8 {
		return uint8(lo.Clamp(f, 0, 1)*255 + 0.5)
	}
	return color.NRGBA{to8(c.R), to8(c.G), to8(c.B), to8(c.A)}
}

// WriteMarkerArrayJSON writes the marker array as indented JSON.
func WriteMarkerArrayJSON(ma *MarkerArray, out io.Writer) error {
	if ma == nil {
		return errors.New("marker array is nil")
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ma); err != nil {
		return errors.Wrap(err, "error encoding marker array")
	}
	return nil
}

// ReadMarkerArrayJSON reads a marker array written by WriteMarkerArrayJSON.
func ReadMarkerArrayJSON(in io.Reader) (*MarkerArray, error) {
	var ma MarkerArray
	if err := json.NewDecoder(in).Decode(&ma); err != nil {
		return nil, errors.Wrap(err, "error decoding marker array")
	}
	return &ma, nil
}
