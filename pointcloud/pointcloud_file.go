package pointcloud

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/voxelvis/logging"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
	// PCDCompressed binary format for pcd.
	PCDCompressed PCDType = 2
)

// PCDTypeFromString parses "ascii" or "binary".
func PCDTypeFromString(s string) (PCDType, error) {
	switch strings.ToLower(s) {
	case "", "ascii":
		return PCDAscii, nil
	case "binary":
		return PCDBinary, nil
	default:
		return PCDAscii, errors.Errorf("unsupported pcd data type %q", s)
	}
}

// NewFromFile returns a pointcloud read in from the given file.
func NewFromFile(fn string, logger logging.Logger) (PointCloud, error) {
	switch filepath.Ext(fn) {
	case ".las":
		return NewFromLASFile(fn, logger)
	case ".pcd":
		//nolint:gosec
		f, err := os.Open(fn)
		if err != nil {
			return nil, err
		}
		defer utils.UncheckedErrorFunc(f.Close)
		return ReadPCD(f)
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
}

// pointValueDataTag encodes if the point has value data.
const pointValueDataTag = "vv|pv"

// NewFromLASFile returns a point cloud from reading a LAS file. If any
// lossiness of points could occur from reading it in, it's reported but is not
// an error.
func NewFromLASFile(fn string, logger logging.Logger) (PointCloud, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(lf.Close)

	var hasValue bool
	var valueData []byte
	for _, d := range lf.VlrData {
		if d.Description == pointValueDataTag {
			hasValue = true
			valueData = d.BinaryData
			break
		}
	}
	if hasValue && len(valueData) < lf.Header.NumberPoints*8 {
		return nil, errors.Errorf("value record holds %d bytes, need %d", len(valueData), lf.Header.NumberPoints*8)
	}

	pc := NewWithPrealloc(lf.Header.NumberPoints)
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, err
		}
		data := p.PointData()

		x, y, z := data.X, data.Y, data.Z
		if x < minPreciseFloat64 || x > maxPreciseFloat64 ||
			y < minPreciseFloat64 || y > maxPreciseFloat64 ||
			z < minPreciseFloat64 || z > maxPreciseFloat64 {
			logger.Warnw("potential floating point lossiness for LAS point",
				"point", data, "range", fmt.Sprintf("[%f,%f]", minPreciseFloat64, maxPreciseFloat64))
		}

		v := r3.Vector{X: x, Y: y, Z: z}
		dd := NewBasicData()
		if lf.Header.PointFormatID == 2 && p.RgbData() != nil {
			r := uint8(p.RgbData().Red / 256)
			g := uint8(p.RgbData().Green / 256)
			b := uint8(p.RgbData().Blue / 256)
			dd.SetColor(color.NRGBA{r, g, b, 255})
		}

		if hasValue {
			dd.SetValue(math.Float64frombits(binary.LittleEndian.Uint64(valueData[i*8 : (i*8)+8])))
		}

		if err := pc.Set(v, dd); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

// WriteToLASFile writes the point cloud out to a LAS file. Point values are
// kept in a variable length record since LAS intensities are unsigned integers.
func WriteToLASFile(cloud PointCloud, fn string) (err error) {
	if err := validateCloudPrecision(cloud); err != nil {
		return err
	}
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return
	}
	defer func() {
		cerr := lf.Close()
		err = multierr.Combine(err, cerr)
	}()

	meta := cloud.MetaData()

	pointFormatID := 0
	if meta.HasColor {
		pointFormatID = 2
	}
	if err = lf.AddHeader(lidario.LasHeader{
		PointFormatID: byte(pointFormatID),
	}); err != nil {
		return
	}

	var pVals []float64
	if meta.HasValue {
		pVals = make([]float64, 0, cloud.Size())
	}
	var lastErr error
	cloud.Iterate(0, 0, func(pos r3.Vector, d Data) bool {
		var lp lidario.LasPointer
		pr0 := &lidario.PointRecord0{
			// floating point lossiness validated before the file is created
			X: pos.X,
			Y: pos.Y,
			Z: pos.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3) | (0 << 6) | (0 << 7),
			},
			ClassBitField: lidario.ClassificationBitField{
				Value: 0,
			},
			ScanAngle:     0,
			UserData:      0,
			PointSourceID: 1,
		}
		lp = pr0

		if meta.HasColor {
			red, green, blue := 255, 255, 255
			if d != nil && d.HasColor() {
				r, g, b := d.RGB255()
				red, green, blue = int(r), int(g), int(b)
			}
			lp = &lidario.PointRecord2{
				PointRecord0: pr0,
				RGB: &lidario.RgbData{
					Red:   uint16(red * 256),
					Green: uint16(green * 256),
					Blue:  uint16(blue * 256),
				},
			}
		}
		if meta.HasValue {
			if d != nil && d.HasValue() {
				pVals = append(pVals, d.Value())
			} else {
				pVals = append(pVals, 0)
			}
		}
		if lerr := lf.AddLasPoint(lp); lerr != nil {
			lastErr = lerr
			return false
		}
		return true
	})
	if lastErr != nil {
		err = lastErr
		return
	}
	if meta.HasValue {
		var buf bytes.Buffer
		for _, v := range pVals {
			valBytes := make([]byte, 8)
			binary.LittleEndian.PutUint64(valBytes, math.Float64bits(v))
			buf.Write(valBytes)
		}
		if err = lf.AddVLR(lidario.VLR{
			UserID:                  "",
			Description:             pointValueDataTag,
			BinaryData:              buf.Bytes(),
			RecordLengthAfterHeader: buf.Len(),
		}); err != nil {
			return
		}
	}

	// nolint:nakedret
	return
}

func colorToPCDInt(pt Data) int {
	if pt == nil || !pt.HasColor() {
		return 255 << 16
	}

	r, g, b := pt.RGB255()
	x := 0

	x |= (int(r) << 16)
	x |= (int(g) << 8)
	x |= (int(b) << 0)
	return x
}

func pcdIntToColor(c int) color.NRGBA {
	r := uint8(0xFF & (c >> 16))
	g := uint8(0xFF & (c >> 8))
	b := uint8(0xFF & (c >> 0))
	return color.NRGBA{r, g, b, 255}
}

const (
	pcdFieldRGB       = "rgb"
	pcdFieldIntensity = "intensity"
)

func pcdFields(meta MetaData) []string {
	fields := []string{"x", "y", "z"}
	if meta.HasColor {
		fields = append(fields, pcdFieldRGB)
	}
	if meta.HasValue {
		fields = append(fields, pcdFieldIntensity)
	}
	return fields
}

func pcdFieldType(field string) pcdValType {
	if field == pcdFieldRGB {
		return pcdValInt
	}
	return pcdValFloat
}

func repeatToken(tok string, n int) string {
	toks := make([]string, n)
	for i := range toks {
		toks[i] = tok
	}
	return strings.Join(toks, " ")
}

// ToPCD writes out a point cloud to a PCD file of the given output type. Colored
// clouds get an rgb field and valued clouds an intensity field.
func ToPCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	fields := pcdFields(cloud.MetaData())
	types := make([]string, 0, len(fields))
	for _, f := range fields {
		types = append(types, string(pcdFieldType(f)))
	}

	var dataLine string
	switch outputType {
	case PCDBinary:
		dataLine = "binary"
	case PCDAscii:
		dataLine = "ascii"
	case PCDCompressed:
		return errors.New("compressed PCD not yet implemented")
	default:
		return errors.Errorf("unknown pcd type %d", outputType)
	}
	if err := validateCloudPrecision(cloud); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(out, "VERSION .7\n"+
		"FIELDS %s\n"+
		"SIZE %s\n"+
		"TYPE %s\n"+
		"COUNT %s\n"+
		"WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA %s\n",
		strings.Join(fields, " "),
		repeatToken("4", len(fields)),
		strings.Join(types, " "),
		repeatToken("1", len(fields)),
		cloud.Size(),
		1,
		cloud.Size(),
		dataLine,
	); err != nil {
		return err
	}
	return writePCDData(cloud, out, outputType)
}

func formatPCDFloat(v float64) string {
	return strconv.FormatFloat(float64(float32(v)), 'f', -1, 32)
}

func writePCDData(cloud PointCloud, out io.Writer, pcdtype PCDType) error {
	meta := cloud.MetaData()
	var err error
	cloud.Iterate(0, 0, func(pos r3.Vector, d Data) bool {
		switch pcdtype {
		case PCDBinary:
			buf := make([]byte, 0, 20)
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(pos.X)))
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(pos.Y)))
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(pos.Z)))
			if meta.HasColor {
				buf = binary.LittleEndian.AppendUint32(buf, uint32(colorToPCDInt(d)))
			}
			if meta.HasValue {
				buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(pcdValue(d))))
			}
			_, err = out.Write(buf)
		case PCDAscii:
			toks := []string{formatPCDFloat(pos.X), formatPCDFloat(pos.Y), formatPCDFloat(pos.Z)}
			if meta.HasColor {
				toks = append(toks, strconv.Itoa(colorToPCDInt(d)))
			}
			if meta.HasValue {
				toks = append(toks, formatPCDFloat(pcdValue(d)))
			}
			_, err = fmt.Fprintln(out, strings.Join(toks, " "))
		}
		return err == nil
	})
	return err
}

func pcdValue(d Data) float64 {
	if d == nil || !d.HasValue() {
		return 0
	}
	return d.Value()
}

type pcdValType string

const (
	pcdValFloat pcdValType = "F"
	pcdValInt   pcdValType = "I"
	pcdValUInt  pcdValType = "U"
)

type pcdHeader struct {
	fields    []string
	size      []uint64
	type_     []pcdValType
	count     []uint64
	width     uint64
	height    uint64
	viewpoint [7]float64
	points    uint64
	data      PCDType
}

const pcdCommentChar = "#"

var pcdHeaderFields = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

func parsePCDHeaderLine(line string, index int, pcdHeader *pcdHeader) error {
	var err error
	name := pcdHeaderFields[index]
	field, value, _ := strings.Cut(line, " ")
	tokens := strings.Split(value, " ")
	if field != name {
		return errors.Errorf("line is supposed to start with %s but is %s", name, line)
	}

	switch name {
	case "VERSION":
		if value != ".7" && value != "0.7" {
			return errors.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		switch value {
		case "x y z", "x y z rgb", "x y z intensity", "x y z rgb intensity":
			pcdHeader.fields = tokens
		default:
			return errors.Errorf("unsupported pcd fields %s", value)
		}
	case "SIZE":
		if len(tokens) != len(pcdHeader.fields) {
			return errors.New("unexpected number of fields in SIZE line")
		}
		pcdHeader.size = make([]uint64, len(tokens))
		for i, token := range tokens {
			pcdHeader.size[i], err = strconv.ParseUint(token, 10, 64)
			if err != nil {
				return errors.Errorf("invalid SIZE field %s", token)
			}
			if pcdHeader.size[i] != 4 {
				return errors.Errorf("unsupported SIZE %d, only 4 byte fields are supported", pcdHeader.size[i])
			}
		}
	case "TYPE":
		if len(tokens) != len(pcdHeader.fields) {
			return errors.New("unexpected number of fields in TYPE line")
		}
		pcdHeader.type_ = make([]pcdValType, len(tokens))
		for i, token := range tokens {
			switch pcdValType(token) {
			case pcdValFloat, pcdValInt, pcdValUInt:
				pcdHeader.type_[i] = pcdValType(token)
			default:
				return errors.Errorf("invalid TYPE field %s", token)
			}
		}
	case "COUNT":
		if len(tokens) != len(pcdHeader.fields) {
			return errors.New("unexpected number of fields in COUNT line")
		}
		pcdHeader.count = make([]uint64, len(tokens))
		for i, token := range tokens {
			pcdHeader.count[i], err = strconv.ParseUint(token, 10, 64)
			if err != nil {
				return errors.Errorf("invalid COUNT field %s: %s", token, err)
			}
		}
	case "WIDTH":
		pcdHeader.width, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Errorf("invalid WIDTH field %s: %s", value, err)
		}
	case "HEIGHT":
		pcdHeader.height, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Errorf("invalid HEIGHT field %s: %s", value, err)
		}
	case "VIEWPOINT":
		if len(tokens) != 7 {
			return errors.Errorf("unexpected number of fields in VIEWPOINT line. Expected 7, got %d", len(tokens))
		}
		for i, token := range tokens {
			pcdHeader.viewpoint[i], err = strconv.ParseFloat(token, 64)
			if err != nil {
				return errors.Errorf("invalid VIEWPOINT field %s: %s", token, err)
			}
		}
	case "POINTS":
		var points uint64
		points, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Errorf("invalid POINTS field %s: %s", value, err)
		}
		if points != pcdHeader.width*pcdHeader.height {
			return errors.Errorf("POINTS field %d does not match WIDTH*HEIGHT %d", points, pcdHeader.width*pcdHeader.height)
		}
		pcdHeader.points = points
	case "DATA":
		switch value {
		case "ascii":
			pcdHeader.data = PCDAscii
		case "binary":
			pcdHeader.data = PCDBinary
		case "binary_compressed":
			pcdHeader.data = PCDCompressed
		default:
			return errors.Errorf("unsupported pcd data type %s", value)
		}
	}

	return nil
}

// ReadPCD reads a PCD file into a point cloud.
func ReadPCD(inRaw io.Reader) (PointCloud, error) {
	header := pcdHeader{}
	in := bufio.NewReader(inRaw)
	headerLineCount := 0
	for headerLineCount < len(pcdHeaderFields) {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "error reading header line %d", headerLineCount)
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parsePCDHeaderLine(line, headerLineCount, &header); err != nil {
			return nil, err
		}
		headerLineCount++
	}
	switch header.data {
	case PCDAscii:
		return readPCDAscii(in, header)
	case PCDBinary:
		return readPCDBinary(in, header)
	case PCDCompressed:
		return nil, errors.New("compressed pcd not yet supported")
	default:
		return nil, errors.Errorf("unsupported pcd data type %v", header.data)
	}
}

func readPCDAscii(in *bufio.Reader, header pcdHeader) (PointCloud, error) {
	pc := NewWithPrealloc(int(header.points))
	for i := 0; i < int(header.points); i++ {
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		tokens := strings.Fields(line)
		if len(tokens) != len(header.fields) {
			return nil, errors.Errorf("unexpected number of fields in point %d", i)
		}
		point := make([]float64, len(tokens))
		for j, token := range tokens {
			if header.fields[j] == pcdFieldRGB && header.type_[j] != pcdValFloat {
				c, err := strconv.ParseInt(token, 10, 64)
				if err != nil {
					return nil, errors.Errorf("invalid point %d field %s: %s", i, token, err)
				}
				point[j] = float64(c)
				continue
			}
			point[j], err = strconv.ParseFloat(token, 64)
			if err != nil {
				return nil, errors.Errorf("invalid point %d field %s: %s", i, token, err)
			}
			if header.fields[j] == pcdFieldRGB {
				// packed float rgb as written by PCL
				point[j] = float64(math.Float32bits(float32(point[j])))
			}
		}
		if err := setPCDPoint(pc, point, header); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func readPCDBinary(in *bufio.Reader, header pcdHeader) (PointCloud, error) {
	pc := NewWithPrealloc(int(header.points))
	buf := make([]byte, 4)
	for i := 0; i < int(header.points); i++ {
		point := make([]float64, len(header.fields))
		for j := range header.fields {
			if _, err := io.ReadFull(in, buf); err != nil {
				return nil, errors.Wrapf(err, "reading point %d", i)
			}
			bits := binary.LittleEndian.Uint32(buf)
			switch {
			case header.fields[j] == pcdFieldRGB:
				point[j] = float64(bits)
			case header.type_[j] == pcdValFloat:
				point[j] = float64(math.Float32frombits(bits))
			case header.type_[j] == pcdValInt:
				point[j] = float64(int32(bits))
			default:
				point[j] = float64(bits)
			}
		}
		if err := setPCDPoint(pc, point, header); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func setPCDPoint(pc PointCloud, slice []float64, header pcdHeader) error {
	pos := r3.Vector{X: slice[0], Y: slice[1], Z: slice[2]}
	data := NewBasicData()
	for i := 3; i < len(header.fields); i++ {
		switch header.fields[i] {
		case pcdFieldRGB:
			data.SetColor(pcdIntToColor(int(slice[i])))
		case pcdFieldIntensity:
			data.SetValue(slice[i])
		}
	}
	return pc.Set(pos, data)
}
