package images

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/jpeg"
)

// DensityUnit is unit of JFIF pixel density.
type DensityUnit uint8

const (
	DensityNoUnits DensityUnit = iota
	DensityPerInch
	DensityPerCm
)

var (
	soiMarker  = []byte{0xFF, 0xD8}
	app0Marker = []byte{0xFF, 0xE0}
	jfifHeader = []byte{'J', 'F', 'I', 'F', 0x00, 0x01, 0x02}
)

// SetJFIFDensity inserts JFIF APP0 segment carrying pixel density into JPEG
// stream which has none. Go encoder never writes one. Reports whether data
// was changed.
func SetJFIFDensity(data []byte, unit DensityUnit, x, y uint16) ([]byte, bool, error) {
	if len(data) < 4 {
		return nil, false, errors.New("jpeg too small")
	}
	if !bytes.Equal(data[:2], soiMarker) {
		return nil, false, errors.New("not a jpeg")
	}
	if bytes.Equal(data[2:4], app0Marker) {
		return data, false, nil
	}

	out := bytes.NewBuffer(make([]byte, 0, len(data)+18))
	out.Write(soiMarker)
	out.Write(app0Marker)
	_ = binary.Write(out, binary.BigEndian, uint16(16))
	out.Write(jfifHeader)
	out.WriteByte(byte(unit))
	_ = binary.Write(out, binary.BigEndian, x)
	_ = binary.Write(out, binary.BigEndian, y)
	out.Write([]byte{0, 0}) // no thumbnail
	out.Write(data[2:])
	return out.Bytes(), true, nil
}

// EncodeJPEG encodes image recording dpi in the JFIF header.
func EncodeJPEG(img image.Image, quality, dpi int) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	out, _, err := SetJFIFDensity(buf.Bytes(), DensityPerInch, uint16(dpi), uint16(dpi))
	return out, err
}
