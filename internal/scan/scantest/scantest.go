// Package scantest builds small synthetic studies for tests.
package scantest

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
)

const explicitVRLittleEndian = "1.2.840.10008.1.2.1"

// DICOM returns a Part 10 file with an 8-bit MONOCHROME2 image of
// rows x cols taken from pixels.
func DICOM(rows, cols uint16, pixels []byte, modality string) []byte {
	var meta bytes.Buffer
	writeShort(&meta, 0x0002, 0x0010, "UI", padded(explicitVRLittleEndian, 0))

	var buf bytes.Buffer
	buf.Write(make([]byte, 128))
	buf.WriteString("DICM")
	groupLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(groupLen, uint32(meta.Len()))
	writeShort(&buf, 0x0002, 0x0000, "UL", groupLen)
	buf.Write(meta.Bytes())

	writeShort(&buf, 0x0008, 0x0060, "CS", padded(modality, ' '))
	writeShort(&buf, 0x0028, 0x0002, "US", u16(1))
	writeShort(&buf, 0x0028, 0x0004, "CS", padded("MONOCHROME2", ' '))
	writeShort(&buf, 0x0028, 0x0010, "US", u16(rows))
	writeShort(&buf, 0x0028, 0x0011, "US", u16(cols))
	writeShort(&buf, 0x0028, 0x0100, "US", u16(8))
	writeShort(&buf, 0x0028, 0x0101, "US", u16(8))
	writeShort(&buf, 0x0028, 0x0102, "US", u16(7))
	writeShort(&buf, 0x0028, 0x0103, "US", u16(0))
	writeLong(&buf, 0x7fe0, 0x0010, "OW", padded(string(pixels), 0))
	return buf.Bytes()
}

// PNG returns a w x h gradient image.
func PNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / max(1, w-1)), G: uint8(y * 255 / max(1, h-1)), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// PNGHeader returns a PNG that declares a w x h 8-bit grayscale image but
// carries no pixel data.
func PNGHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth; color type 0, compression, filter, interlace stay 0
	writeChunk(&buf, "IHDR", ihdr)
	writeChunk(&buf, "IEND", nil)
	return buf.Bytes()
}

func writeChunk(buf *bytes.Buffer, typ string, data []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(data)))
	buf.Write(n[:])
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	buf.WriteString(typ)
	buf.Write(data)
	binary.BigEndian.PutUint32(n[:], crc.Sum32())
	buf.Write(n[:])
}

func padded(s string, pad byte) []byte {
	b := []byte(s)
	if len(b)%2 == 1 {
		b = append(b, pad)
	}
	return b
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func writeTag(buf *bytes.Buffer, group, element uint16, vr string) {
	_ = binary.Write(buf, binary.LittleEndian, group)
	_ = binary.Write(buf, binary.LittleEndian, element)
	buf.WriteString(vr)
}

func writeShort(buf *bytes.Buffer, group, element uint16, vr string, value []byte) {
	writeTag(buf, group, element, vr)
	_ = binary.Write(buf, binary.LittleEndian, uint16(len(value)))
	buf.Write(value)
}

func writeLong(buf *bytes.Buffer, group, element uint16, vr string, value []byte) {
	writeTag(buf, group, element, vr)
	buf.Write([]byte{0, 0})
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(value)))
	buf.Write(value)
}
