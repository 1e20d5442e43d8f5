package mux

import (
	"bytes"
	"fmt"
)

var (
	startCode3 = []byte{0x00, 0x00, 0x01}
	startCode4 = []byte{0x00, 0x00, 0x00, 0x01}
)

// NALUnitType represents H.264 NAL unit types.
type NALUnitType uint8

const (
	NALUnitTypeSlice NALUnitType = 1
	NALUnitTypeIDR   NALUnitType = 5
	NALUnitTypeSEI   NALUnitType = 6
	NALUnitTypeSPS   NALUnitType = 7
	NALUnitTypePPS   NALUnitType = 8
	NALUnitTypeAUD   NALUnitType = 9
)

// NALType returns the type of a NAL unit payload (no start code).
func NALType(nal []byte) (NALUnitType, bool) {
	if len(nal) == 0 {
		return 0, false
	}
	return NALUnitType(nal[0] & 0x1F), true
}

// HasStartCode checks if data begins with an Annex-B start code.
func HasStartCode(data []byte) bool {
	return bytes.HasPrefix(data, startCode4) || bytes.HasPrefix(data, startCode3)
}

// SplitNALUnits splits Annex-B data into NAL unit payloads, start codes
// stripped. Data before the first start code is dropped.
func SplitNALUnits(data []byte) [][]byte {
	var nals [][]byte
	start := -1

	i := 0
	for i < len(data)-2 {
		if i < len(data)-3 && bytes.Equal(data[i:i+4], startCode4) {
			if start != -1 && i > start {
				nals = append(nals, data[start:i])
			}
			start = i + 4
			i += 4
		} else if bytes.Equal(data[i:i+3], startCode3) {
			if start != -1 && i > start {
				nals = append(nals, data[start:i])
			}
			start = i + 3
			i += 3
		} else {
			i++
		}
	}
	if start != -1 && start < len(data) {
		nals = append(nals, data[start:])
	}
	return nals
}

// IsKeyframeAnnexB checks if Annex-B data contains an IDR NAL unit.
func IsKeyframeAnnexB(data []byte) bool {
	for _, nal := range SplitNALUnits(data) {
		if t, ok := NALType(nal); ok && t == NALUnitTypeIDR {
			return true
		}
	}
	return false
}

// ExtractParameterSets pulls the SPS and PPS payloads out of Annex-B data.
// Either result may be nil when the corresponding NAL unit is absent.
func ExtractParameterSets(data []byte) (sps, pps []byte) {
	for _, nal := range SplitNALUnits(data) {
		t, ok := NALType(nal)
		if !ok {
			continue
		}
		switch t {
		case NALUnitTypeSPS:
			if sps == nil {
				sps = nal
			}
		case NALUnitTypePPS:
			if pps == nil {
				pps = nal
			}
		}
	}
	return sps, pps
}

// AnnexBConverter converts H.264 Annex-B data to AVCC format.
// Annex-B uses 0x00000001 or 0x000001 start codes; AVCC uses 4-byte
// big-endian length prefixes. The internal buffer is reused between
// calls, so the returned slice is only valid until the next Convert.
type AnnexBConverter struct {
	buffer []byte
}

// NewAnnexBConverter creates a new converter.
func NewAnnexBConverter() *AnnexBConverter {
	return &AnnexBConverter{
		buffer: make([]byte, 0, 1024*1024),
	}
}

// Convert converts one Annex-B access unit to AVCC format.
func (c *AnnexBConverter) Convert(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	c.buffer = c.buffer[:0]

	offset := 0
	for offset < len(data) {
		startCodePos := c.findStartCode(data[offset:])
		if startCodePos == -1 {
			// No more start codes, the rest is the last NAL unit
			if offset < len(data) {
				c.appendLengthPrefixed(data[offset:])
			}
			break
		}

		actualPos := offset + startCodePos
		if actualPos > offset {
			c.appendLengthPrefixed(data[offset:actualPos])
		}

		startCodeLen := c.startCodeLength(data[actualPos:])
		offset = actualPos + startCodeLen
	}

	return c.buffer, nil
}

func (c *AnnexBConverter) appendLengthPrefixed(nal []byte) {
	length := uint32(len(nal))
	c.buffer = append(c.buffer,
		byte(length>>24),
		byte(length>>16),
		byte(length>>8),
		byte(length),
	)
	c.buffer = append(c.buffer, nal...)
}

func (c *AnnexBConverter) findStartCode(data []byte) int {
	for i := 0; i < len(data)-3; i++ {
		if data[i] == 0x00 && data[i+1] == 0x00 && data[i+2] == 0x00 && data[i+3] == 0x01 {
			return i
		}
		if i < len(data)-2 && data[i] == 0x00 && data[i+1] == 0x00 && data[i+2] == 0x01 {
			if i == 0 || data[i-1] != 0x00 {
				return i
			}
		}
	}
	return -1
}

func (c *AnnexBConverter) startCodeLength(data []byte) int {
	if len(data) >= 4 && bytes.Equal(data[:4], startCode4) {
		return 4
	}
	if len(data) >= 3 && bytes.Equal(data[:3], startCode3) {
		return 3
	}
	return 0
}

// ConvertAnnexBToAVCC is a convenience function for one-shot conversion.
func ConvertAnnexBToAVCC(data []byte) ([]byte, error) {
	return NewAnnexBConverter().Convert(data)
}

// PrependParameterSets prepends SPS and PPS payloads to an AVCC access
// unit, each with its own length prefix.
func PrependParameterSets(avcc, sps, pps []byte) []byte {
	if len(avcc) == 0 || len(sps) == 0 || len(pps) == 0 {
		return avcc
	}
	spsLen := uint32(len(sps))
	ppsLen := uint32(len(pps))
	out := make([]byte, 0, 4+len(sps)+4+len(pps)+len(avcc))
	out = append(out, byte(spsLen>>24), byte(spsLen>>16), byte(spsLen>>8), byte(spsLen))
	out = append(out, sps...)
	out = append(out, byte(ppsLen>>24), byte(ppsLen>>16), byte(ppsLen>>8), byte(ppsLen))
	out = append(out, pps...)
	out = append(out, avcc...)
	return out
}

// ConvertAVCCToAnnexB converts AVCC data back to Annex-B format.
func ConvertAVCCToAnnexB(data []byte) ([]byte, error) {
	var result []byte
	offset := 0

	for offset < len(data) {
		if offset+4 > len(data) {
			break
		}
		length := uint32(data[offset])<<24 | uint32(data[offset+1])<<16 | uint32(data[offset+2])<<8 | uint32(data[offset+3])
		offset += 4

		if offset+int(length) > len(data) {
			return nil, fmt.Errorf("invalid length prefix: %d", length)
		}

		result = append(result, startCode4...)
		result = append(result, data[offset:offset+int(length)]...)
		offset += int(length)
	}

	return result, nil
}
