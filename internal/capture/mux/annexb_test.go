package mux

import (
	"bytes"
	"testing"
)

func TestAnnexBToAVCCConversion(t *testing.T) {
	// SPS and PPS NAL units in Annex-B format
	annexBData := []byte{
		0x00, 0x00, 0x00, 0x01, // Start code
		0x67, 0x42, 0x00, 0x1e, 0x96, 0x54, 0x05, 0x01, 0xed, 0x80, // SPS data
		0x00, 0x00, 0x00, 0x01, // Start code
		0x68, 0xce, 0x38, 0x80, // PPS data
	}

	avcc, err := ConvertAnnexBToAVCC(annexBData)
	if err != nil {
		t.Fatalf("Conversion failed: %v", err)
	}
	if len(avcc) == 0 {
		t.Fatal("No AVCC data returned")
	}
	if bytes.HasPrefix(avcc, startCode4) {
		t.Fatal("AVCC data still contains start codes")
	}

	spsLength := uint32(avcc[0])<<24 | uint32(avcc[1])<<16 | uint32(avcc[2])<<8 | uint32(avcc[3])
	if spsLength != 10 {
		t.Fatalf("Expected SPS length 10, got %d", spsLength)
	}

	ppsOffset := 4 + int(spsLength)
	if ppsOffset+4 > len(avcc) {
		t.Fatal("Not enough data for PPS length prefix")
	}
	ppsLength := uint32(avcc[ppsOffset])<<24 | uint32(avcc[ppsOffset+1])<<16 | uint32(avcc[ppsOffset+2])<<8 | uint32(avcc[ppsOffset+3])
	if ppsLength != 4 {
		t.Fatalf("Expected PPS length 4, got %d", ppsLength)
	}
}

func TestRoundTripConversion(t *testing.T) {
	original := []byte{
		0x00, 0x00, 0x00, 0x01,
		0x67, 0x42, 0x00, 0x1e, 0x96, 0x54, 0x05, 0x01, 0xed, 0x80,
		0x00, 0x00, 0x00, 0x01,
		0x68, 0xce, 0x38, 0x80,
	}

	avcc, err := ConvertAnnexBToAVCC(original)
	if err != nil {
		t.Fatalf("Annex-B to AVCC conversion failed: %v", err)
	}
	back, err := ConvertAVCCToAnnexB(avcc)
	if err != nil {
		t.Fatalf("AVCC to Annex-B conversion failed: %v", err)
	}

	originalNals := SplitNALUnits(original)
	backNals := SplitNALUnits(back)
	if len(originalNals) != len(backNals) {
		t.Fatalf("Different number of NAL units: original=%d, converted=%d", len(originalNals), len(backNals))
	}
	for i := range originalNals {
		if !bytes.Equal(originalNals[i], backNals[i]) {
			t.Fatalf("NAL unit %d mismatch after round trip", i)
		}
	}
}

func TestSplitNALUnits(t *testing.T) {
	// Mixed 4-byte and 3-byte start codes
	data := []byte{
		0x00, 0x00, 0x00, 0x01, 0x67, 0xAA,
		0x00, 0x00, 0x01, 0x68, 0xBB,
		0x00, 0x00, 0x00, 0x01, 0x65, 0xCC, 0xDD,
	}

	nals := SplitNALUnits(data)
	if len(nals) != 3 {
		t.Fatalf("Expected 3 NAL units, got %d", len(nals))
	}
	if !bytes.Equal(nals[0], []byte{0x67, 0xAA}) {
		t.Errorf("Unexpected first NAL: %x", nals[0])
	}
	if !bytes.Equal(nals[1], []byte{0x68, 0xBB}) {
		t.Errorf("Unexpected second NAL: %x", nals[1])
	}
	if !bytes.Equal(nals[2], []byte{0x65, 0xCC, 0xDD}) {
		t.Errorf("Unexpected third NAL: %x", nals[2])
	}
}

func TestExtractParameterSets(t *testing.T) {
	au := annexBAccessUnit(testSPS, testPPS, testIDR)

	sps, pps := ExtractParameterSets(au)
	if !bytes.Equal(sps, testSPS) {
		t.Errorf("SPS mismatch: got %x", sps)
	}
	if !bytes.Equal(pps, testPPS) {
		t.Errorf("PPS mismatch: got %x", pps)
	}

	sps, pps = ExtractParameterSets(annexBAccessUnit(testPFrame))
	if sps != nil || pps != nil {
		t.Error("Expected no parameter sets in a P frame")
	}
}

func TestIsKeyframeAnnexB(t *testing.T) {
	if !IsKeyframeAnnexB(annexBAccessUnit(testSPS, testPPS, testIDR)) {
		t.Error("IDR access unit not recognized as keyframe")
	}
	if IsKeyframeAnnexB(annexBAccessUnit(testPFrame)) {
		t.Error("P frame recognized as keyframe")
	}
}

func TestPrependParameterSets(t *testing.T) {
	avcc := []byte{0x00, 0x00, 0x00, 0x02, 0x65, 0x88}

	out := PrependParameterSets(avcc, testSPS, testPPS)
	wantLen := 4 + len(testSPS) + 4 + len(testPPS) + len(avcc)
	if len(out) != wantLen {
		t.Fatalf("Expected %d bytes, got %d", wantLen, len(out))
	}

	spsLen := uint32(out[0])<<24 | uint32(out[1])<<16 | uint32(out[2])<<8 | uint32(out[3])
	if int(spsLen) != len(testSPS) {
		t.Fatalf("SPS length prefix %d does not match %d", spsLen, len(testSPS))
	}

	// Missing parameter sets leave the access unit untouched.
	if !bytes.Equal(PrependParameterSets(avcc, nil, testPPS), avcc) {
		t.Error("Expected unchanged access unit when SPS missing")
	}
}
