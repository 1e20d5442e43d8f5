package mux

// VP8IsKeyframe reports whether a VP8 frame payload starts a keyframe.
// Bit 0 of the frame tag is the inter-frame flag.
func VP8IsKeyframe(frame []byte) bool {
	return len(frame) > 0 && frame[0]&0x01 == 0
}

// VP9IsKeyframe reads the VP9 uncompressed header far enough to reach the
// frame_type bit. Frames shown from the reference buffer are never
// keyframes.
func VP9IsKeyframe(frame []byte) bool {
	if len(frame) == 0 {
		return false
	}
	b := frame[0]
	if b>>6 != 0x02 { // frame_marker
		return false
	}
	profile := ((b>>4)&0x01)<<1 | (b>>5)&0x01
	if profile == 3 {
		// One reserved bit shifts the remaining fields down.
		if (b>>2)&0x01 == 1 { // show_existing_frame
			return false
		}
		return (b>>1)&0x01 == 0 // frame_type
	}
	if (b>>3)&0x01 == 1 { // show_existing_frame
		return false
	}
	return (b>>2)&0x01 == 0 // frame_type
}
