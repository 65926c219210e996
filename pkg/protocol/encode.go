package protocol

// Outgoing command requests bypass the framed protocol entirely: the
// device accepts unframed, single-byte-keyed requests on the wire.
//
//	list_frames          -> 'l' 'L'
//	get_frame_info(id)   -> 'i' id(4 LE) 'I'
//	enable_frame(id)     -> 'e' id(4 LE) 'E'
//	disable_frame(id)    -> 'd' id(4 LE) 'D'

// EncodeListFrames encodes a list-frames request.
func EncodeListFrames() []byte { return []byte{'l', 'L'} }

// EncodeGetFrameInfo encodes a get-frame-info request for frameID.
func EncodeGetFrameInfo(frameID uint32) []byte {
	return encodeIDRequest('i', frameID, 'I')
}

// EncodeEnableFrame encodes an enable-frame request for frameID.
func EncodeEnableFrame(frameID uint32) []byte {
	return encodeIDRequest('e', frameID, 'E')
}

// EncodeDisableFrame encodes a disable-frame request for frameID.
func EncodeDisableFrame(frameID uint32) []byte {
	return encodeIDRequest('d', frameID, 'D')
}

func encodeIDRequest(start byte, frameID uint32, end byte) []byte {
	buf := make([]byte, 6)
	buf[0] = start
	buf[1] = byte(frameID)
	buf[2] = byte(frameID >> 8)
	buf[3] = byte(frameID >> 16)
	buf[4] = byte(frameID >> 24)
	buf[5] = end
	return buf
}
