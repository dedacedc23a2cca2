package session

// handshakeHostOpen is the literal bytes the host writes to open the
// handshake exchange, before any header byte has been negotiated.
var handshakeHostOpen = []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00}

// handshakeHostClose is the literal single byte the host writes to
// conclude the handshake once it has adopted the device's header byte.
var handshakeHostClose = []byte{0x00}

// handshakeHeaderByteOffset is the index of the negotiated header byte
// within the device's handshake reply.
const handshakeHeaderByteOffset = 12

// parseHandshakeReply extracts the negotiated header byte from the
// device's handshake reply notification. It reports ok=false if the
// notification is too short to be a handshake reply.
func parseHandshakeReply(raw []byte) (headerByte byte, ok bool) {
	if len(raw) <= handshakeHeaderByteOffset {
		return 0, false
	}
	return raw[handshakeHeaderByteOffset], true
}
