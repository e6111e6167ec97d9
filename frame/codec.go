package frame

import "encoding/binary"

// PutHeader serializes a Message header into a 24-byte little-endian
// buffer. buf must be at least HeaderSize long.
func PutHeader(buf []byte, m *Message) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.Command))
	binary.LittleEndian.PutUint32(buf[4:8], m.Arg0)
	binary.LittleEndian.PutUint32(buf[8:12], m.Arg1)
	binary.LittleEndian.PutUint32(buf[12:16], m.DataLength)
	binary.LittleEndian.PutUint32(buf[16:20], m.DataCheck)
	binary.LittleEndian.PutUint32(buf[20:24], m.Magic)
}

// GetHeader parses a 24-byte little-endian buffer into a Message header.
// It performs no validation; call ValidateHeader on the result.
func GetHeader(buf []byte) Message {
	return Message{
		Command:    Command(binary.LittleEndian.Uint32(buf[0:4])),
		Arg0:       binary.LittleEndian.Uint32(buf[4:8]),
		Arg1:       binary.LittleEndian.Uint32(buf[8:12]),
		DataLength: binary.LittleEndian.Uint32(buf[12:16]),
		DataCheck:  binary.LittleEndian.Uint32(buf[16:20]),
		Magic:      binary.LittleEndian.Uint32(buf[20:24]),
	}
}
