// Package constants holds the wire-level constants shared by the framer
// and the connection core. They are not derived from any .x file; libvirt
// fixes them for the remote protocol.
package constants

const (
	// ProgramRemote is the RPC program number for libvirtd's general
	// management protocol (remote_internal.h: REMOTE_PROGRAM).
	ProgramRemote = 0x20008086

	// ProtocolVersion is the only wire version libvirtd currently speaks.
	ProtocolVersion = 1

	// PacketLengthSize is the width, in bytes, of the leading length
	// prefix on every frame.
	PacketLengthSize = 4

	// HeaderSize is the width, in bytes, of the fixed packet header that
	// follows the length prefix (six uint32 fields).
	HeaderSize = 24

	// MaxPacketLength bounds a single frame's length prefix defensively;
	// libvirtd never sends anything close to this in practice.
	MaxPacketLength = 64 * 1024 * 1024
)
