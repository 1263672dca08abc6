// Package moga implements the MOGA controller serial protocol: frame codec,
// generation specific command tables, payload decoding and the session
// state machine that turns controller reports into input events.
//
// Frame layout (both directions):
//
//	0: sync (0x5a host->controller, 0x7a controller->host)
//	1: total length, header and checksum included
//	2: command / response code
//	3: player slot (1-4)
//	4..len-2: payload (controller->host only)
//	len-1: XOR of all preceding bytes
package moga

import (
	"fmt"
	"io"
)

const (
	SyncOut byte = 0x5a
	SyncIn  byte = 0x7a

	commandLen = 5
	// responseHeaderLen is the shortest frame the controller sends.
	responseHeaderLen = 12
	payloadOffset     = 4
)

// Response is one validated inbound frame.
type Response struct {
	Code    byte
	Player  uint8
	Payload []byte
}

// Checksum is the rolling XOR of data.
func Checksum(data []byte) byte {
	var n byte
	for _, b := range data {
		n ^= b
	}
	return n
}

// BuildCommand encodes a 5-byte command frame.
func BuildCommand(code Command, player uint8) []byte {
	b := make([]byte, commandLen)
	b[0] = SyncOut
	b[1] = commandLen
	b[2] = code
	b[3] = player
	b[4] = Checksum(b[:4])
	return b
}

// ReadFrame reads one raw inbound frame: a 12-byte header, then whatever
// remainder the length field declares.
// Only framing errors from the reader are returned; the frame is not validated.
func ReadFrame(r io.Reader) ([]byte, error) {
	buf := make([]byte, responseHeaderLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("recv header: %w", err)
	}
	if size := int(buf[1]); size > responseHeaderLen {
		rest := make([]byte, size-responseHeaderLen)
		if _, err := io.ReadFull(r, rest); err != nil {
			return nil, fmt.Errorf("recv body: %w", err)
		}
		buf = append(buf, rest...)
	}
	return buf, nil
}

// ParseResponse validates a raw inbound frame against the expected player slot.
// Checks run in order: sync, length, checksum, player.
func ParseResponse(frame []byte, player uint8) (Response, error) {
	if len(frame) < payloadOffset+1 {
		return Response{}, &ProtocolFault{Reason: FaultLength, Want: responseHeaderLen, Got: len(frame), Frame: frame}
	}
	if frame[0] != SyncIn {
		return Response{}, &ProtocolFault{Reason: FaultSync, Want: int(SyncIn), Got: int(frame[0]), Frame: frame}
	}
	if size := int(frame[1]); size != len(frame) {
		return Response{}, &ProtocolFault{Reason: FaultLength, Want: size, Got: len(frame), Frame: frame}
	}
	last := len(frame) - 1
	if sum := Checksum(frame[:last]); sum != frame[last] {
		return Response{}, &ProtocolFault{Reason: FaultChecksum, Want: int(sum), Got: int(frame[last]), Frame: frame}
	}
	if frame[3] != player {
		return Response{}, &ProtocolFault{Reason: FaultPlayer, Want: int(player), Got: int(frame[3]), Frame: frame}
	}
	return Response{
		Code:    frame[2],
		Player:  frame[3],
		Payload: frame[payloadOffset:last],
	}, nil
}

// ReadResponse reads and validates one inbound frame.
func ReadResponse(r io.Reader, player uint8) (Response, error) {
	frame, err := ReadFrame(r)
	if err != nil {
		return Response{}, err
	}
	return ParseResponse(frame, player)
}

// BuildResponse encodes an inbound frame. It is what a controller sends and
// is used by emulated peers. Short payloads are zero padded to the minimum
// frame size.
func BuildResponse(code byte, player uint8, payload []byte) []byte {
	size := max(payloadOffset+len(payload)+1, responseHeaderLen)
	b := make([]byte, size)
	b[0] = SyncIn
	b[1] = byte(size)
	b[2] = code
	b[3] = player
	copy(b[payloadOffset:], payload)
	b[size-1] = Checksum(b[:size-1])
	return b
}
