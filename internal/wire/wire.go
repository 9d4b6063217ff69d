// Package wire implements the length-prefixed binary request/response
// protocol described in spec.md §4.9: a minimal framing suitable for a
// single TCP connection per client, with no authentication or TLS layer
// — both are explicit spec Non-goals.
//
// The teacher repo's own third-party stack (gin-gonic/gin,
// golang-jwt/jwt/v5) has no home here: gin is an HTTP router and this is
// a raw binary TCP protocol, and JWT verification has nothing to attach
// to without an auth Non-goal to serve. Framing instead follows the
// general shape every length-prefixed binary record in the examples
// pack uses — a fixed numeric header followed by a self-describing
// payload, the same pattern as internal/walrecord's WAL header and
// internal/sstable's entry header — applied here to request/response
// frames instead of disk records.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/atlaskv/atlaskv/internal/atlaserr"
)

// CmdType identifies the operation carried by a request frame.
type CmdType uint8

const (
	CmdGet    CmdType = 0x01
	CmdPut    CmdType = 0x02
	CmdDelete CmdType = 0x03
	CmdPing   CmdType = 0x04
)

// Status identifies the outcome carried by a response frame.
type Status uint8

const (
	StatusOk       Status = 0x00
	StatusNotFound Status = 0x01
	StatusError    Status = 0x02
)

// MaxPayloadSize bounds any single request or response payload at 16 MiB,
// guarding the server against a malformed or hostile length prefix.
const MaxPayloadSize = 16 * 1024 * 1024

// Command is a decoded client request, ready for Engine dispatch.
type Command struct {
	Type  CmdType
	Key   []byte
	Value []byte // only meaningful for CmdPut
}

// Response is an encoded reply to a Command.
type Response struct {
	Status  Status
	Payload []byte
}

// Ok builds a successful response. A nil payload (e.g. for Put or
// Delete) is encoded as a zero-length payload.
func Ok(payload []byte) Response {
	return Response{Status: StatusOk, Payload: payload}
}

// NotFound builds a key-not-found response.
func NotFound() Response {
	return Response{Status: StatusNotFound}
}

// Err builds an error response whose payload is the error's message.
func Err(err error) Response {
	return Response{Status: StatusError, Payload: []byte(err.Error())}
}

// UnknownCommand builds the error returned when a Command carries a
// CmdType that passed framing but matches no known operation.
func UnknownCommand(t CmdType) error {
	return fmt.Errorf("%w: unknown command type 0x%02x", atlaserr.ErrProtocol, t)
}

// ReadCommand reads one request frame from r: a 1-byte CmdType, a 4-byte
// big-endian payload length, and the payload itself.
func ReadCommand(r io.Reader) (Command, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return Command{}, err
	}

	cmdType := CmdType(header[0])
	payloadLen := binary.BigEndian.Uint32(header[1:5])
	if payloadLen > MaxPayloadSize {
		return Command{}, fmt.Errorf("%w: request payload too large: %d bytes", atlaserr.ErrProtocol, payloadLen)
	}

	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Command{}, err
		}
	}

	return decodeCommand(cmdType, payload)
}

// decodeCommand splits payload according to cmdType. Get and Delete take
// the entire payload as the key, with no length prefix. Ping must carry
// an empty payload. Put's payload is [KeyLen u32 BE][Key][Value].
func decodeCommand(cmdType CmdType, payload []byte) (Command, error) {
	switch cmdType {
	case CmdGet, CmdDelete:
		return Command{Type: cmdType, Key: payload}, nil
	case CmdPing:
		if len(payload) != 0 {
			return Command{}, fmt.Errorf("%w: ping does not take a payload", atlaserr.ErrProtocol)
		}
		return Command{Type: CmdPing}, nil
	case CmdPut:
		if len(payload) < 4 {
			return Command{}, fmt.Errorf("%w: put payload too short", atlaserr.ErrProtocol)
		}
		keyLen := binary.BigEndian.Uint32(payload[0:4])
		if uint64(4+keyLen) > uint64(len(payload)) {
			return Command{}, fmt.Errorf("%w: put key length exceeds payload", atlaserr.ErrProtocol)
		}
		key := payload[4 : 4+keyLen]
		value := payload[4+keyLen:]
		return Command{Type: CmdPut, Key: key, Value: value}, nil
	default:
		return Command{}, fmt.Errorf("%w: unknown command type 0x%02x", atlaserr.ErrProtocol, cmdType)
	}
}

// EncodeCommand is the inverse of ReadCommand, used by the client.
func EncodeCommand(c Command) []byte {
	var payload []byte
	switch c.Type {
	case CmdGet, CmdDelete:
		payload = c.Key
	case CmdPing:
		payload = nil
	case CmdPut:
		payload = make([]byte, 4+len(c.Key)+len(c.Value))
		binary.BigEndian.PutUint32(payload[0:4], uint32(len(c.Key)))
		copy(payload[4:], c.Key)
		copy(payload[4+len(c.Key):], c.Value)
	}

	frame := make([]byte, 5+len(payload))
	frame[0] = byte(c.Type)
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(payload)))
	copy(frame[5:], payload)
	return frame
}

// WriteResponse writes a response frame to w: a 1-byte Status, a 4-byte
// big-endian payload length, and the payload.
func WriteResponse(w io.Writer, resp Response) error {
	frame := make([]byte, 5+len(resp.Payload))
	frame[0] = byte(resp.Status)
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(resp.Payload)))
	copy(frame[5:], resp.Payload)

	_, err := w.Write(frame)
	return err
}

// ReadResponse is the inverse of WriteResponse, used by the client.
func ReadResponse(r io.Reader) (Response, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return Response{}, err
	}

	status := Status(header[0])
	payloadLen := binary.BigEndian.Uint32(header[1:5])
	if payloadLen > MaxPayloadSize {
		return Response{}, fmt.Errorf("%w: response payload too large: %d bytes", atlaserr.ErrProtocol, payloadLen)
	}

	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Response{}, err
		}
	}

	return Response{Status: status, Payload: payload}, nil
}
