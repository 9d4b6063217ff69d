package wire_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlaskv/atlaskv/internal/wire"
)

func TestWriteResponseOkByteLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteResponse(&buf, wire.Ok([]byte("hi"))))

	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x02, 'h', 'i'}, buf.Bytes())
}

func TestCommandRoundTripGet(t *testing.T) {
	cmd := wire.Command{Type: wire.CmdGet, Key: []byte("somekey")}
	frame := wire.EncodeCommand(cmd)

	got, err := wire.ReadCommand(bytes.NewReader(frame))
	require.NoError(t, err)
	require.Equal(t, cmd.Type, got.Type)
	require.Equal(t, cmd.Key, got.Key)
}

func TestCommandRoundTripPut(t *testing.T) {
	cmd := wire.Command{Type: wire.CmdPut, Key: []byte("k"), Value: []byte("value-bytes")}
	frame := wire.EncodeCommand(cmd)

	got, err := wire.ReadCommand(bytes.NewReader(frame))
	require.NoError(t, err)
	require.Equal(t, wire.CmdPut, got.Type)
	require.Equal(t, []byte("k"), got.Key)
	require.Equal(t, []byte("value-bytes"), got.Value)
}

func TestCommandRoundTripPing(t *testing.T) {
	frame := wire.EncodeCommand(wire.Command{Type: wire.CmdPing})

	got, err := wire.ReadCommand(bytes.NewReader(frame))
	require.NoError(t, err)
	require.Equal(t, wire.CmdPing, got.Type)
}

func TestReadCommandRejectsPingWithPayload(t *testing.T) {
	frame := wire.EncodeCommand(wire.Command{Type: wire.CmdPing})
	// Ping frames carry no payload; force a non-empty one onto the wire.
	frame[4] = 1
	frame = append(frame, 'x')

	_, err := wire.ReadCommand(bytes.NewReader(frame))
	require.Error(t, err)
}

func TestReadCommandRejectsOversizedPayload(t *testing.T) {
	header := []byte{byte(wire.CmdGet), 0xFF, 0xFF, 0xFF, 0xFF}
	_, err := wire.ReadCommand(bytes.NewReader(header))
	require.Error(t, err)
}

func TestResponseRoundTripNotFound(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteResponse(&buf, wire.NotFound()))

	resp, err := wire.ReadResponse(&buf)
	require.NoError(t, err)
	require.Equal(t, wire.StatusNotFound, resp.Status)
	require.Empty(t, resp.Payload)
}
