// File: trace/parser_test.go
package trace

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// appendItem serializes one (header, payload) pair into buf.
func appendItem(t *testing.T, buf *bytes.Buffer, ts uint64, state uint32, pid uint64, entry Entry) {
	t.Helper()

	payload, err := entry.Encode()
	require.NoError(t, err)

	header := ItemHeader{
		Timestamp: ts,
		Size:      uint32(len(payload)),
		Type:      entry.EntryType(),
		StateID:   state,
		Pid:       pid,
	}
	raw, err := header.Encode()
	require.NoError(t, err)

	buf.Write(raw)
	buf.Write(payload)
}

func TestParseStreamTotality(t *testing.T) {
	entries := []Entry{
		newModuleLoad("prog", "/home/user/prog"),
		&Call{Source: 0x401000, Target: 0x402000},
		&Fork{PC: 0x401050, Children: []uint32{1}},
		&ModuleUnload{LoadBase: 0x400000, Pid: 1234},
	}

	var buf bytes.Buffer
	for i, e := range entries {
		appendItem(t, &buf, uint64(i), 0, 1234, e)
	}

	items, err := ParseStream(&buf)
	require.NoError(t, err)
	require.Len(t, items, len(entries))
	for i, item := range items {
		assert.Equal(t, uint64(i), item.Header.Timestamp)
		assert.Equal(t, entries[i], item.Entry)
	}
}

func TestParseStreamEmpty(t *testing.T) {
	items, err := ParseStream(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestParseStreamTruncatedHeader(t *testing.T) {
	var buf bytes.Buffer
	appendItem(t, &buf, 1, 0, 1234, &Call{Source: 1, Target: 2})
	// A partial header at EOF is tolerated; nothing before it is lost.
	buf.Write(make([]byte, HeaderSize/2))

	items, err := ParseStream(&buf)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, &Call{Source: 1, Target: 2}, items[0].Entry)
}

func TestParseStreamTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	appendItem(t, &buf, 1, 0, 1234, &Call{Source: 1, Target: 2})
	appendItem(t, &buf, 2, 0, 1234, &Call{Source: 3, Target: 4})
	truncated := buf.Bytes()[:buf.Len()-8]

	items, err := ParseStream(bytes.NewReader(truncated))
	assert.ErrorIs(t, err, ErrMalformedEntry)
	// Everything before the corruption point is still returned.
	require.Len(t, items, 1)
	assert.Equal(t, &Call{Source: 1, Target: 2}, items[0].Entry)
}

func TestParseStreamSkipsUnknownTypes(t *testing.T) {
	var buf bytes.Buffer
	appendItem(t, &buf, 1, 0, 1234, &Call{Source: 1, Target: 2})

	// An entry type without a codec: consumed per header.Size, not decoded.
	header := ItemHeader{Timestamp: 2, Size: 10, Type: EntryTestCase, StateID: 0, Pid: 1234}
	raw, err := header.Encode()
	require.NoError(t, err)
	buf.Write(raw)
	buf.Write(make([]byte, 10))

	appendItem(t, &buf, 3, 0, 1234, &Return{Source: 5, Target: 6})

	items, err := ParseStream(&buf)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, &Call{Source: 1, Target: 2}, items[0].Entry)
	assert.Equal(t, &Return{Source: 5, Target: 6}, items[1].Entry)
}
