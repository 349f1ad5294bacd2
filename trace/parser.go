// File: trace/parser.go
//
// Description:
// Sequential reader for a single binary trace file. The file is an array
// of (header, payload) pairs; the header tells us how many bytes the
// payload occupies and which codec decodes it. Entry types from newer
// engine versions are skipped without failing the parse.

package trace

import (
	"fmt"
	"io"
	"log"
)

// Item is one decoded trace record.
type Item struct {
	Header ItemHeader
	Entry  Entry
}

// ParseStream reads trace items from r until end of stream and returns
// them in file order.
//
// A clean EOF at a header boundary is the normal termination condition. A
// truncated header at the end of the file is tolerated: everything before
// it is returned. A payload that cannot be decoded aborts the parse with
// ErrMalformedEntry, since the stream has to be assumed corrupt from that
// point on.
func ParseStream(r io.Reader) ([]Item, error) {
	var items []Item
	hdr := make([]byte, HeaderSize)

	for {
		if _, err := io.ReadFull(r, hdr); err != nil {
			if err == io.EOF {
				return items, nil
			}
			if err == io.ErrUnexpectedEOF {
				log.Printf("trace: truncated header at end of stream, stopping")
				return items, nil
			}
			return items, fmt.Errorf("reading trace header: %w", err)
		}

		header, err := DecodeHeader(hdr)
		if err != nil {
			return items, err
		}

		payload := make([]byte, header.Size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return items, fmt.Errorf("%w: truncated %s payload (%d bytes declared): %v",
				ErrMalformedEntry, header.Type, header.Size, err)
		}

		// Unknown item types are skipped, not fatal: trace files written
		// by newer engines may carry entries this parser has no codec for.
		if _, ok := factories[header.Type]; !ok {
			log.Printf("trace: unknown trace item %d, skipping %d bytes", uint8(header.Type), header.Size)
			continue
		}

		entry, err := DecodeEntry(header.Type, payload)
		if err != nil {
			return items, err
		}

		items = append(items, Item{Header: header, Entry: entry})
	}
}
