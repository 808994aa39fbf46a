package net

import (
	"context"
	"errors"
	"fmt"

	"github.com/quic-go/quic-go"
)

// ErrNoPin is returned by Client.Run when the client has no way to trust the server.
var ErrNoPin = errors.New("no certificate pin given and Insecure not set")

// Client sends chunks to an execution server.
type Client struct {
	// Pin is the server's certificate fingerprint, see Server.Fingerprint.
	Pin []byte
	// Insecure accepts any server certificate. Only used when Pin is empty.
	Insecure bool
}

// Run sends a chunk to the execution server at addr and waits for the result.
// A non-nil response may still carry a server-side error, see RunResponse.Err.
func (c *Client) Run(ctx context.Context, addr string, chunk []byte, iterations int) (*RunResponse, error) {
	if len(c.Pin) == 0 && !c.Insecure {
		return nil, ErrNoPin
	}

	z, err := compress(chunk)
	if err != nil {
		return nil, fmt.Errorf("compressing chunk: %w", err)
	}

	b, err := MarshalRequest(&RunRequest{Chunk: z, Iterations: iterations})
	if err != nil {
		return nil, fmt.Errorf("marshal run request: %w", err)
	}

	qc, err := quic.DialAddr(ctx, addr, clientTLS(c.Pin), &quic.Config{})
	if err != nil {
		return nil, fmt.Errorf("error dialing %s: %w", addr, err)
	}
	defer qc.CloseWithError(0, "")

	stream, err := qc.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("error opening stream: %w", err)
	}

	if err = writeFrame(stream, b); err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	stream.Close() // done sending

	if b, err = readFrame(stream); err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	return UnmarshalResponse(b)
}
