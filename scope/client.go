package scope

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client allows to connect to a scope server and receive frames.
type Client struct {
	address string

	conn *grpc.ClientConn
}

// NewClient creates a new client for the given address.
func NewClient(address string) *Client {
	return &Client{
		address: address,
	}
}

// Open the connection to the scope server.
func (c *Client) Open() error {
	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	conn, err := grpc.NewClient(c.address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("cannot connect to scope server: %w", err)
	}
	c.conn = conn

	return nil
}

// Close the connection to the scope server.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) openFrameStream(ctx context.Context) (grpc.ClientStream, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	stream, err := c.conn.NewStream(ctx, &scopeServiceDesc.Streams[0], getFramesFullName)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return stream, nil
}

// GetFrames provides a set of channels to receive frames from the scope server. Both channels are closed
// when the stream ends or the context is canceled.
func (c *Client) GetFrames(ctx context.Context) (<-chan *SpectralFrame, <-chan *ReadingFrame, error) {
	stream, err := c.openFrameStream(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open frame stream: %w", err)
	}

	spectralFrames := make(chan *SpectralFrame, 1)
	readingFrames := make(chan *ReadingFrame, 1)
	go func() {
		defer close(spectralFrames)
		defer close(readingFrames)
		for {
			rawFrame := new(structpb.Struct)
			err := stream.RecvMsg(rawFrame)
			if err != nil {
				return
			}

			switch frameKind(rawFrame) {
			case spectralKind:
				frame, err := readSpectralFrame(rawFrame)
				if err != nil {
					log.Printf("invalid spectral frame: %v", err)
					continue
				}
				select {
				case spectralFrames <- frame:
				case <-ctx.Done():
					return
				}
			case readingKind:
				frame, err := readReadingFrame(rawFrame)
				if err != nil {
					log.Printf("invalid reading frame: %v", err)
					continue
				}
				select {
				case readingFrames <- frame:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return spectralFrames, readingFrames, nil
}
