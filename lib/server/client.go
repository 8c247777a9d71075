// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/runscope/lib/codec"
	"github.com/bureau-foundation/runscope/lib/event"
	"github.com/bureau-foundation/runscope/lib/schema/console"
)

// dialTimeout covers only the connect phase.
const dialTimeout = 5 * time.Second

// responseReadTimeout is matched to the server's readTimeout plus
// writeTimeout.
const responseReadTimeout = 45 * time.Second

// maxResponseSize matches the server's maxRequestSize.
const maxResponseSize = 1024 * 1024

// ServiceError is returned when the server responds with ok=false or
// sends an error frame.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error on %q: %s", e.Action, e.Message)
}

// Client talks to a runscope socket. Each Call opens a new connection.
type Client struct {
	socketPath string
}

// NewClient creates a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Call sends a request and decodes the response data into result.
// fields may carry handler-specific request fields; "action" is added
// automatically. A server-side failure is returned as *ServiceError.
func (c *Client) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}
	if !response.OK {
		return &ServiceError{Action: action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

// Status fetches collector health and counters.
func (c *Client) Status(ctx context.Context) (*console.Status, error) {
	var status console.Status
	if err := c.Call(ctx, ActionStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// TaskDetails fetches one task with its full poll histograms.
func (c *Client) TaskDetails(ctx context.Context, id event.TaskID) (*console.TaskDetails, error) {
	var details console.TaskDetails
	if err := c.Call(ctx, ActionTaskDetails, map[string]any{"id": uint64(id)}, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (c *Client) send(ctx context.Context, request any) (*Response, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	return conn, nil
}

// Subscribe opens a subscription stream. The first snapshot returned
// by Next is a full snapshot. Cancelling ctx closes the stream.
func (c *Client) Subscribe(ctx context.Context, interest console.Interest) (*Stream, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribing on %s: %w", c.socketPath, err)
	}

	request := console.SubscribeRequest{Action: ActionSubscribe, Interest: interest}
	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		conn.Close()
		return nil, fmt.Errorf("writing subscribe request: %w", err)
	}

	decoder := codec.NewDecoder(conn)
	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	var ack Response
	if err := decoder.Decode(&ack); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading subscribe ack: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	if !ack.OK {
		conn.Close()
		return nil, &ServiceError{Action: ActionSubscribe, Message: ack.Error}
	}

	stream := &Stream{
		conn:    conn,
		decoder: decoder,
		encoder: codec.NewEncoder(conn),
		closed:  make(chan struct{}),
	}
	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-stream.closed:
		}
	}()
	return stream, nil
}

// Stream is the client side of a subscription. Next may be called
// from one goroutine while controls are sent from another.
type Stream struct {
	conn    net.Conn
	decoder *codec.Decoder

	writeMu sync.Mutex
	encoder *codec.Encoder

	closeOnce sync.Once
	closed    chan struct{}
}

// NextFrame returns the next raw frame, including heartbeats. A closed
// stream returns io.EOF.
func (s *Stream) NextFrame() (*console.Frame, error) {
	var frame console.Frame
	if err := s.decoder.Decode(&frame); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return &frame, nil
}

// Next returns the next snapshot, skipping heartbeats. An error frame
// is returned as *ServiceError; the stream remains usable after it.
func (s *Stream) Next() (*console.Snapshot, error) {
	for {
		frame, err := s.NextFrame()
		if err != nil {
			return nil, err
		}
		switch frame.Type {
		case console.FrameHeartbeat:
			continue
		case console.FrameError:
			return nil, &ServiceError{Action: ActionSubscribe, Message: frame.Error}
		case console.FrameSnapshot:
			var snapshot console.Snapshot
			if err := codec.DecodePayload(frame.Payload, frame.Encoding, frame.Size, &snapshot); err != nil {
				return nil, fmt.Errorf("decoding snapshot seq %d: %w", frame.Seq, err)
			}
			return &snapshot, nil
		default:
			return nil, fmt.Errorf("unknown frame type %q", frame.Type)
		}
	}
}

// Pause stops snapshot delivery. Heartbeats continue.
func (s *Stream) Pause() error {
	return s.control(console.Control{Action: console.ControlPause})
}

// Resume restarts delivery, beginning with a full snapshot.
func (s *Stream) Resume() error {
	return s.control(console.Control{Action: console.ControlResume})
}

// SetInterest replaces the stream's interest. The server answers an
// invalid interest with an error frame.
func (s *Stream) SetInterest(interest console.Interest) error {
	return s.control(console.Control{Action: console.ControlInterest, Interest: &interest})
}

func (s *Stream) control(control console.Control) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.encoder.Encode(control); err != nil {
		return fmt.Errorf("sending %s control: %w", control.Action, err)
	}
	return nil
}

// Close ends the stream. Safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.conn.Close()
	})
	return err
}
