// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/bureau-foundation/runscope/lib/aggregator"
	"github.com/bureau-foundation/runscope/lib/clock"
	"github.com/bureau-foundation/runscope/lib/codec"
	"github.com/bureau-foundation/runscope/lib/event"
	"github.com/bureau-foundation/runscope/lib/publish"
	"github.com/bureau-foundation/runscope/lib/schema/console"
)

// Action names.
const (
	ActionStatus      = "status"
	ActionTaskDetails = "task_details"
	ActionSubscribe   = "subscribe"
)

const (
	// DefaultHeartbeatInterval is how often an idle or paused stream
	// receives a heartbeat frame.
	DefaultHeartbeatInterval = 10 * time.Second

	// controlBufferSize is the channel capacity for inbound control
	// messages from one stream client.
	controlBufferSize = 8
)

// Source is the collector the server exposes. *aggregator.Aggregator
// implements it.
type Source interface {
	Subscribe(ctx context.Context, interest console.Interest) (*publish.Subscription, error)
	TaskDetails(ctx context.Context, id event.TaskID) (*console.TaskDetails, error)
	Stats() aggregator.Stats
}

// Config configures a Server.
type Config struct {
	SocketPath string
	Source     Source

	// Version is reported by the status action.
	Version string

	Clock  clock.Clock
	Logger *slog.Logger

	// HeartbeatInterval defaults to DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration
}

// Server serves the inspection protocol for one Source.
type Server struct {
	socket    *SocketServer
	source    Source
	version   string
	clock     clock.Clock
	logger    *slog.Logger
	heartbeat time.Duration
}

// New validates config and registers the inspection actions.
func New(config Config) (*Server, error) {
	if config.SocketPath == "" {
		return nil, errors.New("server: SocketPath is required")
	}
	if config.Source == nil {
		return nil, errors.New("server: Source is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultHeartbeatInterval
	}

	s := &Server{
		socket:    NewSocketServer(config.SocketPath, config.Logger),
		source:    config.Source,
		version:   config.Version,
		clock:     config.Clock,
		logger:    config.Logger,
		heartbeat: config.HeartbeatInterval,
	}
	s.socket.Handle(ActionStatus, s.handleStatus)
	s.socket.Handle(ActionTaskDetails, s.handleTaskDetails)
	s.socket.HandleStream(ActionSubscribe, s.handleSubscribe)
	return s, nil
}

// Serve blocks until ctx is cancelled and every connection has closed.
func (s *Server) Serve(ctx context.Context) error {
	return s.socket.Serve(ctx)
}

func (s *Server) handleStatus(ctx context.Context, raw []byte) (any, error) {
	stats := s.source.Stats()
	return console.Status{
		Version:     s.version,
		StartedAt:   stats.StartedAt.UnixNano(),
		Uptime:      s.clock.Now().Sub(stats.StartedAt),
		Ticks:       stats.Tick,
		Subscribers: stats.Subscribers,
		QueueLength: stats.QueueLength,
		QueueCap:    stats.QueueCapacity,
		Counters:    stats.Counters,
		Resident:    stats.Resident,
	}, nil
}

func (s *Server) handleTaskDetails(ctx context.Context, raw []byte) (any, error) {
	var request console.TaskDetailsRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid task_details request: %w", err)
	}
	if request.ID == 0 {
		return nil, errors.New("missing required field: id")
	}
	return s.source.TaskDetails(ctx, event.TaskID(request.ID))
}

// handleSubscribe runs one subscription stream:
//
//	Server → Client: Response{ok}                    (ack)
//	Server → Client: Frame{type: snapshot, ...}      (per tick)
//	Server → Client: Frame{type: heartbeat}          (periodic)
//	Client → Server: Control{action, interest}       (any time)
func (s *Server) handleSubscribe(ctx context.Context, raw []byte, conn net.Conn) {
	var request console.SubscribeRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		s.socket.writeError(conn, fmt.Sprintf("invalid subscribe request: %v", err))
		return
	}
	subscription, err := s.source.Subscribe(ctx, request.Interest)
	if err != nil {
		s.logger.Debug("subscribe rejected", "error", err)
		s.socket.writeError(conn, err.Error())
		return
	}
	defer subscription.Close()

	logger := s.logger.With("subscription", subscription.ID())
	encoder := codec.NewEncoder(conn)
	write := func(value any) error {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return encoder.Encode(value)
	}

	if err := write(Response{OK: true}); err != nil {
		logger.Debug("failed to write subscribe ack", "error", err)
		return
	}
	logger.Info("subscription stream started")
	defer func() {
		logger.Info("subscription stream ended", "dropped", subscription.Dropped())
	}()

	// Closing the connection unblocks the control reader.
	handlerDone := make(chan struct{})
	defer close(handlerDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-handlerDone:
		}
	}()

	controls := make(chan console.Control, controlBufferSize)
	readerDone := make(chan error, 1)
	go func() {
		readerDone <- readControls(conn, controls, handlerDone)
	}()

	heartbeat := s.clock.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	encoding := request.Interest.Encoding()
	for {
		select {
		case snapshot, ok := <-subscription.Messages():
			if !ok {
				return
			}
			payload, size, used, err := codec.EncodePayload(snapshot, encoding)
			if err != nil {
				logger.Error("encoding snapshot", "error", err)
				return
			}
			if err := write(console.Frame{
				Type:     console.FrameSnapshot,
				Seq:      snapshot.Seq,
				Dropped:  snapshot.Dropped,
				Encoding: used,
				Size:     size,
				Payload:  payload,
			}); err != nil {
				logger.Debug("failed to write snapshot frame", "error", err)
				return
			}

		case control := <-controls:
			if err := applyControl(subscription, control, &encoding); err != nil {
				logger.Debug("control rejected", "action", control.Action, "error", err)
				if err := write(console.Frame{Type: console.FrameError, Error: err.Error()}); err != nil {
					return
				}
				continue
			}
			logger.Debug("control applied", "action", control.Action)

		case <-heartbeat.C:
			if err := write(console.Frame{Type: console.FrameHeartbeat}); err != nil {
				logger.Debug("failed to write heartbeat", "error", err)
				return
			}

		case err := <-readerDone:
			if err != nil && ctx.Err() == nil {
				logger.Debug("client read error", "error", err)
			}
			return

		case <-ctx.Done():
			return
		}
	}
}

func applyControl(subscription *publish.Subscription, control console.Control, encoding *codec.Encoding) error {
	switch control.Action {
	case console.ControlPause:
		subscription.Pause()
	case console.ControlResume:
		subscription.Resume()
	case console.ControlInterest:
		if control.Interest == nil {
			return fmt.Errorf("%w: interest control without interest", console.ErrInvalidInterest)
		}
		if err := subscription.SetInterest(*control.Interest); err != nil {
			return err
		}
		*encoding = control.Interest.Encoding()
	default:
		return fmt.Errorf("unknown control action %q", control.Action)
	}
	return nil
}

// readControls decodes Control messages until the connection closes.
// A clean close returns nil.
func readControls(conn net.Conn, controls chan<- console.Control, done <-chan struct{}) error {
	decoder := codec.NewDecoder(io.LimitReader(conn, maxStreamControlBytes))
	for {
		var control console.Control
		if err := decoder.Decode(&control); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		select {
		case controls <- control:
		case <-done:
			return nil
		}
	}
}

// maxStreamControlBytes bounds the total control traffic one stream
// client may send.
const maxStreamControlBytes = 16 * 1024 * 1024
