package connection

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StreamURL builds the combined trade stream URL for symbols.
func StreamURL(baseURL string, symbols []string) (string, error) {
	if len(symbols) == 0 {
		return "", ErrNoStreams
	}
	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = strings.ToLower(s) + "@trade"
	}
	return fmt.Sprintf("%s/stream?streams=%s", strings.TrimRight(baseURL, "/"), strings.Join(names, "/")), nil
}

// Stream keeps one combined trade stream open, reconnecting on failure.
type Stream struct {
	cfg    StreamConfig
	url    string
	logger *zap.SugaredLogger

	// newClient is swapped in tests.
	newClient func(ClientConfig, *zap.SugaredLogger) Client

	out chan TimestampedMessage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	client Client
	stats  StreamStats
}

// NewStream creates a Stream for cfg.Symbols.
func NewStream(cfg StreamConfig, logger *zap.SugaredLogger) (*Stream, error) {
	url, err := StreamURL(cfg.BaseURL, cfg.Symbols)
	if err != nil {
		return nil, err
	}

	def := DefaultStreamConfig()
	if cfg.ReconnectBaseWait <= 0 {
		cfg.ReconnectBaseWait = def.ReconnectBaseWait
	}
	if cfg.ReconnectMaxWait < cfg.ReconnectBaseWait {
		cfg.ReconnectMaxWait = max(def.ReconnectMaxWait, cfg.ReconnectBaseWait)
	}
	if cfg.MessageBufferSize <= 0 {
		cfg.MessageBufferSize = def.MessageBufferSize
	}
	cfg.Client.URL = url

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Stream{
		cfg:       cfg,
		url:       url,
		logger:    logger,
		newClient: NewClient,
		out:       make(chan TimestampedMessage, cfg.MessageBufferSize),
	}, nil
}

// URL returns the stream URL.
func (s *Stream) URL() string {
	return s.url
}

// Start begins the connect/read/reconnect loop. It does not wait for the
// first connection.
func (s *Stream) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Infow("Trade stream started", "url", s.url, "symbols", len(s.cfg.Symbols))
	return nil
}

// Stop closes the connection and waits for the loop to exit.
func (s *Stream) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	s.mu.RLock()
	c := s.client
	s.mu.RUnlock()
	if c != nil {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infow("Trade stream stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages returns the merged message channel. It is never closed.
func (s *Stream) Messages() <-chan TimestampedMessage {
	return s.out
}

// Stats returns current counters.
func (s *Stream) Stats() StreamStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Stream) run() {
	defer s.wg.Done()

	wait := s.cfg.ReconnectBaseWait
	for {
		if s.ctx.Err() != nil {
			return
		}

		healthy, err := s.session()
		if s.ctx.Err() != nil {
			return
		}

		if healthy {
			wait = s.cfg.ReconnectBaseWait
		}

		s.logger.Warnw("Trade stream disconnected, reconnecting",
			"error", err,
			"wait", wait,
		)

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(wait):
		}

		if !healthy {
			wait = min(wait*2, s.cfg.ReconnectMaxWait)
		}
	}
}

// session runs one connection until it fails. healthy reports whether any
// data arrived, which resets the reconnect backoff.
func (s *Stream) session() (healthy bool, err error) {
	c := s.newClient(s.cfg.Client, s.logger)

	if err := c.Connect(s.ctx); err != nil {
		s.mu.Lock()
		s.stats.Failures++
		s.mu.Unlock()
		return false, fmt.Errorf("connect: %w", err)
	}

	s.mu.Lock()
	s.client = c
	s.stats.Connected = true
	s.stats.Connects++
	s.mu.Unlock()

	defer func() {
		c.Close()
		s.mu.Lock()
		s.client = nil
		s.stats.Connected = false
		s.mu.Unlock()
	}()

	for {
		select {
		case <-s.ctx.Done():
			return healthy, nil
		case err := <-c.Errors():
			s.mu.Lock()
			s.stats.Failures++
			s.mu.Unlock()
			for {
				select {
				case msg := <-c.Messages():
					healthy = true
					s.forward(msg)
				default:
					return healthy, err
				}
			}
		case msg := <-c.Messages():
			healthy = true
			s.forward(msg)
		}
	}
}

func (s *Stream) forward(msg TimestampedMessage) {
	s.mu.Lock()
	s.stats.Messages++
	s.stats.LastReadAt = msg.ReceivedAt
	s.mu.Unlock()

	select {
	case s.out <- msg:
	default:
		s.mu.Lock()
		s.stats.Dropped++
		s.mu.Unlock()
		s.logger.Warnw("stream output full, dropping message")
	}
}
