package hyperliquid

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"whaleflow/config"
	"whaleflow/logger"

	"github.com/gorilla/websocket"
)

// MidsStream keeps a live map of mid prices from the allMids websocket
// channel. It reconnects with backoff until the context is cancelled and
// degrades gracefully; callers fall back to snapshot prices when a coin is
// missing.
type MidsStream struct {
	url     string
	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	mids    map[string]float64
	log     *logger.Log
}

func NewMidsStream(cfg *config.Config) *MidsStream {
	url := strings.TrimSpace(cfg.Source.Hyperliquid.WsURL)
	if url == "" {
		url = defaultWsURL
	}
	return &MidsStream{
		url:  url,
		wg:   &sync.WaitGroup{},
		mids: make(map[string]float64),
		log:  logger.GetLogger(),
	}
}

// Start launches the stream worker. It returns an error when the stream is
// already running.
func (s *MidsStream) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("mids stream already running")
	}
	s.running = true
	s.ctx = ctx
	s.mu.Unlock()

	s.log.WithComponent("hyperliquid_mids").Info("starting mids stream")
	s.wg.Add(1)
	go s.stream()
	return nil
}

// Stop waits for the stream worker to exit. Cancel the Start context first.
func (s *MidsStream) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.log.WithComponent("hyperliquid_mids").Info("mids stream stopped")
}

// Mid returns the latest mid price for a coin.
func (s *MidsStream) Mid(coin string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.mids[coin]
	return v, ok
}

func (s *MidsStream) stream() {
	defer s.wg.Done()

	log := s.log.WithComponent("hyperliquid_mids").WithFields(logger.Fields{
		"worker": "all_mids_stream",
	})

	for {
		if s.ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(s.ctx, s.url, nil)
		if err != nil {
			log.WithError(err).Warn("failed to connect to mids websocket, retrying")
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-s.ctx.Done():
				return
			}
		}

		subMsg := map[string]any{
			"method": "subscribe",
			"subscription": map[string]string{
				"type": "allMids",
			},
		}
		if err := conn.WriteJSON(subMsg); err != nil {
			log.WithError(err).Warn("failed to send mids subscription, reconnecting")
			_ = conn.Close()
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-s.ctx.Done():
				return
			}
		}

		conn.SetReadDeadline(time.Now().Add(75 * time.Second))

	loop:
		for {
			if s.ctx.Err() != nil {
				_ = conn.Close()
				break loop
			}

			var msg struct {
				Channel string `json:"channel"`
				Data    struct {
					Mids map[string]string `json:"mids"`
				} `json:"data"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				_ = conn.Close()
				log.WithError(err).Warn("mids stream error, reconnecting")
				break loop
			}
			conn.SetReadDeadline(time.Now().Add(75 * time.Second))

			if msg.Channel != "allMids" || len(msg.Data.Mids) == 0 {
				continue // subscribe ack, pong etc
			}
			s.apply(msg.Data.Mids)
		}

		select {
		case <-time.After(2 * time.Second):
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *MidsStream) apply(mids map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for coin, raw := range mids {
		// the feed prefixes spot pairs with "@", perps use the bare coin name
		if strings.HasPrefix(coin, "@") {
			continue
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			s.mids[coin] = v
		}
	}
}
