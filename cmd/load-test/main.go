// Command load-test opens many dashboard WebSocket connections and reports what they receive
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

var (
	clients       = flag.Int("clients", 500, "Number of concurrent WebSocket clients")
	duration      = flag.Duration("duration", 60*time.Second, "Test duration")
	serverURL     = flag.String("url", "ws://localhost:8080/ws", "Dashboard WebSocket URL")
	rampUp        = flag.Duration("rampup", 10*time.Second, "Time to ramp up all clients")
	printInterval = flag.Duration("print", 5*time.Second, "Statistics print interval")
)

// Stats counts connection events and received messages by type
type Stats struct {
	connected    atomic.Int64
	disconnected atomic.Int64
	errors       atomic.Int64
	refused      atomic.Int64

	mu     sync.Mutex
	byType map[string]int64
}

func (s *Stats) received(msgType string) {
	s.mu.Lock()
	s.byType[msgType]++
	s.mu.Unlock()
}

func (s *Stats) messages() (total int64, byType map[string]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byType = make(map[string]int64, len(s.byType))
	for k, v := range s.byType {
		byType[k] = v
		total += v
	}
	return total, byType
}

func main() {
	flag.Parse()

	u, err := url.Parse(*serverURL)
	if err != nil {
		log.Fatalf("invalid url: %v", err)
	}
	fmt.Printf("load test: %d clients against %s for %v (ramp-up %v)\n", *clients, u, *duration, *rampUp)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	stats := &Stats{byType: make(map[string]int64)}
	var wg sync.WaitGroup

	go reportStats(ctx, stats)

	interval := *rampUp / time.Duration(max(*clients, 1))
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go startClient(ctx, &wg, u, stats)
		if interval > 0 {
			time.Sleep(interval)
		}
	}
	fmt.Printf("all %d clients started\n", *clients)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ctx.Done():
	case <-sigChan:
		fmt.Println("interrupted")
		cancel()
	}
	wg.Wait()

	total, byType := stats.messages()
	fmt.Println("final statistics:")
	fmt.Printf("  connected: %d  refused: %d  errors: %d\n",
		stats.connected.Load(), stats.refused.Load(), stats.errors.Load())
	fmt.Printf("  messages:  %d\n", total)
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("    %-10s %d\n", t, byType[t])
	}
}

func startClient(ctx context.Context, wg *sync.WaitGroup, u *url.URL, stats *Stats) {
	defer wg.Done()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		stats.errors.Add(1)
		return
	}
	stats.connected.Add(1)
	defer stats.disconnected.Add(1)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	first := true
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case first:
				// the hub closes connections over its client limit before sending anything
				stats.refused.Add(1)
			case !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				stats.errors.Add(1)
			}
			return
		}
		first = false

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			stats.received("unknown")
			continue
		}
		stats.received(msg.Type)
	}
}

func reportStats(ctx context.Context, stats *Stats) {
	ticker := time.NewTicker(*printInterval)
	defer ticker.Stop()

	var last int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			total, byType := stats.messages()
			active := stats.connected.Load() - stats.disconnected.Load()
			rate := float64(total-last) / printInterval.Seconds()
			fmt.Printf("[stats] active: %d | messages: %d (+%d, %.1f/s) | snapshots: %d | transfers: %d | errors: %d\n",
				active, total, total-last, rate, byType["snapshot"], byType["transfers"], stats.errors.Load())
			last = total
		}
	}
}
