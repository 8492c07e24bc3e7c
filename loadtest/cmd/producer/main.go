package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/types"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	target       string
	subscription string
	batchSize    int
	pushRate     int
	duration     time.Duration
	concurrency  int
	malformed    float64
)

func init() {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	flag.StringVar(&target, "url", getEnv("WEBHOOK_URL", "http://localhost:8080/gmail-event"), "Webhook URL")
	flag.StringVar(&subscription, "subscription", getEnv("PUSH_SUBSCRIPTION", "projects/loadtest/subscriptions/gmail-push"), "Subscription name placed in every envelope")
	flag.IntVar(&batchSize, "batch", 0, "Number of pushes to send (0 = infinite)")
	flag.IntVar(&pushRate, "rate", 0, "Pushes per second (0 = as fast as possible)")
	flag.DurationVar(&duration, "duration", 0, "Duration to run (e.g., 30s, 5m). If set, overrides batch")
	flag.IntVar(&concurrency, "concurrency", 16, "Maximum in-flight requests")
	flag.Float64Var(&malformed, "malformed", 0, "Share of pushes sent with a corrupted payload (0..1)")
	flag.Parse()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// stats counts responses by HTTP status code; 0 stands for transport errors
type stats struct {
	mu     sync.Mutex
	counts map[int]int64
	sent   int64
}

func (s *stats) record(status int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[status]++
	s.sent++
	return s.sent
}

func (s *stats) fields() []zap.Field {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := make([]int, 0, len(s.counts))
	for code := range s.counts {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	fields := []zap.Field{zap.Int64("total_sent", s.sent)}
	for _, code := range codes {
		fields = append(fields, zap.Int64(fmt.Sprintf("status_%d", code), s.counts[code]))
	}
	return fields
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if concurrency <= 0 {
		logger.Fatal("concurrency must be greater than 0", zap.Int("concurrency", concurrency))
	}
	if malformed < 0 || malformed > 1 {
		logger.Fatal("malformed share must be within [0, 1]", zap.Float64("malformed", malformed))
	}

	logger.Info("Starting push producer",
		zap.String("url", target),
		zap.Int("batch_size", batchSize),
		zap.Int("rate", pushRate),
		zap.Duration("duration", duration),
		zap.Int("concurrency", concurrency),
		zap.Float64("malformed", malformed),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	client := &http.Client{Timeout: 10 * time.Second}
	st := &stats{counts: make(map[int]int64)}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if pushRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(pushRate), 1)
	}

	var wg sync.WaitGroup
	slots := make(chan struct{}, concurrency)

	for issued := 0; batchSize == 0 || duration > 0 || issued < batchSize; issued++ {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		select {
		case <-ctx.Done():
		case slots <- struct{}{}:
		}
		if ctx.Err() != nil {
			break
		}

		body, err := buildPush(rand.Float64() < malformed)
		if err != nil {
			logger.Error("Failed to build push", zap.Error(err))
			<-slots
			continue
		}

		wg.Add(1)
		go func(body []byte) {
			defer wg.Done()
			defer func() { <-slots }()

			status := send(ctx, client, body)
			if status == 0 && ctx.Err() != nil {
				return
			}
			if n := st.record(status); n%100 == 0 {
				logger.Info("Sent pushes", st.fields()...)
			}
		}(body)
	}

	wg.Wait()
	logger.Info("Producer stopped", st.fields()...)
}

// buildPush returns a push envelope with a random notification. A corrupt
// push carries a payload that fails decoding at a random stage.
func buildPush(corrupt bool) ([]byte, error) {
	n := types.Notification{
		EmailAddress: fmt.Sprintf("user%d@example.com", rand.IntN(1000)),
		HistoryID:    fmt.Sprintf("%d", rand.Int64N(1_000_000_000)),
	}

	data, err := pipeline.EncodeNotification(n)
	if err != nil {
		return nil, err
	}
	if corrupt {
		data = corruptData()
	}

	return json.Marshal(types.Envelope{
		Message: types.Message{
			Data:        data,
			MessageID:   uuid.NewString(),
			PublishTime: time.Now().UTC().Format(time.RFC3339Nano),
		},
		Subscription: subscription,
	})
}

func corruptData() string {
	switch rand.IntN(3) {
	case 0:
		return "not-valid-base64!!"
	case 1:
		return "//4="
	default:
		// {"email_address":"x@example.com"} without history_id
		return "eyJlbWFpbF9hZGRyZXNzIjoieEBleGFtcGxlLmNvbSJ9"
	}
}

func send(ctx context.Context, client *http.Client, body []byte) int {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	return resp.StatusCode
}
