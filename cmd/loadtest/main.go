package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"playerhub/internal/logging"
)

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

type settings struct {
	baseURL        string
	users          int
	messagesPerSec int
	duration       time.Duration
	batchSize      int
}

type OperationType int

const (
	WriteOperation OperationType = iota
	ReadOperation
)

// Stats collects latencies. Write latency is the time from sending a direct
// message over the socket to receiving its echo; read latency is a history fetch.
type Stats struct {
	sync.Mutex
	totalRequests     int64
	successRequests   int64
	failedRequests    int64
	totalLatency      time.Duration
	maxLatency        time.Duration
	minLatency        time.Duration
	requestsPerSecond float64
	writeLatencies    []time.Duration
	readLatencies     []time.Duration
}

func (s *Stats) recordSuccess(latency time.Duration, opType OperationType) {
	s.Lock()
	defer s.Unlock()
	s.totalRequests++
	s.successRequests++
	s.totalLatency += latency
	if latency > s.maxLatency {
		s.maxLatency = latency
	}
	if s.minLatency == 0 || latency < s.minLatency {
		s.minLatency = latency
	}

	switch opType {
	case WriteOperation:
		s.writeLatencies = append(s.writeLatencies, latency)
	case ReadOperation:
		s.readLatencies = append(s.readLatencies, latency)
	}
}

func (s *Stats) recordError() {
	s.Lock()
	defer s.Unlock()
	s.totalRequests++
	s.failedRequests++
}

func (s *Stats) calculateStats(duration time.Duration) {
	s.Lock()
	defer s.Unlock()
	s.requestsPerSecond = float64(s.totalRequests) / duration.Seconds()
}

func p99(latencies []time.Duration) time.Duration {
	if len(latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func (s *Stats) getP99WriteLatency() time.Duration {
	s.Lock()
	defer s.Unlock()
	return p99(s.writeLatencies)
}

func (s *Stats) getP99ReadLatency() time.Duration {
	s.Lock()
	defer s.Unlock()
	return p99(s.readLatencies)
}

func postJSON(url string, payload any) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return http.Post(url, "application/json", bytes.NewBuffer(data))
}

// registerUser registers a load test user, logging in instead when a previous run
// already created it.
func registerUser(cfg settings, id int) (*User, error) {
	creds := map[string]string{
		"username": fmt.Sprintf("loadtest_user_%d", id),
		"password": "testpass123",
	}

	resp, err := postJSON(cfg.baseURL+"/api/auth/register", creds)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusConflict {
		resp.Body.Close()
		if resp, err = postJSON(cfg.baseURL+"/api/auth/login", creds); err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("registration failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	result.User.Token = result.Token
	return &result.User, nil
}

type simulation struct {
	cfg    settings
	users  []*User
	stats  *Stats
	logger *zap.SugaredLogger
	client *http.Client
}

func (sim *simulation) dial(user *User) (*websocket.Conn, error) {
	url := "ws" + strings.TrimPrefix(sim.cfg.baseURL, "http") + "/ws"
	header := http.Header{"Authorization": []string{"Bearer " + user.Token}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	return conn, err
}

func (sim *simulation) run(user *User, wg *sync.WaitGroup) {
	defer wg.Done()

	conn, err := sim.dial(user)
	if err != nil {
		sim.stats.recordError()
		sim.logger.Warnw("websocket dial failed", "user_id", user.ID, "error", err)
		return
	}
	defer conn.Close()

	var mu sync.Mutex
	pending := make(map[string]time.Time)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			var frame struct {
				Type       string `json:"type"`
				FromUserID int64  `json:"fromUserId"`
				Content    string `json:"content"`
			}
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Type != "message" || frame.FromUserID != user.ID {
				continue
			}
			mu.Lock()
			sent, ok := pending[frame.Content]
			delete(pending, frame.Content)
			mu.Unlock()
			if ok {
				sim.stats.recordSuccess(time.Since(sent), WriteOperation)
			}
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(sim.cfg.messagesPerSec))
	defer ticker.Stop()

	endTime := time.Now().Add(sim.cfg.duration)
	for seq := 0; time.Now().Before(endTime); seq++ {
		<-ticker.C
		peer := sim.users[rand.Intn(len(sim.users))]

		if rand.Float32() < 0.5 {
			content := fmt.Sprintf("load %d/%d at %s", user.ID, seq, time.Now().Format(time.RFC3339Nano))
			mu.Lock()
			pending[content] = time.Now()
			mu.Unlock()

			err := conn.WriteJSON(map[string]any{"type": "message", "toUserId": peer.ID, "content": content})
			if err != nil {
				sim.stats.recordError()
				sim.logger.Warnw("websocket write failed", "user_id", user.ID, "error", err)
				return
			}
			continue
		}

		sim.readHistory(user, peer)
	}

	// Give outstanding echoes a moment, then count the rest as failures.
	time.Sleep(time.Second)
	conn.Close()
	<-readDone
	mu.Lock()
	for range pending {
		sim.stats.recordError()
	}
	mu.Unlock()
}

func (sim *simulation) readHistory(user, peer *User) {
	req, err := http.NewRequest(http.MethodGet,
		fmt.Sprintf("%s/api/messages/%d/%d?limit=50", sim.cfg.baseURL, user.ID, peer.ID), nil)
	if err != nil {
		sim.stats.recordError()
		return
	}
	req.Header.Set("Authorization", "Bearer "+user.Token)

	start := time.Now()
	resp, err := sim.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		sim.stats.recordError()
		sim.logger.Warnw("history request failed", "user_id", user.ID, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		sim.stats.recordError()
		sim.logger.Warnw("history error response", "status", resp.StatusCode)
		return
	}
	sim.stats.recordSuccess(duration, ReadOperation)
}

func registerUsers(cfg settings, logger *zap.SugaredLogger) []*User {
	users := make([]*User, cfg.users)
	var wg sync.WaitGroup
	errChan := make(chan error, cfg.users)

	for i := 0; i < cfg.users; i += cfg.batchSize {
		end := i + cfg.batchSize
		if end > cfg.users {
			end = cfg.users
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for id := start; id < end; id++ {
				user, err := registerUser(cfg, id)
				if err != nil {
					errChan <- fmt.Errorf("failed to register user %d: %w", id, err)
					continue
				}
				users[id] = user
			}
		}(i, end)
	}

	go func() {
		wg.Wait()
		close(errChan)
	}()

	errorCount := 0
	for err := range errChan {
		errorCount++
		if errorCount <= 10 {
			logger.Warn(err)
		}
	}
	if errorCount > 0 {
		logger.Warnf("%d users failed to register", errorCount)
	}

	registered := users[:0]
	for _, user := range users {
		if user != nil {
			registered = append(registered, user)
		}
	}
	return registered
}

func main() {
	var cfg settings
	flag.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "Server base URL")
	flag.IntVar(&cfg.users, "users", 1000, "Number of simulated users")
	flag.IntVar(&cfg.messagesPerSec, "rate", 1, "Operations per second per user")
	flag.DurationVar(&cfg.duration, "duration", time.Minute, "Simulation time")
	flag.IntVar(&cfg.batchSize, "batch", 100, "Users registered per goroutine")
	flag.Parse()

	base, err := logging.New("info")
	if err != nil {
		panic(err)
	}
	defer base.Sync()
	logger := base.Named("loadtest").Sugar()

	if cfg.users < 2 || cfg.messagesPerSec < 1 || cfg.batchSize < 1 {
		logger.Fatal("need at least 2 users, a positive rate and a positive batch size")
	}

	logger.Infof("Starting load test with %d users, %d operations per second per user, for %s",
		cfg.users, cfg.messagesPerSec, cfg.duration)
	logger.Info("Start the server with -loadtest to use a separate database")

	startTime := time.Now()
	users := registerUsers(cfg, logger)
	registrationDuration := time.Since(startTime)
	logger.Infof("Registered %d/%d users in %s (%.2f users/sec)",
		len(users), cfg.users, registrationDuration,
		float64(len(users))/registrationDuration.Seconds())

	if len(users) < cfg.users/2 || len(users) < 2 {
		logger.Fatal("Too many registration failures, aborting load test")
	}

	sim := &simulation{
		cfg:    cfg,
		users:  users,
		stats:  &Stats{},
		logger: logger,
		client: &http.Client{Timeout: 5 * time.Second},
	}

	var wg sync.WaitGroup
	start := time.Now()
	for _, user := range users {
		wg.Add(1)
		go sim.run(user, &wg)
	}
	wg.Wait()
	duration := time.Since(start)

	stats := sim.stats
	stats.calculateStats(duration)

	avg := time.Duration(0)
	if stats.successRequests > 0 {
		avg = stats.totalLatency / time.Duration(stats.successRequests)
	}

	logger.Info("Load Test Results:")
	logger.Infof("Total Requests: %d", stats.totalRequests)
	logger.Infof("Successful Requests: %d", stats.successRequests)
	logger.Infof("Failed Requests: %d", stats.failedRequests)
	logger.Infof("Average Latency: %v", avg)
	logger.Infof("Min Latency: %v", stats.minLatency)
	logger.Infof("Max Latency: %v", stats.maxLatency)
	logger.Infof("P99 Echo Latency: %v", stats.getP99WriteLatency())
	logger.Infof("P99 History Latency: %v", stats.getP99ReadLatency())
	logger.Infof("Requests per Second: %.2f", stats.requestsPerSecond)
	logger.Infof("Total Duration: %v", duration)
}
