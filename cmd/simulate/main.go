package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-scheduling/internal/api"
	"github.com/hackgods/clinic-slot-scheduling/internal/observability"
	"github.com/hackgods/clinic-slot-scheduling/internal/schedule"
	"github.com/hackgods/clinic-slot-scheduling/internal/session"
)

// The simulator races many workers against the same free slots of a running
// api-server. Every slot should be confirmed at most once; the rest of the
// attempts must come back as 409.
type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	ReadRatio   float64
	CancelRatio float64
	Type        schedule.AppointmentType
	Days        int
	Timezone    string
}

// SlotPool holds the slots the workers fight over and the ones they won.
type SlotPool struct {
	Free   []schedule.Slot
	mu     sync.Mutex
	booked map[time.Time]int
	won    []schedule.Slot
}

func (sp *SlotPool) Booked(slot schedule.Slot) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.booked[slot.Start]++
	sp.won = append(sp.won, slot)
}

// TakeWon pops a random confirmed slot so it can be cancelled and raced again.
func (sp *SlotPool) TakeWon(rng *rand.Rand) (schedule.Slot, bool) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if len(sp.won) == 0 {
		return schedule.Slot{}, false
	}
	i := rng.Intn(len(sp.won))
	slot := sp.won[i]
	sp.won = append(sp.won[:i], sp.won[i+1:]...)
	sp.booked[slot.Start]--
	return slot, true
}

// Overbooked counts slots that currently hold more than one confirmation.
func (sp *SlotPool) Overbooked() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	n := 0
	for _, c := range sp.booked {
		if c > 1 {
			n++
		}
	}
	return n
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, fastest, slowest, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	fastest = latencies[0]
	slowest = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, fastest, slowest, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking      OperationMetrics
	Cancel       OperationMetrics
	Availability OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *SlotPool
	client  *http.Client
	loc     *time.Location
	logger  zerolog.Logger
	metrics Metrics
}

func main() {
	_ = godotenv.Load()
	logger := observability.NewLogger("clinic-simulate", getEnv("APP_ENV", "development"), getEnv("LOG_LEVEL", "info"))

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("load timezone")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Str("type", string(cfg.Type)).
		Float64("read_ratio", cfg.ReadRatio).
		Float64("cancel_ratio", cfg.CancelRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 20 * time.Second},
		loc:    loc,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	pool, err := sim.loadSlotPool(ctx)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("load free slots")
	}
	sim.pool = pool
	logger.Info().Int("slots", len(pool.Free)).Msg("loaded free slots")

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		ReadRatio:   getFloat("SIM_READ_RATIO", 0.3),
		CancelRatio: getFloat("SIM_CANCEL_RATIO", 0.1),
		Type:        schedule.ParseAppointmentType(getEnv("SIM_APPOINTMENT_TYPE", string(schedule.InPersonFollowUp))),
		Days:        getInt("SIM_DAYS", 7),
		Timezone:    getEnv("CLINIC_TIMEZONE", "America/Bogota"),
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.ReadRatio < 0 || cfg.CancelRatio < 0 || cfg.ReadRatio+cfg.CancelRatio >= 1 {
		return fmt.Errorf("SIM_READ_RATIO + SIM_CANCEL_RATIO must be in [0, 1)")
	}
	return nil
}

func (s *Simulator) loadSlotPool(ctx context.Context) (*SlotPool, error) {
	var body api.AvailabilityResponse
	if err := s.getJSON(ctx, s.availabilityURL(), &body); err != nil {
		return nil, err
	}

	pool := &SlotPool{booked: make(map[time.Time]int)}
	for _, day := range body.Days {
		pool.Free = append(pool.Free, day.FreeSlots...)
	}
	if len(pool.Free) == 0 {
		return nil, fmt.Errorf("no free %s slots in the next %d days", s.config.Type, s.config.Days)
	}
	return pool, nil
}

func (s *Simulator) availabilityURL() string {
	q := url.Values{}
	q.Set("type", string(s.config.Type))
	q.Set("days", strconv.Itoa(s.config.Days))
	return s.config.APIBaseURL + "/availability?" + q.Encode()
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.ReadRatio:
			s.doAvailability(ctx)
		case r < s.config.ReadRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			s.doBooking(ctx, rng)
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Free[rng.Intn(len(s.pool.Free))]
	req := api.CreateAppointmentRequest{
		ConversationID: "sim-" + uuid.NewString(),
		Type:           string(s.config.Type),
		Start:          slot.Start.In(s.loc).Format("2006-01-02T15:04"),
		Patient:        fakePatient(),
	}

	start := time.Now()
	status, err := s.postJSON(ctx, "/appointments", req)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	success := err == nil && status == http.StatusCreated
	conflict := err == nil && status == http.StatusConflict
	if success {
		s.pool.Booked(slot)
	}
	if err == nil && !success && !conflict {
		s.logger.Debug().Int("status", status).Time("start", slot.Start).Msg("unexpected booking status")
	}
	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	slot, ok := s.pool.TakeWon(rng)
	if !ok {
		return
	}
	local := slot.Start.In(s.loc)

	start := time.Now()
	status, err := s.postJSON(ctx, "/appointments/cancel", api.CancelAppointmentRequest{
		Date: local.Format("2006-01-02"),
		Time: local.Format("15:04"),
	})
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	s.metrics.Cancel.Record(latency, err == nil && status == http.StatusOK, err == nil && status == http.StatusNotFound)
}

func (s *Simulator) doAvailability(ctx context.Context) {
	var body api.AvailabilityResponse
	start := time.Now()
	err := s.getJSON(ctx, s.availabilityURL(), &body)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Availability.Record(latency, err == nil, false)
}

func (s *Simulator) postJSON(ctx context.Context, path string, v any) (int, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (s *Simulator) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func fakePatient() session.Profile {
	return session.Profile{
		Name:       gofakeit.Name(),
		NationalID: gofakeit.Numerify("10########"),
		Insurer:    gofakeit.RandomString([]string{"Particular", "Colsanitas", "Sura", "Sanitas", "Allianz"}),
		Email:      gofakeit.Email(),
		Phone:      gofakeit.Numerify("+57300#######"),
		Address:    gofakeit.Street(),
		City:       gofakeit.RandomString([]string{"Barranquilla", "Bogotá", "Medellín", "Cartagena"}),
	}
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("BOOKING RACE REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Slots raced: %d (%s)\n", len(s.pool.Free), s.config.Type)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Availability", &s.metrics.Availability)

	if n := s.pool.Overbooked(); n > 0 {
		fmt.Printf("DOUBLE BOOKINGS: %d slots confirmed more than once\n", n)
		os.Exit(1)
	}
	fmt.Println("No slot was confirmed twice.")
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, fastest, slowest, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), fastest.Round(time.Millisecond), slowest.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
