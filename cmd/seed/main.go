package main

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-scheduling/internal/appointment"
	"github.com/hackgods/clinic-slot-scheduling/internal/availability"
	"github.com/hackgods/clinic-slot-scheduling/internal/calendar"
	"github.com/hackgods/clinic-slot-scheduling/internal/config"
	"github.com/hackgods/clinic-slot-scheduling/internal/db"
	"github.com/hackgods/clinic-slot-scheduling/internal/observability"
	redisclient "github.com/hackgods/clinic-slot-scheduling/internal/redis"
	"github.com/hackgods/clinic-slot-scheduling/internal/schedule"
	"github.com/hackgods/clinic-slot-scheduling/internal/session"
)

// seed fills a test calendar with staff blocks and fake bookings so the
// availability endpoints have something realistic to work around. Bookings go
// through the real booking service, so they land in the audit log too.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := observability.NewLogger("clinic-seed", cfg.Env, cfg.LogLevel)

	if cfg.CalendarBackend != config.BackendGoogle {
		logger.Fatal().Msg("seed writes to a real calendar: set CALENDAR_BACKEND=google")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	gateway, err := calendar.NewGoogleGateway(ctx, calendar.GoogleConfig{
		CalendarID:      cfg.GoogleCalendarID,
		CredentialsFile: cfg.GoogleCredentialsFile,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		Timeout:         cfg.CalendarTimeout,
		Location:        cfg.Location,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect calendar")
	}

	var recorder appointment.EventRecorder = appointment.NopRecorder{}
	if cfg.PostgresDSN != "" {
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect postgres")
		}
		defer pool.Close()
		recorder = appointment.NewPgRepository(pool)
	}

	policy := cfg.Policy()
	days := getInt("SEED_DAYS", 14)
	if days <= 0 {
		days = 14
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	blocks, err := seedBlocks(ctx, gateway, policy, days, getInt("SEED_BLOCKS", 3), rng, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed blocks")
	}

	resolver := availability.NewResolver(policy, gateway, availability.Options{
		Workers: cfg.AvailabilityWorkers,
		Logger:  logger,
	})
	svc := appointment.NewService(policy, gateway, redisclient.NewLocalLocker(), appointment.Options{
		Location:      cfg.ClinicLocation,
		ExcludedPlans: appointment.ParseExcludedPlans(cfg.ExcludedPlans),
		Recorder:      recorder,
		Logger:        logger,
	})

	booked, err := seedBookings(ctx, resolver, svc, days, getInt("SEED_BOOKINGS", 20), rng, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed bookings")
	}

	logger.Info().Int("blocks", blocks).Int("bookings", booked).Msg("seed complete")
}

// seedBlocks inserts one-hour staff blocks at random window starts.
func seedBlocks(ctx context.Context, gw calendar.Gateway, policy *schedule.Policy, days, count int, rng *rand.Rand, logger zerolog.Logger) (int, error) {
	today := policy.Day(time.Now())
	inserted := 0
	for attempt := 0; inserted < count && attempt < count*10; attempt++ {
		day := today.AddDate(0, 0, 1+rng.Intn(days))
		windows := policy.WindowsFor(day, schedule.InPersonFollowUp)
		if len(windows) == 0 {
			continue
		}
		w := windows[rng.Intn(len(windows))]

		ev, err := gw.InsertEvent(ctx, calendar.NewEvent{
			Summary:     "Bloqueo de agenda",
			Description: "Reunión con " + gofakeit.Company(),
			Start:       w.Start,
			End:         w.Start.Add(time.Hour),
		})
		if err != nil {
			return inserted, err
		}
		inserted++
		logger.Debug().Str("event_id", ev.ID).Time("start", ev.Start).Msg("block inserted")
	}
	return inserted, nil
}

var seedTypes = []schedule.AppointmentType{
	schedule.FirstVisit,
	schedule.InPersonFollowUp,
	schedule.VirtualFollowUp,
	schedule.GuidedBiopsy,
}

func seedBookings(ctx context.Context, resolver *availability.Resolver, svc *appointment.Service, days, count int, rng *rand.Rand, logger zerolog.Logger) (int, error) {
	booked := 0
	for i := 0; i < count; i++ {
		t := seedTypes[rng.Intn(len(seedTypes))]
		out, err := resolver.ResolveRange(ctx, t, time.Now(), days)
		if err != nil {
			return booked, err
		}
		var free []schedule.Slot
		for _, d := range out {
			free = append(free, d.FreeSlots...)
		}
		if len(free) == 0 {
			logger.Warn().Str("type", string(t)).Msg("no free slots left")
			continue
		}
		slot := free[rng.Intn(len(free))]

		conf, err := svc.Book(ctx, appointment.BookingRequest{
			ConversationID: "seed-" + uuid.NewString(),
			Type:           t,
			Start:          slot.Start.Format(time.RFC3339),
			Patient:        fakePatient(rng),
		})
		switch {
		case errors.Is(err, appointment.ErrSlotTaken), errors.Is(err, appointment.ErrExcludedPlan):
			logger.Debug().Err(err).Msg("skipped booking")
			continue
		case err != nil:
			return booked, err
		}
		booked++
		logger.Info().Str("event_id", conf.EventID).Str("type", string(t)).Time("start", conf.Start).Msg("booking seeded")
	}
	return booked, nil
}

var insurers = []string{"Particular", "Colsanitas", "Sura", "Sanitas", "Allianz", "Coomeva"}

func fakePatient(rng *rand.Rand) session.Profile {
	return session.Profile{
		Name:          gofakeit.Name(),
		NationalID:    strconv.Itoa(1000000000 + rng.Intn(99999999)),
		Insurer:       insurers[rng.Intn(len(insurers))],
		Email:         gofakeit.Email(),
		Phone:         gofakeit.Numerify("+57300#######"),
		Address:       gofakeit.Street(),
		City:          gofakeit.City(),
		BirthDate:     gofakeit.Date().Format("2006-01-02"),
		BloodType:     gofakeit.RandomString([]string{"O+", "O-", "A+", "A-", "B+", "AB+"}),
		MaritalStatus: gofakeit.RandomString([]string{"soltero", "casado", "union libre"}),
	}
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
