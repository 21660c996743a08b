// Command seriesdemo creates a weekly event series, shifts the time of every
// member and prints the result as iCalendar.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/mo"

	"github.com/cyp0633/libseries/config"
	"github.com/cyp0633/libseries/notify"
	"github.com/cyp0633/libseries/recurrence"
	"github.com/cyp0633/libseries/series"
	"github.com/cyp0633/libseries/storage"
	"github.com/cyp0633/libseries/storage/memory"
	"github.com/cyp0633/libseries/storage/sqlstore"
)

const (
	defaultConfigPath = "series.yaml"
	demoActor         = "demo-editor"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to the YAML config file")
	icsPath := flag.String("ics", "", "optional .ics file with a VEVENT+RRULE to use as template")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer closeStore()

	publisher := openPublisher(cfg, logger)

	engine := series.NewEngine(store,
		series.WithLogger(logger),
		series.WithEngineConfig(cfg.EngineConfig()))
	defer engine.Close()
	applier := series.NewApplier(store, publisher, logger)

	template, err := loadTemplate(*icsPath, cfg.DefaultTimezone)
	if err != nil {
		log.Fatalf("load template: %v", err)
	}

	ctx := context.Background()
	if err := run(ctx, engine, applier, store, template); err != nil {
		log.Fatalf("demo failed: %v", err)
	}
}

func run(ctx context.Context, engine *series.Engine, applier *series.Applier, store storage.Store, template storage.Event) error {
	created, err := engine.Create(template, demoActor)
	if err != nil {
		return fmt.Errorf("create series: %w", err)
	}
	if err := applier.Apply(ctx, created); err != nil {
		return fmt.Errorf("store series: %w", err)
	}
	if len(created.Created) < 2 {
		return fmt.Errorf("expected a series, got %d event(s)", len(created.Created))
	}

	// move every member to 14:00-15:30 on its own date
	second := created.Created[1]
	dates := second.Dates
	dates.Start = series.TimeOfDay{Hour: 14}.On(dates.Start)
	dates.End = series.TimeOfDay{Hour: 15, Minute: 30}.On(dates.End)

	update, err := engine.ResolveUpdate(ctx, second, series.Updates{Dates: mo.Some(dates)}, series.ScopeAll, demoActor)
	if err != nil {
		return fmt.Errorf("resolve update: %w", err)
	}
	if err := applier.Apply(ctx, update); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}

	members, err := store.ListSeries(ctx, second.RecurrenceID, "")
	if err != nil {
		return fmt.Errorf("list series: %w", err)
	}
	if err := storage.MarkLinked(ctx, store, members); err != nil {
		return err
	}
	for _, m := range members {
		if m.HasLinkedItems {
			log.Printf("event %s has linked planning items", m.ID)
		}
	}
	ics, err := storage.EventsToICS(members, time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Print(ics)
	return nil
}

func openStore(cfg *config.Config, logger *slog.Logger) (storage.Store, func(), error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		store, err := sqlstore.Open(cfg.Storage.DSN, sqlstore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("close store", "error", err)
			}
		}, nil
	default:
		return memory.New(memory.WithLogger(logger)), func() {}, nil
	}
}

func openPublisher(cfg *config.Config, logger *slog.Logger) notify.Publisher {
	if cfg.Notify.Driver == "redis" {
		if cfg.Notify.RedisAddr == "" {
			logger.Warn("notify driver is redis but redis_addr is empty; falling back to log")
			return notify.NewLogPublisher(logger)
		}
		return notify.NewRedisPublisher(&redis.Options{
			Addr:     cfg.Notify.RedisAddr,
			Password: cfg.Notify.RedisPassword,
			DB:       cfg.Notify.RedisDB,
		}, cfg.Notify.Channel)
	}
	return notify.NewLogPublisher(logger)
}

func loadTemplate(icsPath, defaultTZ string) (storage.Event, error) {
	var template storage.Event
	if icsPath != "" {
		data, err := os.ReadFile(icsPath)
		if err != nil {
			return storage.Event{}, err
		}
		template, err = storage.TemplateFromICS(string(data))
		if err != nil {
			return storage.Event{}, err
		}
	} else {
		start := nextMonday(time.Now().UTC())
		template = storage.Event{
			Dates: storage.Dates{
				Start: start,
				End:   start.Add(time.Hour),
				Rule: &recurrence.Rule{
					Frequency:     recurrence.Weekly,
					Interval:      1,
					EndRepeatMode: recurrence.EndByCount,
					Count:         4,
					ByDay:         "MO",
				},
			},
			Metadata: map[string]any{
				"name":     "City council meeting",
				"slugline": "COUNCIL",
			},
		}
	}
	if template.Dates.TZ == "" {
		template.Dates.TZ = defaultTZ
	}
	return template, nil
}

func nextMonday(from time.Time) time.Time {
	days := (int(time.Monday) - int(from.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	d := from.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 0, 0, 0, time.UTC)
}
