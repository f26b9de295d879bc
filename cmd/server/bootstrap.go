package main

import (
	"time"

	"github.com/sudo-adi/bs-server-sub001/internal/config"
	"github.com/sudo-adi/bs-server-sub001/internal/models"
	"github.com/sudo-adi/bs-server-sub001/internal/services"
	"github.com/sudo-adi/bs-server-sub001/internal/utils"
	"github.com/sudo-adi/bs-server-sub001/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds every initialized service needed by the commands.
type appServices struct {
	cfg          *config.Config
	db           *gorm.DB
	loc          *time.Location
	hub          *services.SSEHub
	taskQueue    services.TaskQueue
	worker       *services.Worker
	locker       services.Locker
	search       *services.MeiliProfileSearch
	profileIndex *services.ProfileIndexService
	logs         *services.SystemLogService
	stages       *services.ProjectStageService
	availability *services.AvailabilityService
	assignments  *services.AssignmentService
	matching     *services.MatchingService
	scheduler    *services.ProjectScheduler
}

// openDatabase connects and migrates; every command needs it.
func openDatabase(cfg *config.Config) *gorm.DB {
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(models.GetDB()); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	return models.GetDB()
}

func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn().Err(err).Str("timezone", name).Msg("Unknown timezone, using UTC")
		return time.UTC
	}
	return loc
}

// bootstrap wires the database, lock, search index, queue and services.
// Background loops (worker, scheduler) start only when startBackground is set.
func bootstrap(cfg *config.Config, startBackground bool) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	db := openDatabase(cfg)
	loc := loadLocation(cfg.Calendar.Timezone)
	svc := &appServices{cfg: cfg, db: db, loc: loc, hub: services.NewSSEHub()}

	// Worker locks: Redis when enabled, otherwise in-process
	svc.locker = services.NewLocalLocker()
	if cfg.Redis.Enabled {
		redisLocker, err := services.NewRedisLocker(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis lock unavailable, using in-process locks")
		} else {
			svc.locker = redisLocker
		}
	}

	// Profile search: Meilisearch when configured, otherwise database LIKE
	var searcher services.ProfileSearcher
	var indexer services.ProfileIndexer
	if cfg.Search.URL != "" {
		svc.search = services.NewMeiliProfileSearch(cfg.Search.URL, cfg.Search.APIKey, cfg.Search.Index)
		searcher = svc.search
		indexer = svc.search
	}
	svc.profileIndex = services.NewProfileIndexService(db, indexer)

	// Task queue (uses Redis if enabled, otherwise sync mode)
	svc.taskQueue = services.NewTaskQueue(cfg)
	if syncQueue, ok := svc.taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(svc.profileIndex.ProcessReindexTask)
	}
	if startBackground && svc.taskQueue.IsAsync() {
		svc.worker = services.NewWorker(&cfg.Redis)
		if svc.worker != nil {
			svc.worker.SetProcessor(svc.profileIndex.ProcessReindexTask)
			if err := svc.worker.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start reindex worker")
			}
		}
	}

	notifier := services.NewChangeNotifier(svc.hub, svc.taskQueue)
	calendar := services.NewWorkdayCalendar(cfg.Calendar.Country, loc)
	txTimeout := cfg.Database.TxTimeout()

	svc.logs = services.NewSystemLogService(db)
	svc.stages = services.NewProjectStageService(db, notifier, txTimeout)
	svc.availability = services.NewAvailabilityService(db, calendar, searcher, loc)
	svc.assignments = services.NewAssignmentService(db, svc.availability, svc.locker, notifier, txTimeout)
	svc.matching = services.NewMatchingService(svc.assignments)

	schedulerLoc := loadLocation(cfg.Scheduler.Timezone)
	svc.scheduler = services.NewProjectScheduler(db, svc.stages, svc.logs, schedulerLoc, cfg.Scheduler.LogRetentionDays)
	if startBackground && cfg.Scheduler.Enabled {
		if err := svc.scheduler.Start(cfg.Scheduler.Schedule); err != nil {
			logger.Error().Err(err).Msg("Failed to start project scheduler")
		}
	}

	return svc
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close task queue")
		}
	}
	if closer, ok := s.locker.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close lock client")
		}
	}
	if s.search != nil {
		s.search.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info().Msg("All services stopped")
}
