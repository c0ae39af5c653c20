// Package accrual запускает по расписанию начисление токенов за наступившие вехи.
//
// Проход защищён блокировкой в redis, поэтому несколько экземпляров воркера
// не выполняют его одновременно.
package accrual

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/subscription-billing/internal/cache"
	"github.com/magabrotheeeer/subscription-billing/internal/config"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	accrualservice "github.com/magabrotheeeer/subscription-billing/internal/services/accrual"
	"github.com/magabrotheeeer/subscription-billing/internal/storage/repository"
)

// lockKey: ключ блокировки прохода.
const lockKey = "accrual:sweep"

// Locker: распределённая блокировка.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (*cache.Lock, error)
	ReleaseLock(ctx context.Context, lock *cache.Lock) error
}

// Runner выполняет один проход начисления.
type Runner interface {
	RunOnce(ctx context.Context, now time.Time) (accrualservice.Result, error)
}

// Sweeper выполняет проход под блокировкой.
type Sweeper struct {
	runner  Runner
	locker  Locker
	lockTTL time.Duration
	log     *slog.Logger
	now     func() time.Time
}

// NewSweeper создает Sweeper.
func NewSweeper(runner Runner, locker Locker, lockTTL time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{
		runner:  runner,
		locker:  locker,
		lockTTL: lockTTL,
		log:     log,
		now:     time.Now,
	}
}

// Sweep захватывает блокировку и запускает проход. Если блокировку держит
// другой экземпляр, проход пропускается без ошибки.
func (s *Sweeper) Sweep(ctx context.Context) (accrualservice.Result, bool, error) {
	const op = "app.accrual.Sweep"
	log := s.log.With(sl.Op(op))

	lock, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
	if errors.Is(err, cache.ErrLockNotAcquired) {
		log.Info("accrual sweep is running elsewhere, skipping")
		return accrualservice.Result{}, false, nil
	}
	if err != nil {
		return accrualservice.Result{}, false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		// ctx может быть уже отменён, блокировку снимаем всё равно
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.ReleaseLock(releaseCtx, lock); err != nil {
			log.Error("failed to release accrual lock", sl.Err(err))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.lockTTL)
	defer cancel()

	res, err := s.runner.RunOnce(ctx, s.now().UTC())
	if err != nil {
		return res, true, fmt.Errorf("%s: %w", op, err)
	}
	return res, true, nil
}

// App: воркер начисления.
type App struct {
	sweeper  *Sweeper
	schedule string
	db       *repository.Storage
	cache    *cache.Cache
	logger   *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	for i := 0; i < 10; i++ {
		err := repository.CheckDatabaseReady(ctx, db)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries")
}

// New подключает хранилище и redis. Миграции применяет billing-api.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(ctx, db); err != nil {
		_ = db.DB.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.Redis)
	if err != nil {
		_ = db.DB.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	engine := accrualservice.NewEngine(db, logger)
	return &App{
		sweeper:  NewSweeper(engine, cacheRedis, cfg.Accrual.LockTTL, logger),
		schedule: cfg.Accrual.Schedule,
		db:       db,
		cache:    cacheRedis,
		logger:   logger,
	}, nil
}

// Run выполняет проход сразу и затем по расписанию до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	job := func() {
		if _, _, err := a.sweeper.Sweep(ctx); err != nil {
			a.logger.Error("accrual sweep failed", sl.Err(err))
		}
	}
	if _, err := c.AddFunc(a.schedule, job); err != nil {
		return fmt.Errorf("invalid accrual schedule %q: %w", a.schedule, err)
	}

	job()
	c.Start()
	a.logger.Info("accrual worker started", slog.String("schedule", a.schedule))

	<-ctx.Done()
	a.logger.Info("shutting down accrual worker")
	<-c.Stop().Done()

	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", sl.Err(err))
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
	return nil
}
