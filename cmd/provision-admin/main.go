// Команда provision-admin применяет миграции и создаёт администратора из переменных окружения.
// Повторный запуск ничего не меняет.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/magabrotheeeer/subscription-billing/internal/config"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/migrations"
	"github.com/magabrotheeeer/subscription-billing/internal/services/provisioning"
	"github.com/magabrotheeeer/subscription-billing/internal/storage/repository"
)

type adminEnv struct {
	Email    string `env:"ADMIN_EMAIL" env-required:"true"`
	Username string `env:"ADMIN_USERNAME"`
	Password string `env:"ADMIN_PASSWORD" env-required:"true"`
}

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)

	var admin adminEnv
	if err := cleanenv.ReadEnv(&admin); err != nil {
		logger.Error("failed to read admin settings", sl.Err(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		logger.Error("failed to connect storage", sl.Err(err))
		os.Exit(1)
	}
	defer db.DB.Close()

	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		logger.Error("failed to run migrations", sl.Err(err))
		os.Exit(1)
	}

	created, err := provisioning.New(db, logger).EnsureAdmin(ctx, provisioning.Admin{
		Email:    admin.Email,
		Username: admin.Username,
		Password: admin.Password,
	})
	if err != nil {
		logger.Error("failed to provision admin", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("admin provisioning finished", slog.Bool("created", created))
}
