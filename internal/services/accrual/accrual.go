// Package accrual начисляет токены возврата по вехам возраста пакета.
package accrual

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/month"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/metrics"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Repository: операции хранилища, нужные движку начислений.
type Repository interface {
	ListAccrualCandidates(ctx context.Context) ([]models.AccrualCandidate, error)
	AccrueMilestone(ctx context.Context, packageID, milestone string, percent, amount decimal.Decimal) (bool, error)
}

// Result: итог одного прохода.
type Result struct {
	Checked int
	Accrued int
	Failed  int
}

// Engine выполняет проходы начисления.
type Engine struct {
	repo Repository
	log  *slog.Logger
}

// NewEngine создаёт Engine.
func NewEngine(repo Repository, log *slog.Logger) *Engine {
	return &Engine{repo: repo, log: log}
}

// DueMilestones возвращает вехи, которые уже наступили к now и ещё не начислены.
func DueMilestones(c models.AccrualCandidate, now time.Time) []models.Milestone {
	elapsed := month.ElapsedDays(now, c.StartDate)
	accrued := make(map[string]struct{}, len(c.AccruedMilestones))
	for _, tag := range c.AccruedMilestones {
		accrued[tag] = struct{}{}
	}

	var due []models.Milestone
	for _, m := range models.Milestones {
		if elapsed < m.Day {
			break
		}
		if _, ok := accrued[m.Tag]; ok {
			continue
		}
		due = append(due, m)
	}
	return due
}

// MilestoneAmount: сумма начисления: процент от месячной цены плана.
func MilestoneAmount(price, percent decimal.Decimal) decimal.Decimal {
	return price.Mul(percent).Div(hundred).Round(2)
}

// RunOnce проверяет все активные пакеты и начисляет наступившие вехи.
// Ошибка по одному пакету не прерывает проход.
func (e *Engine) RunOnce(ctx context.Context, now time.Time) (Result, error) {
	const op = "accrual.RunOnce"
	log := e.log.With(sl.Op(op))

	started := time.Now()
	defer func() {
		metrics.AccrualSweepDuration.Observe(time.Since(started).Seconds())
	}()

	candidates, err := e.repo.ListAccrualCandidates(ctx)
	if err != nil {
		log.Error("failed to list accrual candidates", sl.Err(err))
		return Result{}, err
	}

	var res Result
	for _, c := range candidates {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++
		for _, m := range DueMilestones(c, now) {
			amount := MilestoneAmount(c.PlanPrice, m.Percent)
			accrued, err := e.repo.AccrueMilestone(ctx, c.PackageID, m.Tag, m.Percent, amount)
			if err != nil {
				res.Failed++
				metrics.AccrualErrors.Inc()
				log.Error("failed to accrue milestone",
					slog.String("package_id", c.PackageID),
					slog.String("milestone", m.Tag),
					sl.Err(err))
				continue
			}
			if !accrued {
				continue
			}
			res.Accrued++
			metrics.MilestonesAccrued.WithLabelValues(m.Tag).Inc()
			log.Info("milestone accrued",
				slog.String("package_id", c.PackageID),
				slog.String("milestone", m.Tag),
				slog.String("amount", amount.String()))
		}
	}

	log.Info("accrual sweep finished",
		slog.Int("checked", res.Checked),
		slog.Int("accrued", res.Accrued),
		slog.Int("failed", res.Failed))
	return res, nil
}
