package main

import (
	"context"
	"fmt"

	"github.com/lentera-edu/lentera-backend/internal/config"
	"github.com/lentera-edu/lentera-backend/internal/database"
	"github.com/lentera-edu/lentera-backend/internal/logger"
	"github.com/lentera-edu/lentera-backend/internal/model"
	"github.com/lentera-edu/lentera-backend/internal/repository"
)

// The badge catalog. Seeding is idempotent: re-running refreshes
// descriptions and point values without duplicating rows.
var catalog = []model.Badge{
	{Name: model.BadgeFirstTry, Description: "Menyelesaikan kuis pertamamu", PointValue: 50},
	{Name: model.BadgePerfectScore, Description: "Meraih nilai sempurna 100", PointValue: 100},
	{Name: model.BadgeFastThinker, Description: "Nilai 80+ dalam waktu kurang dari 5 menit", PointValue: 75},
	{Name: model.BadgeActiveLearner, Description: "Menyelesaikan 10 kuis berbeda", PointValue: 150},
	{Name: model.BadgeConsistency, Description: "Mengerjakan kuis 7 hari berturut-turut", PointValue: 100},
	{Name: model.BadgeThirtyDays, Description: "Mengerjakan kuis 30 hari berturut-turut", PointValue: 500},
	{Name: model.BadgeTopRank1, Description: "Peringkat 1 mingguan", PointValue: 300},
	{Name: model.BadgeTopRank2, Description: "Peringkat 2 mingguan", PointValue: 200},
	{Name: model.BadgeTopRank3, Description: "Peringkat 3 mingguan", PointValue: 100},
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	badgeRepo := repository.NewBadgeRepository(pool)

	for i := range catalog {
		if err := badgeRepo.Upsert(ctx, &catalog[i]); err != nil {
			log.Fatal().Err(err).Str("badge", catalog[i].Name).Msg("Failed to seed badge")
		}
		fmt.Printf("Seeded badge %q (id=%d, points=%.0f)\n", catalog[i].Name, catalog[i].ID, catalog[i].PointValue)
	}

	fmt.Printf("Badge catalog seeded (%d badges)\n", len(catalog))
}
