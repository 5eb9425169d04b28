package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/testport/testport-backend/internal/config"
	"github.com/testport/testport-backend/internal/database"
	"github.com/testport/testport-backend/internal/logger"
	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/repository"
	"github.com/testport/testport-backend/internal/service"
)

func main() {
	var (
		count    int
		batch    string
		password string
	)
	flag.IntVar(&count, "count", 50, "Number of learners to seed")
	flag.StringVar(&batch, "batch", "2026", "Batch label for the seeded learners")
	flag.StringVar(&password, "password", "changeme123", "Initial password for every seeded learner")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	learnerRepo := repository.NewLearnerRepository(pool)
	authService := service.NewAuthService(cfg, nil)
	learnerService := service.NewLearnerService(learnerRepo, authService)

	fmt.Printf("=== Seeding %d Learners (batch %s) ===\n", count, batch)

	reqs := make([]model.CreateLearnerRequest, 0, count)
	for i := 1; i <= count; i++ {
		roll := fmt.Sprintf("%s%04d", batch, i)
		reqs = append(reqs, model.CreateLearnerRequest{
			RollNumber: roll,
			Name:       fmt.Sprintf("Learner %s", roll),
			Email:      fmt.Sprintf("learner.%s@example.edu", roll),
			Batch:      batch,
			Password:   password,
		})
	}

	inserted, err := learnerService.BulkImport(ctx, reqs)
	if err != nil {
		log.Fatal().Err(err).Msg("Bulk import failed")
	}

	fmt.Printf("Done. Inserted %d learners.\n", inserted)
}
