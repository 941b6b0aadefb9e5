package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rs/zerolog"

	"marketplace-credits/internal/config"
	pg "marketplace-credits/internal/infra/db/postgres"
	"marketplace-credits/internal/usecase"
)

func main() {
	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	logger := zerolog.Nop()
	tm := pg.NewTxManager(pool)
	promoRepo := pg.NewPromoCodeRepo(pool)
	promoUC := usecase.NewPromoUseCase(promoRepo, tm, &logger)
	creditsUC := usecase.NewCreditsUseCase(
		pg.NewCreditBalanceRepo(pool), pg.NewCreditHistoryRepo(pool), tm, nil, &logger)

	// Seed a couple of balances to exercise transfers locally
	for _, b := range []struct {
		UserID string
		Demand int64
		Sub    int64
	}{
		{"demo-alice", 500, 200},
		{"demo-bob", 50, 0},
	} {
		bal, err := creditsUC.CreateBalance(ctx, b.UserID, b.Demand, b.Sub)
		if err != nil {
			log.Printf("create balance %q: %v (skipping)", b.UserID, err)
			continue
		}
		fmt.Printf("seeded: balance %s (demand=%d, sub=%d)\n", bal.UserID, bal.AmountDemand, bal.AmountSub)
	}

	// Seed a few sample promo codes for testing the payment flow
	seed := []struct {
		Code     string
		Discount int
		Times    int
		Days     int
	}{
		{"WELCOME10", 10, 100, 90},
		{"BONUS20", 20, 50, 30},
		{"LAUNCH50", 50, 10, 7},
	}

	for _, s := range seed {
		p, err := promoUC.Create(ctx, usecase.PromoCodeInput{
			Code:           s.Code,
			Discount:       s.Discount,
			AllowedTimes:   s.Times,
			ExpirationDate: time.Now().AddDate(0, 0, s.Days),
			CreatedBy:      "seed",
		})
		if err != nil {
			log.Printf("create promo %q: %v (skipping)", s.Code, err)
			continue
		}
		fmt.Printf("seeded: %s (discount=%d%%, times=%d, expires=%s)\n",
			p.Code, p.Discount, p.AllowedTimes, p.ExpirationDate.Format("2006-01-02"))
	}

	fmt.Println("Seeding complete.")
}
