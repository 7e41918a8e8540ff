// Command seedcases initializes the fraud case database with sample pending
// cases for demo calls. Existing rows are replaced.
package main

import (
	"flag"
	"log"

	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/config"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/fraud"
)

func main() {
	listOnly := flag.Bool("list", false, "print current cases without reseeding")
	flag.Parse()

	cfg := config.Load()
	repo := fraud.NewRepository(cfg.FraudDBPath)
	if err := repo.EnsureSchema(); err != nil {
		log.Fatalf("create schema: %v", err)
	}

	if !*listOnly {
		if err := repo.Seed(fraud.SampleCases()); err != nil {
			log.Fatalf("seed: %v", err)
		}
		log.Printf("seeded %d cases into %s", len(fraud.SampleCases()), cfg.FraudDBPath)
	}

	cases, err := repo.ListCases()
	if err != nil {
		log.Fatalf("list: %v", err)
	}
	for _, c := range cases {
		log.Printf("case %d: user=%s merchant=%s amount=%.2f status=%s",
			c.ID, c.UserName, c.MerchantName, c.TransactionAmount, c.Status)
	}
}
