package cli

import (
	"context"
	"fmt"
	"log"

	"buzzboard/internal/app"
	"buzzboard/internal/config"
	"buzzboard/internal/domain"
	pgstore "buzzboard/internal/infra/postgres"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads the default question catalog into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace the question catalog with the default set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	db := openBunDB(cfg.Postgres.URL)
	defer db.Close()

	store := pgstore.NewStore(db)
	questions := DefaultQuestions()
	if err := store.SeedQuestions(ctx, questions); err != nil {
		return err
	}
	log.Printf("seeded %d questions", len(questions))
	return nil
}

var defaultCategories = [2][]string{
	{"World Capitals", "Science & Nature", "Sports", "Movies", "Word Origins", "Famous Firsts"},
	{"World History", "Literature", "Technology", "Music", "Geography", "Food & Drink"},
}

// DefaultQuestions builds the stock catalog: a full board per round with
// placeholder prompts that operators replace with real trivia.
func DefaultQuestions() []*domain.Question {
	var questions []*domain.Question
	for roundIndex, categories := range defaultCategories {
		for categoryIndex, category := range categories {
			for _, value := range app.RoundValues[roundIndex] {
				questions = append(questions, &domain.Question{
					ID:            uuid.NewString(),
					Category:      category,
					CategoryIndex: categoryIndex,
					RoundIndex:    roundIndex,
					BaseValue:     value,
					Prompt:        fmt.Sprintf("%s for %d", category, value),
					Answer:        fmt.Sprintf("Answer for %s %d", category, value),
					IsDailyDouble: false,
				})
			}
		}
	}
	return questions
}
