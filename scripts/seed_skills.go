package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/skillscope-backend/internal/db"
	"github.com/yungbote/skillscope-backend/internal/logger"
	"github.com/yungbote/skillscope-backend/internal/repos"
	"github.com/yungbote/skillscope-backend/internal/types"
)

// Seeds the component skill catalog from a YAML file.
//
//	go run scripts/seed_skills.go skills.yaml
//
// Skills already present by name are skipped.

type seedSkill struct {
	Name             string `yaml:"name"`
	Description      string `yaml:"description"`
	RubricEmerging   string `yaml:"rubric_emerging"`
	RubricDeveloping string `yaml:"rubric_developing"`
	RubricProficient string `yaml:"rubric_proficient"`
	RubricApplying   string `yaml:"rubric_applying"`
}

type seedFile struct {
	Skills []seedSkill `yaml:"skills"`
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: seed_skills <skills.yaml>")
		os.Exit(2)
	}

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	raw, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatal("Failed to read seed file", "path", os.Args[1], "error", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		log.Fatal("Failed to parse seed file", "error", err)
	}
	if len(seed.Skills) == 0 {
		log.Fatal("Seed file contains no skills")
	}

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}

	skillRepo := repos.NewComponentSkillRepo(postgresService.DB(), log)
	ctx := context.Background()

	existing, err := skillRepo.List(ctx, nil)
	if err != nil {
		log.Fatal("Failed to list existing skills", "error", err)
	}
	present := make(map[string]bool, len(existing))
	for _, s := range existing {
		present[s.Name] = true
	}

	created := 0
	for _, s := range seed.Skills {
		if s.Name == "" || s.RubricEmerging == "" || s.RubricDeveloping == "" || s.RubricProficient == "" || s.RubricApplying == "" {
			log.Fatal("Seed skill is missing a name or rubric level", "name", s.Name)
		}
		if present[s.Name] {
			log.Info("Skill already present, skipping", "name", s.Name)
			continue
		}
		if _, err := skillRepo.Create(ctx, nil, []*types.ComponentSkill{{
			ID:               uuid.New(),
			Name:             s.Name,
			Description:      s.Description,
			RubricEmerging:   s.RubricEmerging,
			RubricDeveloping: s.RubricDeveloping,
			RubricProficient: s.RubricProficient,
			RubricApplying:   s.RubricApplying,
		}}); err != nil {
			log.Fatal("Failed to create skill", "name", s.Name, "error", err)
		}
		created++
		log.Info("Seeded skill", "name", s.Name)
	}

	log.Info("Seeding complete", "created", created, "skipped", len(seed.Skills)-created)
}
