package quests

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/lawnpro/crew-ops/internal/models"
)

// SeedQuest is one quest in the seed catalog. ID keeps seeding idempotent.
type SeedQuest struct {
	ID         string `yaml:"id"`
	QuestInput `yaml:",inline"`
}

// SeedCatalog is the YAML quest catalog loaded by the seed command.
type SeedCatalog struct {
	Quests []SeedQuest `yaml:"quests"`
}

// LoadSeed reads a quest catalog from a YAML file.
func LoadSeed(path string) (*SeedCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var catalog SeedCatalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&catalog); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i := range catalog.Quests {
		q := &catalog.Quests[i]
		if q.ID == "" {
			return nil, fmt.Errorf("seed quest %d (%s) has no id", i+1, q.Title)
		}
		if err := q.normalize(); err != nil {
			return nil, fmt.Errorf("seed quest %s: %w", q.ID, err)
		}
	}

	return &catalog, nil
}

// Seed creates the catalog quests that do not exist yet and returns how many
// were created and skipped.
func (s *Service) Seed(ctx context.Context, catalog *SeedCatalog, actor string) (created, skipped int, err error) {
	for i := range catalog.Quests {
		if err := ctx.Err(); err != nil {
			return created, skipped, err
		}

		sq := &catalog.Quests[i]
		_, err := s.store.Quests().GetByID(sq.ID)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, skipped, fmt.Errorf("failed to look up quest %s: %w", sq.ID, err)
		}

		quest := &models.Quest{ID: sq.ID, Active: true, CreatedBy: actor}
		sq.apply(quest)
		if err := s.store.Quests().Create(quest); err != nil {
			return created, skipped, fmt.Errorf("failed to seed quest %s: %w", sq.ID, err)
		}
		created++
	}

	s.log.Info().Int("created", created).Int("skipped", skipped).Msg("Seeded quest catalog")
	s.refreshActiveQuestGauge()
	return created, skipped, nil
}
