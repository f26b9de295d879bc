package services

import (
	"context"
	"fmt"

	"github.com/sudo-adi/bs-server-sub001/internal/models"
	"github.com/sudo-adi/bs-server-sub001/pkg/logger"
	"gorm.io/gorm"
)

const reindexBatchSize = 500

// ProfileIndexService pushes profile rows into the search index.
type ProfileIndexService struct {
	db      *gorm.DB
	indexer ProfileIndexer
}

func NewProfileIndexService(db *gorm.DB, indexer ProfileIndexer) *ProfileIndexService {
	return &ProfileIndexService{db: db, indexer: indexer}
}

// ProcessReindexTask is the TaskProcessor for profile reindex tasks.
// Deleted profiles are removed from the index.
func (s *ProfileIndexService) ProcessReindexTask(ctx context.Context, task *ReindexTask) error {
	if s.indexer == nil || len(task.ProfileIDs) == 0 {
		return nil
	}

	var profiles []models.Profile
	if err := s.db.WithContext(ctx).Unscoped().Where("id IN ?", task.ProfileIDs).Find(&profiles).Error; err != nil {
		return fmt.Errorf("load profiles for reindex: %w", err)
	}

	docs := make([]ProfileDocument, 0, len(profiles))
	var gone []string
	for i := range profiles {
		if profiles[i].DeletedAt.Valid {
			gone = append(gone, profiles[i].ID)
			continue
		}
		docs = append(docs, NewProfileDocument(&profiles[i]))
	}

	if err := s.indexer.IndexProfiles(docs); err != nil {
		return fmt.Errorf("index profiles: %w", err)
	}
	if len(gone) > 0 {
		if err := s.indexer.DeleteProfiles(gone); err != nil {
			return fmt.Errorf("delete profiles from index: %w", err)
		}
	}

	logger.Debug().
		Int("indexed", len(docs)).
		Int("deleted", len(gone)).
		Str("cause", task.Cause).
		Msg("Profiles reindexed")
	return nil
}

// ReindexAll pushes every live profile to the index in batches.
func (s *ProfileIndexService) ReindexAll(ctx context.Context) (int, error) {
	if s.indexer == nil {
		return 0, fmt.Errorf("search index is not configured")
	}

	total := 0
	var batch []models.Profile
	result := s.db.WithContext(ctx).Model(&models.Profile{}).FindInBatches(&batch, reindexBatchSize, func(tx *gorm.DB, _ int) error {
		docs := make([]ProfileDocument, len(batch))
		for i := range batch {
			docs[i] = NewProfileDocument(&batch[i])
		}
		if err := s.indexer.IndexProfiles(docs); err != nil {
			return err
		}
		total += len(docs)
		return nil
	})
	if result.Error != nil {
		return total, fmt.Errorf("reindex profiles: %w", result.Error)
	}
	return total, nil
}
