package services

import (
	"context"
	"strings"

	"github.com/sudo-adi/bs-server-sub001/internal/models"
	"github.com/sudo-adi/bs-server-sub001/pkg/logger"
	"gorm.io/gorm"
)

// maxSearchHits bounds how many profile ids a text search may return.
const maxSearchHits = 1000

// ProfileSearcher resolves free text to matching profile ids.
type ProfileSearcher interface {
	SearchProfileIDs(ctx context.Context, text string, limit int) ([]string, error)
	Healthy() bool
}

// ProfileIndexer keeps an external profile index current.
type ProfileIndexer interface {
	IndexProfiles(docs []ProfileDocument) error
	DeleteProfiles(ids []string) error
	Healthy() bool
}

// ProfileDocument is the indexed shape of a profile.
type ProfileDocument struct {
	ID            string `json:"id"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	WorkerCode    string `json:"workerCode"`
	CandidateCode string `json:"candidateCode"`
	Phone         string `json:"phone"`
	ProfileType   string `json:"profileType"`
	WorkerType    string `json:"workerType"`
	CurrentStage  string `json:"currentStage"`
	IsActive      bool   `json:"isActive"`
}

func NewProfileDocument(p *models.Profile) ProfileDocument {
	return ProfileDocument{
		ID:            p.ID,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		WorkerCode:    p.WorkerCode,
		CandidateCode: p.CandidateCode,
		Phone:         p.Phone,
		ProfileType:   p.ProfileType,
		WorkerType:    p.WorkerType,
		CurrentStage:  string(p.CurrentStage),
		IsActive:      p.IsActive,
	}
}

// applyProfileSearch narrows a profiles query to rows matching text. The
// search index answers when healthy and under maxSearchHits; otherwise a
// LIKE scan over names, codes and phone does.
func applyProfileSearch(ctx context.Context, q *gorm.DB, searcher ProfileSearcher, text string) *gorm.DB {
	text = strings.TrimSpace(text)
	if text == "" {
		return q
	}

	if searcher != nil && searcher.Healthy() {
		ids, err := searcher.SearchProfileIDs(ctx, text, maxSearchHits)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("Profile search index failed, falling back to database scan")
		case len(ids) >= maxSearchHits:
			// a full page may be truncated; totals must cover every match
			logger.Debug().Str("search", text).Int("hits", len(ids)).Msg("Profile search hit limit, using database scan")
		default:
			return q.Where("profiles.id IN ?", ids)
		}
	}

	like := "%" + strings.ToLower(text) + "%"
	return q.Where(
		"(LOWER(profiles.first_name) LIKE ? OR LOWER(profiles.last_name) LIKE ? OR LOWER(profiles.worker_code) LIKE ? OR LOWER(profiles.candidate_code) LIKE ? OR profiles.phone LIKE ?)",
		like, like, like, like, like,
	)
}
