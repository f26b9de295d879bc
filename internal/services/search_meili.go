package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/sudo-adi/bs-server-sub001/pkg/logger"
)

// MeiliProfileSearch indexes and searches worker profiles in Meilisearch.
type MeiliProfileSearch struct {
	client  meili.ServiceManager
	index   string
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeiliProfileSearch connects to Meilisearch. An unreachable server is
// not fatal: searches fall back to the database until a health probe passes.
func NewMeiliProfileSearch(url, apiKey, index string) *MeiliProfileSearch {
	m := &MeiliProfileSearch{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		index:  index,
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		logger.Warn().Err(err).Str("url", url).Msg("Meilisearch unavailable, using database search")
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *MeiliProfileSearch) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: m.index, PrimaryKey: "id"}); err != nil {
		logger.Debug().Err(err).Str("index", m.index).Msg("Create index (may already exist)")
	}

	idx := m.client.Index(m.index)
	filterable := []interface{}{"profileType", "workerType", "currentStage", "isActive"}
	if _, err := idx.UpdateFilterableAttributes(&filterable); err != nil {
		logger.Warn().Err(err).Str("index", m.index).Msg("Failed to update filterable attributes")
	}
	searchable := []string{"firstName", "lastName", "workerCode", "candidateCode", "phone"}
	if _, err := idx.UpdateSearchableAttributes(&searchable); err != nil {
		logger.Warn().Err(err).Str("index", m.index).Msg("Failed to update searchable attributes")
	}
}

func (m *MeiliProfileSearch) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			was := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !was {
				logger.Info().Str("index", m.index).Msg("Meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

func (m *MeiliProfileSearch) Close() {
	close(m.done)
}

func (m *MeiliProfileSearch) Healthy() bool {
	return m.healthy.Load()
}

func (m *MeiliProfileSearch) SearchProfileIDs(_ context.Context, text string, limit int) ([]string, error) {
	if !m.healthy.Load() {
		return nil, errors.New("meilisearch unhealthy")
	}
	if limit <= 0 {
		limit = maxSearchHits
	}

	resp, err := m.client.Index(m.index).Search(text, &meili.SearchRequest{
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, err
	}

	ids := make([]string, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		raw, ok := hit["id"]
		if !ok {
			continue
		}
		var id string
		if err := json.Unmarshal(raw, &id); err == nil && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MeiliProfileSearch) IndexProfiles(docs []ProfileDocument) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := m.client.Index(m.index).AddDocuments(docs, nil)
	return err
}

func (m *MeiliProfileSearch) DeleteProfiles(ids []string) error {
	idx := m.client.Index(m.index)
	for _, id := range ids {
		if _, err := idx.DeleteDocument(id, nil); err != nil {
			return err
		}
	}
	return nil
}
