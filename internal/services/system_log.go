package services

import (
	"encoding/json"
	"time"

	"github.com/sudo-adi/bs-server-sub001/internal/models"
	"github.com/sudo-adi/bs-server-sub001/pkg/logger"
	"gorm.io/gorm"
)

// AuditEntry is one audited API call.
type AuditEntry struct {
	Module    string
	Action    string
	Message   string
	ActorID   string
	RequestID string
	IP        string
	UserAgent string
	Extra     interface{}
}

type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

func (s *SystemLogService) LogInfo(e AuditEntry)    { s.write("info", e) }
func (s *SystemLogService) LogWarning(e AuditEntry) { s.write("warning", e) }
func (s *SystemLogService) LogError(e AuditEntry)   { s.write("error", e) }

func (s *SystemLogService) write(level string, e AuditEntry) {
	if s == nil || s.db == nil {
		return
	}

	var extra string
	if e.Extra != nil {
		if b, err := json.Marshal(e.Extra); err == nil {
			extra = string(b)
		}
	}

	row := &models.SystemLog{
		Level:     level,
		Module:    e.Module,
		Action:    e.Action,
		Message:   e.Message,
		ActorID:   strPtr(e.ActorID),
		RequestID: e.RequestID,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Extra:     extra,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(row).Error; err != nil {
		logger.Warn().Err(err).Str("action", e.Action).Msg("Failed to write audit log")
	}
}

// CleanupOldLogs deletes audit rows older than retentionDays and returns
// how many went.
func (s *SystemLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
