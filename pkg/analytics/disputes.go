package analytics

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"
)

// DisputeStore applies the two mutations the assistant is allowed to make:
// flipping a dispute's status and appending audit comments. Everything is
// parameterized; model-provided text never reaches the statement.
type DisputeStore struct {
	db     *gorm.DB
	logger *log.Logger
}

func NewDisputeStore(db *gorm.DB, logger *log.Logger) *DisputeStore {
	return &DisputeStore{db: db, logger: logger}
}

// SetStatus sets a dispute to Open or Closed. An empty newStatus toggles the
// current value. Returns the normalized status in lower case.
func (s *DisputeStore) SetStatus(disputeID int, newStatus, changedBy string) (string, error) {
	var status string
	if newStatus == "" {
		var current string
		err := s.db.Raw(
			"SELECT dispute_status FROM dispute_management WHERE dispute_id = ?", disputeID,
		).Scan(&current).Error
		if err != nil {
			return "", fmt.Errorf("look up dispute %d: %w", disputeID, err)
		}
		if current == "" {
			return "", fmt.Errorf("dispute %d not found", disputeID)
		}
		if strings.EqualFold(strings.TrimSpace(current), "Open") {
			status = "Closed"
		} else {
			status = "Open"
		}
	} else {
		status = normalizeStatus(newStatus)
		if status != "Open" && status != "Closed" {
			return "", fmt.Errorf("status must be 'Open' or 'Closed', got %q", newStatus)
		}
	}

	if changedBy == "" {
		changedBy = "Cubie"
	}

	tx := s.db.Exec(
		"UPDATE dispute_management SET dispute_status = ?, changed_on = NOW(), changed_by = ? WHERE dispute_id = ?",
		status, changedBy, disputeID,
	)
	if tx.Error != nil {
		return "", fmt.Errorf("update dispute %d: %w", disputeID, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return "", fmt.Errorf("dispute %d not found", disputeID)
	}

	s.logger.Printf("[INFO] Dispute %d set to %s by %s", disputeID, status, changedBy)
	return strings.ToLower(status), nil
}

// AddComment appends a comment row to the audit trail for a dispute.
func (s *DisputeStore) AddComment(disputeID int, comments, processor, assignedTo string) (string, error) {
	if processor == "" {
		processor = "Cubie"
	}

	tx := s.db.Exec(
		"INSERT INTO audit_trail (dispute_id, creation_date, processor, comments, assigned_to) VALUES (?, NOW(), ?, ?, ?)",
		disputeID, processor, comments, assignedTo,
	)
	if tx.Error != nil {
		return "", fmt.Errorf("add audit comment for dispute %d: %w", disputeID, tx.Error)
	}

	s.logger.Printf("[INFO] Audit comment added to dispute %d by %s", disputeID, processor)
	return "inserted", nil
}

func normalizeStatus(status string) string {
	trimmed := strings.TrimSpace(strings.ToLower(status))
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed[:1]) + trimmed[1:]
}
