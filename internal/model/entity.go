package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProcessingStatus string

const (
	ProcessingStatusPending    ProcessingStatus = "pending"
	ProcessingStatusProcessing ProcessingStatus = "processing"
	ProcessingStatusCompleted  ProcessingStatus = "completed"
	ProcessingStatusFailed     ProcessingStatus = "failed"
)

func (s ProcessingStatus) IsTerminal() bool {
	return s == ProcessingStatusCompleted || s == ProcessingStatusFailed
}

// StatusNotFound: метка status для RMA, которого нет в Freshdesk.
const StatusNotFound = "Not found"

// RMATicket: обогащённая запись RMA; rma_number уникален.
type RMATicket struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RMANumber string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"rmaNumber"`

	TicketDate          *time.Time `json:"ticketDate"`
	CustomerName        *string    `gorm:"type:text" json:"customerName"`
	CustomerEmail       *string    `gorm:"type:text" json:"customerEmail"`
	CustomerInformation *string    `gorm:"type:text" json:"customerInformation"`
	Status              *string    `gorm:"type:varchar(64)" json:"status"`
	SourceStatusCode    *int       `json:"sourceStatusCode"`
	DeviceIDs           *string    `gorm:"column:device_ids;type:text" json:"deviceIds"`

	PrimaryReason   *string `gorm:"type:text" json:"primaryReason"`
	SpecificIssue   *string `gorm:"type:text" json:"specificIssue"`
	CustomerImpact  *string `gorm:"type:text" json:"customerImpact"`
	Timeline        *string `gorm:"type:text" json:"timeline"`
	AdditionalNotes *string `gorm:"type:text" json:"additionalNotes"`

	RawTicketData             datatypes.JSON `json:"rawTicketData,omitempty"`
	ConversationSearchResults datatypes.JSON `json:"conversationSearchResults"`
	ConversationSearchSummary *string        `gorm:"type:text" json:"conversationSearchSummary"`

	ProcessingStatus ProcessingStatus `gorm:"type:varchar(16);index;not null;default:pending" json:"processingStatus"`
	ErrorMessage     *string          `gorm:"type:text" json:"errorMessage"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (RMATicket) TableName() string {
	return "rma_tickets"
}

func (t *RMATicket) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (t *RMATicket) IsCompleted() bool {
	return t != nil && t.ProcessingStatus == ProcessingStatusCompleted
}

// CustomerInformation форматирует "Имя <email>"; nil, если нет ни имени, ни email.
func CustomerInformation(name, email string) *string {
	var s string
	switch {
	case name != "" && email != "":
		s = name + " <" + email + ">"
	case name != "":
		s = name
	case email != "":
		s = "<" + email + ">"
	default:
		return nil
	}
	return &s
}

// IsValidRMANumber: номер RMA непустой и состоит только из цифр.
func IsValidRMANumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
