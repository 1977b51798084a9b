package amqp

import (
	"encoding/json"
	"time"
)

// PaymentPostedMessage announces a committed payment. It carries only
// identifiers; consumers fetch the full records from the database.
type PaymentPostedMessage struct {
	PaymentID    int64     `json:"payment_id"`
	AllocationID int64     `json:"allocation_id"`
	StudentID    int64     `json:"student_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewPaymentPostedMessage creates a payment announcement.
func NewPaymentPostedMessage(paymentID, allocationID, studentID int64) *PaymentPostedMessage {
	return &PaymentPostedMessage{
		PaymentID:    paymentID,
		AllocationID: allocationID,
		StudentID:    studentID,
		Timestamp:    time.Now(),
	}
}

func (m *PaymentPostedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PaymentPostedMessageFromJSON(data []byte) (*PaymentPostedMessage, error) {
	var msg PaymentPostedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// FeeReminderMessage asks the reminder worker to notify a student about an
// overdue allocation.
type FeeReminderMessage struct {
	AllocationID int64     `json:"allocation_id"`
	StudentID    int64     `json:"student_id"`
	DaysOverdue  int       `json:"days_overdue"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewFeeReminderMessage creates a reminder request.
func NewFeeReminderMessage(allocationID, studentID int64, daysOverdue int) *FeeReminderMessage {
	return &FeeReminderMessage{
		AllocationID: allocationID,
		StudentID:    studentID,
		DaysOverdue:  daysOverdue,
		Timestamp:    time.Now(),
	}
}

func (m *FeeReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func FeeReminderMessageFromJSON(data []byte) (*FeeReminderMessage, error) {
	var msg FeeReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
