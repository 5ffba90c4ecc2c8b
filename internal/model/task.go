package model

import "time"

// Task is one product-listing price check published to the crowd
// marketplace. Several independent workers answer the same task.
type Task struct {
	TaskID       string
	CreationTime time.Time // UTC
	BatchName    string
	URL          string
	DomainName   string
}

// RawReport is a single worker's raw, unvalidated answer for a Task.
// Price, currency and quantity are nil when the worker left the field
// blank or the answer failed to parse at the ingestion boundary.
type RawReport struct {
	ReportID   string
	TaskID     string
	AcceptTime time.Time
	SubmitTime time.Time
	InStock    bool
	PriceCents *int64
	Currency   *string
	Quantity   *int
}
