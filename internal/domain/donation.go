package domain

import "time"

// AnonymousDonor is used when no donor name could be resolved.
const AnonymousDonor = "Anonymous"

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// DonationRecord is the structured result of parsing a donation notification.
// AmountMinor == 0 means no amount was found and the record must not be relayed.
type DonationRecord struct {
	Donor       string `json:"donor"`
	AmountMinor int64  `json:"amount"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
	SourceID    string `json:"id"`
}

// HasAmount reports whether an amount was extracted.
func (r DonationRecord) HasAmount() bool { return r.AmountMinor > 0 }

// FormatTimestamp renders t the way DonationRecord.Timestamp expects it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
