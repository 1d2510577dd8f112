package relay

import "github.com/LordJunedGanteng/saweriabotjuned/internal/domain"

// SourceDiscord is the value of the "source" field of every payload.
const SourceDiscord = "discord"

// Payload is the JSON body accepted by the ingestion API.
type Payload struct {
	DonatorName string `json:"donator_name"`
	AmountRaw   int64  `json:"amount_raw"`
	Amount      int64  `json:"amount"`
	Message     string `json:"message"`
	CreatedAt   string `json:"created_at"`
	ID          string `json:"id"`
	Source      string `json:"source"`
}

// NewPayload maps a record onto the ingestion API's field names.
func NewPayload(rec domain.DonationRecord) Payload {
	return Payload{
		DonatorName: rec.Donor,
		AmountRaw:   rec.AmountMinor,
		Amount:      rec.AmountMinor,
		Message:     rec.Message,
		CreatedAt:   rec.Timestamp,
		ID:          rec.SourceID,
		Source:      SourceDiscord,
	}
}
