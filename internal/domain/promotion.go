package domain

import "time"

// ActivePromotion: one promoter/campaign pair eligible for settlement, with
// the campaign's per-view rate in rupiah (fractional rates allowed).
type ActivePromotion struct {
	PromoterID  string  `json:"promoterId"`
	CampaignID  string  `json:"campaignId"`
	RatePerView float64 `json:"ratePerView"`
}

// ViewRecord: a batch of views attributed to a promoter/campaign pair at a
// point in time, flagged legitimate or bot by the fraud engine's prior pass.
type ViewRecord struct {
	PromoterID   string    `json:"promoterId"`
	CampaignID   string    `json:"campaignId"`
	ViewCount    int64     `json:"viewCount"`
	IsLegitimate bool      `json:"isLegitimate"`
	Timestamp    time.Time `json:"timestamp"`
}

// Period: a half-open settlement window [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// DayPeriod returns the calendar-day settlement period containing date, in
// the given location.
func DayPeriod(date time.Time, loc *time.Location) Period {
	local := date.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return Period{Start: start, End: start.AddDate(0, 0, 1)}
}
