package notifier

import "time"

// Config controls dispatch. It is fixed for the process lifetime.
type Config struct {
	// SendTimeout bounds one Deliver call.
	SendTimeout time.Duration
	// Parallel fans one entry out to all channels at once. Entries are still
	// handled one at a time.
	Parallel    bool
	HistorySize int
}

// Outcome counts channel results for one entry or a whole batch.
type Outcome struct {
	Delivered int `json:"delivered"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

func (o *Outcome) add(other Outcome) {
	o.Delivered += other.Delivered
	o.Skipped += other.Skipped
	o.Failed += other.Failed
}

// Report summarizes one Dispatch.
type Report struct {
	Entries int `json:"entries"`
	Outcome
}

// DeliveryEvent is the Data of notify.* bus events.
type DeliveryEvent struct {
	Channel string `json:"channel"`
	EntryID string `json:"entry_id"`
	Title   string `json:"title"`
	TookMS  int64  `json:"took_ms"`
	Error   string `json:"error,omitempty"`
}
