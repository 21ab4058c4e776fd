package models

// Log statuses published while a playlist run progresses
const (
	StatusPageStarted    = "page_started"
	StatusPageEmpty      = "page_empty"
	StatusResolved       = "resolved"
	StatusNotFound       = "not_found"
	StatusSkippedInvalid = "skipped_invalid"
	StatusCompleted      = "completed"
	StatusFailed         = "failed"
	StatusRejected       = "rejected"
)

// Stats represents the running statistics of a playlist run
type Stats struct {
	PagesProcessed  int `json:"pagesProcessed"`
	ChannelsSeen    int `json:"channelsSeen"`
	ChannelsEmitted int `json:"channelsEmitted"`
}

// GenerateLog represents a log message from the generator
type GenerateLog struct {
	RunID   string          `json:"runId"`
	Status  string          `json:"status"`
	Page    int             `json:"page,omitempty"`
	Channel *ChannelRecord  `json:"channel,omitempty"`
	Stream  *ResolvedStream `json:"stream,omitempty"`
	Error   string          `json:"error,omitempty"`
	Stats   *Stats          `json:"stats,omitempty"`
}
