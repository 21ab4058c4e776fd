package models

// Action
const (
	StartGenerateAction = "start"
	StopGenerateAction  = "stop"
)

// GenerateCommand is the command to start a playlist run
type GenerateCommand struct {
	Action string `json:"action"`
	RunID  string `json:"runId,omitempty"`
	Data   Data   `json:"data,omitempty"`
}

// Data contains the pages to process. An empty list means the configured default.
type Data struct {
	Pages []int `json:"pages,omitempty"`
}
