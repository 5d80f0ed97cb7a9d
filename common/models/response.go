package models

type BaseResponse struct {
	Data interface{} `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Msg   string `json:"message"`
}

// SyncStatus describes the most recent scrape-and-reconcile cycle
type SyncStatus struct {
	CycleID    string `json:"cycle_id"`
	State      string `json:"state"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Records    int    `json:"records"`
	Error      string `json:"error,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
