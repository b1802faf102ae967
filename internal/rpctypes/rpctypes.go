// Package rpctypes contains the request and response types of the RPC server.
package rpctypes

type Task struct {
	ID          string
	State       string
	URL         string
	Path        string
	Length      int64
	Position    int64
	Hash        string `json:",omitempty"`
	CreatedAt   Time  `structs:",omitnested"`
	CompletedAt *Time `json:",omitempty" structs:",omitnested"`
	Attempt     int
}

type Stats struct {
	Tasks           int
	Active          int
	Succeeded       int64
	Failed          int64
	Cancelled       int64
	Retried         int64
	BytesDownloaded int64
	SpeedDownload   int64
	Uptime          int64
}

type AddTaskRequest struct {
	URL  string
	Path string
	// Append to the existing file instead of truncating it.
	ContinueExisting bool
}

type AddTaskResponse struct {
	Task Task
}

type ListTasksRequest struct{}

type ListTasksResponse struct {
	Tasks []Task
}

type GetTaskRequest struct {
	ID string
}

type GetTaskResponse struct {
	Task Task
}

type CancelTaskRequest struct {
	ID string
}

type CancelTaskResponse struct{}

type GetStatsRequest struct{}

type GetStatsResponse struct {
	Stats Stats
}
