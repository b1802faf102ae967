package download

import (
	"errors"

	"github.com/cenkalti/fetch/internal/hashing"
	"github.com/cenkalti/fetch/internal/rpctypes"
	"github.com/powerman/rpc-codec/jsonrpc2"
)

var (
	errTaskNotFound = jsonrpc2.NewError(1, "task not found")
	errClosed       = jsonrpc2.NewError(2, ErrManagerClosed.Error())
)

type rpcHandler struct {
	manager *Manager
}

func (h *rpcHandler) Version(args struct{}, reply *string) error {
	*reply = Version
	return nil
}

func (h *rpcHandler) AddTask(args *rpctypes.AddTaskRequest, reply *rpctypes.AddTaskResponse) error {
	t, err := h.manager.AddTask(h.manager.ctx, args.URL, args.Path, nil, args.ContinueExisting)
	if errors.Is(err, ErrManagerClosed) {
		return errClosed
	}
	if err != nil {
		return jsonrpc2.NewError(3, err.Error())
	}
	reply.Task = newRPCTask(t)
	return nil
}

func (h *rpcHandler) ListTasks(args *rpctypes.ListTasksRequest, reply *rpctypes.ListTasksResponse) error {
	tasks := h.manager.ListTasks()
	reply.Tasks = make([]rpctypes.Task, 0, len(tasks))
	for _, t := range tasks {
		reply.Tasks = append(reply.Tasks, newRPCTask(t))
	}
	return nil
}

func (h *rpcHandler) GetTask(args *rpctypes.GetTaskRequest, reply *rpctypes.GetTaskResponse) error {
	t := h.manager.GetTask(ID(args.ID))
	if t == nil {
		return errTaskNotFound
	}
	reply.Task = newRPCTask(t)
	return nil
}

func (h *rpcHandler) CancelTask(args *rpctypes.CancelTaskRequest, reply *rpctypes.CancelTaskResponse) error {
	t := h.manager.GetTask(ID(args.ID))
	if t == nil {
		return errTaskNotFound
	}
	t.Cancel()
	return nil
}

func (h *rpcHandler) GetStats(args *rpctypes.GetStatsRequest, reply *rpctypes.GetStatsResponse) error {
	s := h.manager.Stats()
	reply.Stats = rpctypes.Stats{
		Tasks:           s.Tasks,
		Active:          s.Active,
		Succeeded:       s.Succeeded,
		Failed:          s.Failed,
		Cancelled:       s.Cancelled,
		Retried:         s.Retried,
		BytesDownloaded: s.BytesDownloaded,
		SpeedDownload:   s.SpeedDownload,
		Uptime:          s.Uptime,
	}
	return nil
}

func newRPCTask(t *Task) rpctypes.Task {
	rec := t.Record()
	var hash string
	if len(rec.Hash) > 0 {
		hash = hashing.String(rec.Hash)
	}
	return rpctypes.Task{
		ID:          string(rec.ID),
		State:       rec.State.String(),
		URL:         rec.URL,
		Path:        rec.Path,
		Length:      rec.Length,
		Position:    rec.Position,
		Hash:        hash,
		CreatedAt:   rpctypes.Time{Time: rec.CreatedAt},
		CompletedAt: rpctypes.NewTime(rec.CompletedAt),
		Attempt:     t.Attempt(),
	}
}
