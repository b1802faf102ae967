// Package rpcclient provides a client for the RPC server of a running download manager.
package rpcclient

import (
	"net/http"

	"github.com/cenkalti/fetch/internal/rpctypes"
	"github.com/powerman/rpc-codec/jsonrpc2"
)

type (
	Task  = rpctypes.Task
	Stats = rpctypes.Stats
)

// Client sends JSON-RPC 2.0 requests over HTTP.
type Client struct {
	client *jsonrpc2.Client
}

// New returns a client for the server at url. url is in form of "http://host:port".
func New(url string) *Client {
	return NewWithHTTPClient(url, http.DefaultClient)
}

// NewWithHTTPClient is like New but sends requests with a custom HTTP client.
func NewWithHTTPClient(url string, client *http.Client) *Client {
	return &Client{client: jsonrpc2.NewCustomHTTPClient(url, client)}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) ServerVersion() (string, error) {
	var reply string
	err := c.client.Call("Manager.Version", nil, &reply)
	return reply, err
}

func (c *Client) AddTask(url, path string, continueExisting bool) (*Task, error) {
	args := rpctypes.AddTaskRequest{URL: url, Path: path, ContinueExisting: continueExisting}
	var reply rpctypes.AddTaskResponse
	return &reply.Task, c.client.Call("Manager.AddTask", args, &reply)
}

func (c *Client) ListTasks() ([]Task, error) {
	var reply rpctypes.ListTasksResponse
	err := c.client.Call("Manager.ListTasks", nil, &reply)
	return reply.Tasks, err
}

func (c *Client) GetTask(id string) (*Task, error) {
	args := rpctypes.GetTaskRequest{ID: id}
	var reply rpctypes.GetTaskResponse
	return &reply.Task, c.client.Call("Manager.GetTask", args, &reply)
}

func (c *Client) CancelTask(id string) error {
	args := rpctypes.CancelTaskRequest{ID: id}
	var reply rpctypes.CancelTaskResponse
	return c.client.Call("Manager.CancelTask", args, &reply)
}

func (c *Client) GetStats() (*Stats, error) {
	var reply rpctypes.GetStatsResponse
	return &reply.Stats, c.client.Call("Manager.GetStats", nil, &reply)
}
