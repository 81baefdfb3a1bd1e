package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status snapshot.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Clipspace.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.client.Call("Clipspace.Shutdown", ShutdownRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History lists items, optionally filtered by query text or space.
func (c *Client) History(req HistoryRequest) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.client.Call("Clipspace.History", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ItemDescribe returns one item with its textual content.
func (c *Client) ItemDescribe(id string) (*ItemDescribeResponse, error) {
	var resp ItemDescribeResponse
	if err := c.client.Call("Clipspace.ItemDescribe", ItemDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddText ingests plain text.
func (c *Client) AddText(text, spaceID string) (*AddResponse, error) {
	var resp AddResponse
	req := AddTextRequest{Text: text, SpaceID: spaceID}
	if err := c.client.Call("Clipspace.AddText", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddFile ingests a file path.
func (c *Client) AddFile(path, spaceID string) (*AddResponse, error) {
	var resp AddResponse
	req := AddFileRequest{Path: path, SpaceID: spaceID}
	if err := c.client.Call("Clipspace.AddFile", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddURL ingests a URL.
func (c *Client) AddURL(rawURL, spaceID string) (*AddResponse, error) {
	var resp AddResponse
	req := AddURLRequest{URL: rawURL, SpaceID: spaceID}
	if err := c.client.Call("Clipspace.AddURL", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteItems removes items by id.
func (c *Client) DeleteItems(ids []string) (*DeleteItemsResponse, error) {
	var resp DeleteItemsResponse
	if err := c.client.Call("Clipspace.DeleteItems", DeleteItemsRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MoveItems reassigns items to a space.
func (c *Client) MoveItems(ids []string, spaceID string) (*MoveItemsResponse, error) {
	var resp MoveItemsResponse
	req := MoveItemsRequest{IDs: ids, SpaceID: spaceID}
	if err := c.client.Call("Clipspace.MoveItems", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TogglePin flips an item's pinned flag.
func (c *Client) TogglePin(id string) (*PinResponse, error) {
	var resp PinResponse
	if err := c.client.Call("Clipspace.TogglePin", PinRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SpaceList returns all spaces.
func (c *Client) SpaceList() (*SpaceListResponse, error) {
	var resp SpaceListResponse
	if err := c.client.Call("Clipspace.SpaceList", SpaceListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SpaceCreate adds a user space.
func (c *Client) SpaceCreate(name, icon string) (*SpaceCreateResponse, error) {
	var resp SpaceCreateResponse
	req := SpaceCreateRequest{Name: name, Icon: icon}
	if err := c.client.Call("Clipspace.SpaceCreate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SpaceDelete removes a user space.
func (c *Client) SpaceDelete(id string) (*SpaceDeleteResponse, error) {
	var resp SpaceDeleteResponse
	if err := c.client.Call("Clipspace.SpaceDelete", SpaceDeleteRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetActiveSpace switches the capture target.
func (c *Client) SetActiveSpace(spaceID string) (*SetActiveSpaceResponse, error) {
	var resp SetActiveSpaceResponse
	req := SetActiveSpaceRequest{SpaceID: spaceID}
	if err := c.client.Call("Clipspace.SetActiveSpace", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetSpacesEnabled toggles space-directed capture.
func (c *Client) SetSpacesEnabled(enabled bool) (*SetSpacesEnabledResponse, error) {
	var resp SetSpacesEnabledResponse
	req := SetSpacesEnabledRequest{Enabled: enabled}
	if err := c.client.Call("Clipspace.SetSpacesEnabled", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobList returns derivation jobs filtered by state.
func (c *Client) JobList(states []string) (*JobListResponse, error) {
	var resp JobListResponse
	if err := c.client.Call("Clipspace.JobList", JobListRequest{States: states}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EnqueueJob queues an enrichment job for an item.
func (c *Client) EnqueueJob(req EnqueueJobRequest) (*EnqueueJobResponse, error) {
	var resp EnqueueJobResponse
	if err := c.client.Call("Clipspace.EnqueueJob", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MonitorCheck queues an immediate web-monitor check.
func (c *Client) MonitorCheck(id string) (*MonitorCheckResponse, error) {
	var resp MonitorCheckResponse
	if err := c.client.Call("Clipspace.MonitorCheck", MonitorCheckRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearCorrupt removes undecodable item rows.
func (c *Client) ClearCorrupt() (*ClearCorruptResponse, error) {
	var resp ClearCorruptResponse
	if err := c.client.Call("Clipspace.ClearCorrupt", ClearCorruptRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
