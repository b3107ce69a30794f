package lookin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lookind/internal/ir"
)

func remotePath(uuid string) string {
	return "data/" + url.PathEscape(uuid)
}

func functionPath(uuid, name string) string {
	return remotePath(uuid) + "/" + url.PathEscape(name)
}

// Remotes lists the remotes stored on the device.
func (c *Client) Remotes(ctx context.Context) ([]RemoteSummary, error) {
	var remotes []RemoteSummary
	if err := c.getJSON(ctx, "data", &remotes); err != nil {
		return nil, err
	}
	return remotes, nil
}

// RemoteState reads data/<uuid>.
func (c *Client) RemoteState(ctx context.Context, uuid string) (*RemoteState, error) {
	var s RemoteState
	if err := c.getJSON(ctx, remotePath(uuid), &s); err != nil {
		return nil, err
	}
	if s.UUID == "" {
		s.UUID = uuid
	}
	return &s, nil
}

// CreateRemote stores a new remote. An empty Updated is stamped now.
func (c *Client) CreateRemote(ctx context.Context, def RemoteDefinition) error {
	if def.UUID == "" {
		return fmt.Errorf("remote uuid is required")
	}
	if def.Updated == "" {
		def.Updated = c.stamp()
	}
	if err := c.do(ctx, http.MethodPost, "data", def); err != nil {
		return fmt.Errorf("failed to create remote %s: %w", def.UUID, err)
	}
	log.Info().Str("uuid", def.UUID).Str("type", def.Type).Str("name", def.Name).Msg("Remote created")
	return nil
}

// UpdateRemote changes the non-nil fields of a remote.
func (c *Client) UpdateRemote(ctx context.Context, uuid string, update RemoteUpdate) error {
	update.Updated = c.stamp()
	if err := c.do(ctx, http.MethodPut, remotePath(uuid), update); err != nil {
		return fmt.Errorf("failed to update remote %s: %w", uuid, err)
	}
	return nil
}

// DeleteRemote removes a remote from the device.
func (c *Client) DeleteRemote(ctx context.Context, uuid string) error {
	if err := c.do(ctx, http.MethodDelete, remotePath(uuid), nil); err != nil {
		return fmt.Errorf("failed to delete remote %s: %w", uuid, err)
	}
	log.Info().Str("uuid", uuid).Msg("Remote deleted")
	return nil
}

// RemoteFunction reads data/<uuid>/<name>.
func (c *Client) RemoteFunction(ctx context.Context, uuid, name string) (*FunctionData, error) {
	var f FunctionData
	if err := c.getJSON(ctx, functionPath(uuid, name), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func functionBody(fn *ir.Function) (FunctionData, error) {
	body := FunctionData{Type: string(fn.Kind())}
	for _, cmd := range fn.Commands() {
		b, err := json.Marshal(cmd)
		if err != nil {
			return FunctionData{}, err
		}
		body.Signals = append(body.Signals, b)
	}
	return body, nil
}

// CreateFunction stores fn under remote uuid.
func (c *Client) CreateFunction(ctx context.Context, uuid string, fn *ir.Function) error {
	body, err := functionBody(fn)
	if err != nil {
		return fmt.Errorf("failed to encode function %s: %w", fn.Name(), err)
	}
	if err := c.do(ctx, http.MethodPost, functionPath(uuid, fn.Name()), body); err != nil {
		return fmt.Errorf("failed to create function %s/%s: %w", uuid, fn.Name(), err)
	}
	return nil
}

// UpdateFunction replaces fn under remote uuid.
func (c *Client) UpdateFunction(ctx context.Context, uuid string, fn *ir.Function) error {
	body, err := functionBody(fn)
	if err != nil {
		return fmt.Errorf("failed to encode function %s: %w", fn.Name(), err)
	}
	body.Updated = c.stamp()
	if err := c.do(ctx, http.MethodPut, functionPath(uuid, fn.Name()), body); err != nil {
		return fmt.Errorf("failed to update function %s/%s: %w", uuid, fn.Name(), err)
	}
	return nil
}

// DeleteFunction removes a function from remote uuid.
func (c *Client) DeleteFunction(ctx context.Context, uuid, name string) error {
	if err := c.do(ctx, http.MethodDelete, functionPath(uuid, name), nil); err != nil {
		return fmt.Errorf("failed to delete function %s/%s: %w", uuid, name, err)
	}
	return nil
}
