package disk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	TypeDir  = "dir"
	TypeFile = "file"
)

// Resource is the metadata the API reports for one file or directory.
type Resource struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Type     string    `json:"type"`
	Size     int64     `json:"size"`
	MD5      string    `json:"md5"`
	Modified time.Time `json:"modified"`
}

func (r Resource) IsDir() bool {
	return r.Type == TypeDir
}

type resourcePage struct {
	Resource
	Embedded *struct {
		Items []Resource `json:"items"`
		Total int        `json:"total"`
	} `json:"_embedded"`
}

// List returns every child of the directory at p, following the offset
// cursor until the reported total is reached or a short page arrives.
func (c *Client) List(ctx context.Context, p Path) ([]Resource, error) {
	var all []Resource
	seen := make(map[string]struct{})

	for offset := 0; ; {
		resp, err := c.Do(ctx, listRequest(p, c.pageLimit, offset))
		if err != nil {
			return nil, err
		}

		var page resourcePage
		if err := decode(resp, "list", p, &page); err != nil {
			return nil, err
		}

		if page.Embedded == nil {
			return nil, fmt.Errorf("%w: list %s: not a directory", ErrMalformedResponse, p)
		}

		items := page.Embedded.Items
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			if _, dup := seen[item.Name]; dup {
				continue
			}
			seen[item.Name] = struct{}{}
			all = append(all, item)
		}

		if page.Embedded.Total > 1000 {
			c.log.Debug("listing large folder", zap.String("path", p.String()),
				zap.Int("received", len(all)), zap.Int("total", page.Embedded.Total))
		}

		if len(all) >= page.Embedded.Total || len(items) < c.pageLimit {
			break
		}
		offset += len(items)
	}

	return all, nil
}

// Metadata returns the resource at p. A missing resource is a *StatusError
// matched by IsNotFound.
func (c *Client) Metadata(ctx context.Context, p Path) (*Resource, error) {
	resp, err := c.Do(ctx, metadataRequest(p, "name,path,type,size,md5,modified"))
	if err != nil {
		return nil, err
	}

	var r Resource
	if err := decode(resp, "metadata", p, &r); err != nil {
		return nil, err
	}

	return &r, nil
}

func (c *Client) Exists(ctx context.Context, p Path) (bool, error) {
	resp, err := c.Do(ctx, metadataRequest(p, "path,type,name"))
	if err != nil {
		return false, err
	}

	err = expect(resp, "exists", p, http.StatusOK)
	switch {
	case err == nil:
		return true, nil
	case IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// CreateDir creates the directory at p. An existing resource at p counts as
// success, and missing parents are created on a conflict response.
func (c *Client) CreateDir(ctx context.Context, p Path) error {
	return c.createDir(ctx, p, true)
}

func (c *Client) createDir(ctx context.Context, p Path, createParents bool) error {
	resp, err := c.Do(ctx, createDirRequest(p))
	if err != nil {
		return err
	}

	err = expect(resp, "create dir", p, http.StatusCreated)
	if err == nil {
		c.log.Debug("dir created", zap.String("path", p.String()))
		return nil
	}

	if !IsConflict(err) {
		return err
	}

	if ok, exErr := c.Exists(ctx, p); exErr == nil && ok {
		return nil
	}

	if !createParents || p.IsRoot() {
		return err
	}

	if err := c.createDir(ctx, p.Parent(), true); err != nil {
		return err
	}

	return c.createDir(ctx, p, false)
}

// Remove deletes p permanently. A resource that is already gone counts as
// removed.
func (c *Client) Remove(ctx context.Context, p Path) error {
	resp, err := c.Do(ctx, removeRequest(p, true))
	if err != nil {
		return err
	}

	err = expect(resp, "remove", p, http.StatusAccepted, http.StatusNoContent)
	if IsNotFound(err) {
		return nil
	}

	return err
}

func (c *Client) Move(ctx context.Context, from, to Path, overwrite bool) error {
	return c.relocate(ctx, "/move", "move", from, to, overwrite)
}

func (c *Client) Copy(ctx context.Context, from, to Path, overwrite bool) error {
	return c.relocate(ctx, "/copy", "copy", from, to, overwrite)
}

func (c *Client) relocate(ctx context.Context, endpoint, op string, from, to Path, overwrite bool) error {
	resp, err := c.Do(ctx, relocateRequest(endpoint, from, to, overwrite))
	if err != nil {
		return err
	}

	if err := expect(resp, op, from, http.StatusCreated, http.StatusAccepted); err != nil {
		return err
	}

	c.log.Debug(op+" done", zap.String("from", from.String()), zap.String("to", to.String()))
	return nil
}

// decode closes resp and unmarshals a 200 body into v.
func decode(resp *http.Response, op string, p Path, v any) error {
	defer drainClose(resp)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: op, Path: p.String(), Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, op, p, err)
	}

	return nil
}
