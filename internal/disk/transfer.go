package disk

import (
	"context"
	"fmt"
	"io"
	"kbsync/internal/metrics"
	"kbsync/internal/util"
	"net/http"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const tempSuffix = ".tmp"

type link struct {
	Href   string `json:"href"`
	Method string `json:"method"`
}

// Upload stores localPath under p in two phases: the bytes go to a temporary
// sibling first and are then moved over p, so the destination never exposes
// a half-scanned object. The temporary object is removed if the move fails.
func (c *Client) Upload(ctx context.Context, fs afero.Fs, localPath string, p Path) error {
	tmp := ParsePath(p.String() + tempSuffix)

	if err := c.uploadTo(ctx, fs, localPath, tmp, true); err != nil {
		return err
	}

	if err := c.Move(ctx, tmp, p, true); err != nil {
		if rmErr := c.Remove(ctx, tmp); rmErr != nil {
			c.log.Warn("failed to remove temporary upload",
				zap.String("path", tmp.String()), zap.Error(rmErr))
		}
		return fmt.Errorf("failed to move upload into place: %w", err)
	}

	c.log.Debug("uploaded", zap.String("path", p.String()))
	return nil
}

func (c *Client) uploadTo(ctx context.Context, fs afero.Fs, localPath string, p Path, createParents bool) error {
	href, err := c.link(ctx, uploadLinkRequest(p, true), "upload link", p)
	if err != nil {
		if createParents && (IsConflict(err) || IsNotFound(err)) && !p.Parent().IsRoot() {
			if err := c.CreateDir(ctx, p.Parent()); err != nil {
				return fmt.Errorf("failed to create parent dir: %w", err)
			}
			return c.uploadTo(ctx, fs, localPath, p, false)
		}
		return err
	}

	info, err := fs.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	open := func() (io.ReadCloser, error) { return fs.Open(localPath) }

	resp, err := c.Do(ctx, rawRequest(http.MethodPut, href, open, info.Size(), uploadRetries))
	if err != nil {
		return &TransferError{Op: "upload", Path: p.String(), Err: err}
	}

	if err := expect(resp, "upload", p, http.StatusCreated, http.StatusAccepted); err != nil {
		return &TransferError{Op: "upload", Path: p.String(), Err: err}
	}

	metrics.RecordTransfer("upload", info.Size())
	return nil
}

// Download streams the file at p into localPath. The local file is replaced
// atomically, so a failed transfer leaves any previous content in place.
func (c *Client) Download(ctx context.Context, p Path, fs afero.Fs, localPath string) error {
	href, err := c.link(ctx, downloadLinkRequest(p), "download link", p)
	if err != nil {
		return err
	}

	resp, err := c.Do(ctx, rawRequest(http.MethodGet, href, nil, 0, defaultRetries))
	if err != nil {
		return &TransferError{Op: "download", Path: p.String(), Err: err}
	}
	defer drainClose(resp)

	if resp.StatusCode != http.StatusOK {
		return &TransferError{Op: "download", Path: p.String(),
			Err: &StatusError{Op: "download", Path: p.String(), Code: resp.StatusCode}}
	}

	n, err := util.AtomicWrite(fs, localPath, resp.Body)
	metrics.RecordTransfer("download", n)
	if err != nil {
		return &TransferError{Op: "download", Path: p.String(), Err: err}
	}

	c.log.Debug("downloaded", zap.String("path", p.String()), zap.Int64("bytes", n))
	return nil
}

func (c *Client) link(ctx context.Context, req Request, op string, p Path) (string, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return "", err
	}

	var l link
	if err := decode(resp, op, p, &l); err != nil {
		return "", err
	}

	if l.Href == "" {
		return "", fmt.Errorf("%w: %s %s: empty href", ErrMalformedResponse, op, p)
	}

	return l.Href, nil
}
