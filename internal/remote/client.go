// Package remote talks to the RAVE style-transfer service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/catalog"
	"github.com/oukeidos/ravemix/internal/files"
	"github.com/oukeidos/ravemix/internal/httpclient"
	"github.com/oukeidos/ravemix/internal/logger"
	"github.com/oukeidos/ravemix/internal/settings"
)

const (
	RouteHome        = "/"
	RouteModels      = "/getmodels"
	RouteSelectModel = "/selectModel/"
	RouteUpload      = "/upload"
	RouteDownload    = "/download"

	// ModelExt is appended to model identifiers when selecting one.
	ModelExt = ".onnx"
	// RemixSuffix is appended to the source name of a processed clip.
	RemixSuffix = "_remix"
	// FallbackExt is used when the download has no usable Content-Type.
	FallbackExt = ".wav"
)

// maxUploadBytes is a var so tests can shrink it.
var maxUploadBytes int64 = httpclient.MaxUploadBytes

// Client issues requests against whatever address it is handed. It keeps
// no per-request state.
type Client struct {
	http        *http.Client
	downloadDir string
}

// NewClient uses the process-wide HTTP client when hc is nil.
func NewClient(hc *http.Client, downloadDir string) *Client {
	if hc == nil {
		hc = httpclient.GetDefaultClient()
	}
	return &Client{http: hc, downloadDir: downloadDir}
}

func (c *Client) DownloadDir() string { return c.downloadDir }

func endpoint(addr settings.Address, route string) string {
	return addr.BaseURL() + route
}

func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

func remoteErr(ctx context.Context, err error) error {
	if cancelled(ctx, err) {
		return apperrors.Cancelled(err)
	}
	if _, ok := apperrors.KindOf(err); ok {
		return err
	}
	return apperrors.Remote(err)
}

// Probe reports whether the service answers 200 on its root route.
func (c *Client) Probe(ctx context.Context, addr settings.Address) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint(addr, RouteHome), nil)
	if err != nil {
		return false, nil
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if cancelled(ctx, err) {
			return false, apperrors.Cancelled(err)
		}
		logger.Debug("Probe failed", "address", addr.BaseURL(), "error", err)
		return false, nil
	}
	httpclient.Discard(resp)
	return resp.StatusCode == http.StatusOK, nil
}

type modelsResponse struct {
	Models []string `json:"models"`
}

// ListModels returns the model identifiers the service offers.
func (c *Client) ListModels(ctx context.Context, addr settings.Address) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint(addr, RouteModels), nil)
	if err != nil {
		return nil, apperrors.Remote(err)
	}
	body, resp, err := httpclient.DoAndRead(c.http, req)
	if err != nil {
		return nil, remoteErr(ctx, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Remote(fmt.Errorf("list models: unexpected status %s", resp.Status))
	}
	var parsed modelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperrors.Remote(fmt.Errorf("list models: %w", err))
	}
	models := make([]string, 0, len(parsed.Models))
	for _, name := range parsed.Models {
		id := ModelID(name)
		if id == "" {
			continue
		}
		models = append(models, id)
	}
	return models, nil
}

// ModelID strips the directory and final extension from a model filename.
func ModelID(filename string) string {
	base := path.Base(strings.TrimSpace(filename))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// SelectModel activates id on the service.
func (c *Client) SelectModel(ctx context.Context, addr settings.Address, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperrors.Invalid("No model selected.")
	}
	route := RouteSelectModel + url.PathEscape(id+ModelExt)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint(addr, route), nil)
	if err != nil {
		return apperrors.Remote(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return remoteErr(ctx, err)
	}
	httpclient.Discard(resp)
	if resp.StatusCode != http.StatusOK {
		return apperrors.Remote(fmt.Errorf("select model %s: unexpected status %s", id, resp.Status))
	}
	return nil
}

// Transfer uploads entry, downloads the processed result and returns it as
// a download entry. Nothing is written unless both steps succeed.
func (c *Client) Transfer(ctx context.Context, addr settings.Address, entry catalog.Entry) (catalog.Entry, error) {
	if entry.IsZero() {
		return catalog.Entry{}, apperrors.Invalid("No audio selected.")
	}
	if err := c.upload(ctx, addr, entry.URI); err != nil {
		return catalog.Entry{}, err
	}
	logger.Info("Audio uploaded", "source", entry.URI, "address", addr.BaseURL())
	return c.download(ctx, addr, entry.DisplayName()+RemixSuffix)
}

func (c *Client) upload(ctx context.Context, addr settings.Address, src string) error {
	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperrors.NotFound(err)
		}
		return apperrors.Remote(err)
	}
	defer f.Close()
	if info, err := f.Stat(); err != nil {
		return apperrors.Remote(err)
	} else if info.Size() > maxUploadBytes {
		return apperrors.New(apperrors.KindRemote, "This clip is too large to send.",
			fmt.Errorf("source is %d bytes, limit %d", info.Size(), maxUploadBytes))
	}

	base := filepath.Base(src)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{"name": "file", "filename": base}))
	partType := mime.TypeByExtension(filepath.Ext(base))
	if partType == "" {
		partType = "application/octet-stream"
	}
	partHeader.Set("Content-Type", partType)
	part, err := mw.CreatePart(partHeader)
	if err != nil {
		return apperrors.Remote(err)
	}
	if _, err := io.Copy(part, httpclient.LimitBody(f, maxUploadBytes)); err != nil {
		return apperrors.Remote(fmt.Errorf("read source: %w", err))
	}
	if err := mw.Close(); err != nil {
		return apperrors.Remote(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(addr, RouteUpload), &body)
	if err != nil {
		return apperrors.Remote(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("filename", base)

	resp, err := c.http.Do(req)
	if err != nil {
		return remoteErr(ctx, err)
	}
	httpclient.Discard(resp)
	if resp.StatusCode != http.StatusOK {
		return apperrors.Remote(fmt.Errorf("upload: unexpected status %s", resp.Status))
	}
	return nil
}

func (c *Client) download(ctx context.Context, addr settings.Address, name string) (catalog.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint(addr, RouteDownload), nil)
	if err != nil {
		return catalog.Entry{}, apperrors.Remote(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return catalog.Entry{}, remoteErr(ctx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		httpclient.Discard(resp)
		return catalog.Entry{}, apperrors.Remote(fmt.Errorf("download: unexpected status %s", resp.Status))
	}

	if err := os.MkdirAll(c.downloadDir, 0700); err != nil {
		return catalog.Entry{}, apperrors.Remote(err)
	}
	dst := filepath.Join(c.downloadDir, name+extensionFor(resp.Header.Get("Content-Type")))
	n, err := files.AtomicWriteFrom(dst, httpclient.LimitBody(resp.Body, httpclient.MaxDownloadBytes), 0600)
	if err != nil {
		return catalog.Entry{}, remoteErr(ctx, fmt.Errorf("download: %w", err))
	}
	logger.Info("Processed audio downloaded", "path", dst, "bytes", n)
	return catalog.Entry{URI: dst, Name: name, Origin: catalog.OriginDownloaded}, nil
}

// extensionFor picks a file extension for an audio Content-Type.
func extensionFor(contentType string) string {
	sub, ok := catalog.AudioSubtype(contentType)
	if !ok {
		return FallbackExt
	}
	switch strings.TrimPrefix(sub, "x-") {
	case "wav", "wave", "vnd.wave":
		return ".wav"
	case "mpeg", "mp3":
		return ".mp3"
	case "mp4", "m4a", "aac":
		return ".m4a"
	case "ogg":
		return ".ogg"
	case "flac":
		return ".flac"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return FallbackExt
}
