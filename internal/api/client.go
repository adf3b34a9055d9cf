package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"ocr-verifier/internal/model"
)

const (
	opVerify          = "verify"
	opBatchVerify     = "batch_verify"
	opDeleteRegions   = "delete_regions"
	opDeleteImage     = "delete_image"
	opUpload          = "upload"
	opGenerateDataset = "generate_dataset"
	opConvertToLMDB   = "convert_to_lmdb"
	opReprocess       = "reprocess_images"
	opStats           = "stats"
	opRegions         = "regions"
)

// Client talks to the review server's JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// New returns a client for baseURL. A zero timeout means requests never time out
// on their own; callers still control cancellation through the context.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        slog.Default(),
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// WithLogger replaces the logger used for request diagnostics.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	if l != nil {
		c.log = l
	}
	return c
}

type envelope struct {
	Success      bool            `json:"success"`
	Error        string          `json:"error,omitempty"`
	Message      string          `json:"message,omitempty"`
	Count        int             `json:"count,omitempty"`
	RegionsFound int             `json:"regions_found,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

type updatesRequest struct {
	Updates []model.Update `json:"updates"`
}

type itemsRequest struct {
	Items []model.Key `json:"items"`
}

type imageRequest struct {
	ImageName string `json:"image_name"`
}

// Verify posts a batch of update records to /api/verify.
func (c *Client) Verify(ctx context.Context, updates []model.Update) error {
	if updates == nil {
		updates = []model.Update{}
	}
	_, err := c.postJSON(ctx, opVerify, "/api/verify", updatesRequest{Updates: updates})
	return err
}

// BatchVerify marks items verified and returns the server's count.
func (c *Client) BatchVerify(ctx context.Context, items []model.Key) (int, error) {
	env, err := c.postJSON(ctx, opBatchVerify, "/api/batch_verify", itemsRequest{Items: items})
	if err != nil {
		return 0, err
	}
	return env.Count, nil
}

// DeleteRegions removes items and returns the server's count.
func (c *Client) DeleteRegions(ctx context.Context, items []model.Key) (int, error) {
	env, err := c.postJSON(ctx, opDeleteRegions, "/api/delete_regions", itemsRequest{Items: items})
	if err != nil {
		return 0, err
	}
	return env.Count, nil
}

// DeleteImage removes every region of one source image.
func (c *Client) DeleteImage(ctx context.Context, imageName string) (string, error) {
	env, err := c.postJSON(ctx, opDeleteImage, "/api/delete_image", imageRequest{ImageName: imageName})
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (c *Client) GenerateDataset(ctx context.Context) (string, error) {
	env, err := c.postJSON(ctx, opGenerateDataset, "/api/generate_dataset", struct{}{})
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (c *Client) ConvertToLMDB(ctx context.Context) (string, error) {
	env, err := c.postJSON(ctx, opConvertToLMDB, "/api/convert_to_lmdb", struct{}{})
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (c *Client) ReprocessImages(ctx context.Context) (string, error) {
	env, err := c.postJSON(ctx, opReprocess, "/api/reprocess_images", struct{}{})
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// Upload sends one image as the multipart "file" field.
func (c *Client) Upload(ctx context.Context, filename string, body io.Reader) (model.UploadResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return model.UploadResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return model.UploadResult{}, fmt.Errorf("write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return model.UploadResult{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return model.UploadResult{}, &TransportError{Op: opUpload, Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	env, err := c.do(opUpload, req)
	if err != nil {
		return model.UploadResult{}, err
	}
	return model.UploadResult{Message: env.Message, RegionsFound: env.RegionsFound}, nil
}

// Stats fetches the dashboard counters.
func (c *Client) Stats(ctx context.Context) (model.Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/stats", nil)
	if err != nil {
		return model.Stats{}, &TransportError{Op: opStats, Err: err}
	}
	env, err := c.do(opStats, req)
	if err != nil {
		return model.Stats{}, err
	}
	var st model.Stats
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &st); err != nil {
			return model.Stats{}, &TransportError{Op: opStats, Err: fmt.Errorf("decode data: %w", err)}
		}
	}
	return st, nil
}

// Regions loads the review page and parses its item cards.
func (c *Client) Regions(ctx context.Context) ([]model.Region, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return nil, &TransportError{Op: opRegions, Err: err}
	}
	req.Header.Set("Accept", "text/html")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("api: request failed", "op", opRegions, "err", err)
		return nil, &TransportError{Op: opRegions, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &TransportError{Op: opRegions, Status: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(b)))}
	}
	regions, err := ParseCards(resp.Body, c.log)
	if err != nil {
		return nil, &TransportError{Op: opRegions, Err: err}
	}
	c.log.Info("api: loaded regions", "count", len(regions), "dur", time.Since(start))
	return regions, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload any) (envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return envelope{}, fmt.Errorf("%s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return envelope{}, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req)
}

// do sends req and decodes the {success, message|error} envelope. Non-2xx responses
// with a decodable envelope are reported as AppError so the server's message survives.
func (c *Client) do(op string, req *http.Request) (envelope, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("api: request failed", "op", op, "err", err)
		return envelope{}, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, &TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return envelope{}, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w (body: %q)", err, snippet)}
	}
	if !env.Success {
		c.log.Info("api: request rejected", "op", op, "status", resp.StatusCode, "error", env.Error)
		return env, &AppError{Op: op, Status: resp.StatusCode, Message: env.Error}
	}
	c.log.Debug("api: request ok", "op", op, "status", resp.StatusCode, "dur", time.Since(start))
	return env, nil
}
