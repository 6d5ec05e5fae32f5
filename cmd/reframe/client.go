package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"reframe/internal/api"
)

type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{
		base: base,
		http: &http.Client{Timeout: 10 * time.Minute},
	}
}

type daemonStatus struct {
	Running      bool   `json:"running"`
	RegistryPath string `json:"registry_path"`
	LockFilePath string `json:"lock_file_path"`
	InFlight     int    `json:"in_flight"`
	Capacity     int    `json:"capacity"`
	Jobs         struct {
		Total      int `json:"total"`
		Queued     int `json:"queued"`
		Processing int `json:"processing"`
		Completed  int `json:"completed"`
		Failed     int `json:"failed"`
	} `json:"jobs"`
}

func (c *client) submit(ctx context.Context, path, style string) (api.SubmitResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		return api.SubmitResponse{}, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		if style != "" {
			if err := writer.WriteField("style", style); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/jobs", pr)
	if err != nil {
		return api.SubmitResponse{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp api.SubmitResponse
	if err := c.do(req, http.StatusAccepted, &resp); err != nil {
		return api.SubmitResponse{}, err
	}
	return resp, nil
}

func (c *client) status(ctx context.Context, id string) (api.StatusDocument, error) {
	var doc api.StatusDocument
	err := c.get(ctx, "/api/jobs/"+id, &doc)
	return doc, err
}

func (c *client) list(ctx context.Context) ([]api.StatusDocument, error) {
	var payload struct {
		Jobs []api.StatusDocument `json:"jobs"`
	}
	if err := c.get(ctx, "/api/jobs", &payload); err != nil {
		return nil, err
	}
	return payload.Jobs, nil
}

func (c *client) health(ctx context.Context) (api.HealthDocument, error) {
	var doc api.HealthDocument
	err := c.get(ctx, "/api/health", &doc)
	return doc, err
}

func (c *client) daemonStatus(ctx context.Context) (daemonStatus, error) {
	var doc daemonStatus
	err := c.get(ctx, "/api/status", &doc)
	return doc, err
}

func (c *client) get(ctx context.Context, route string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+route, nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusOK, out)
}

func (c *client) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reach daemon at %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon: %s", payload.Error)
	}
	return fmt.Errorf("daemon returned status %d", resp.StatusCode)
}
