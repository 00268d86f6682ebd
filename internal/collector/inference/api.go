package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jenastar/aura-agent/pkg/model"
)

// ProbeAPI abstracts the inference server probe for testability.
type ProbeAPI interface {
	Probe(ctx context.Context) (model.InferenceService, error)
}

type ollamaClient struct {
	baseURL string
	host    string
	client  *http.Client
}

// NewOllamaClient creates a ProbeAPI against an Ollama base URL such
// as http://127.0.0.1:11434.
func NewOllamaClient(baseURL string, client *http.Client) (ProbeAPI, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama url: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &ollamaClient{baseURL: baseURL, host: u.Host, client: client}, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	} `json:"models"`
}

type psResponse struct {
	Models []struct {
		Name     string `json:"name"`
		Size     int64  `json:"size"`
		SizeVRAM int64  `json:"size_vram"`
	} `json:"models"`
}

func (c *ollamaClient) Probe(ctx context.Context) (model.InferenceService, error) {
	svc := model.InferenceService{Host: c.host}

	start := time.Now()
	var tags tagsResponse
	if err := c.getJSON(ctx, "/api/tags", &tags); err != nil {
		return svc, err
	}
	svc.Up = true
	svc.TagsLatencySeconds = time.Since(start).Seconds()

	// Indexed by position: appends below may reallocate the backing
	// array, so element pointers would go stale.
	byName := make(map[string]int, len(tags.Models))
	svc.Models = make([]model.InferenceModel, 0, len(tags.Models))
	for _, m := range tags.Models {
		svc.Models = append(svc.Models, model.InferenceModel{Name: m.Name, SizeBytes: m.Size})
		byName[m.Name] = len(svc.Models) - 1
	}

	// /api/ps lists only the models currently resident in VRAM.
	var ps psResponse
	if err := c.getJSON(ctx, "/api/ps", &ps); err != nil {
		// Tags answered, so the service is up; loaded-model detail is
		// just missing this probe.
		return svc, nil
	}
	for _, m := range ps.Models {
		if i, ok := byName[m.Name]; ok {
			svc.Models[i].Loaded = true
			svc.Models[i].VRAMBytes = m.SizeVRAM
			continue
		}
		svc.Models = append(svc.Models, model.InferenceModel{
			Name:      m.Name,
			SizeBytes: m.Size,
			VRAMBytes: m.SizeVRAM,
			Loaded:    true,
		})
	}
	return svc, nil
}

func (c *ollamaClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama %s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
