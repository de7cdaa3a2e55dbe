// Package inference talks to externally hosted classifiers.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TFServingClient calls a TensorFlow Serving REST endpoint. It satisfies
// voice.Model.
type TFServingClient struct {
	serviceURL string
	modelName  string
	client     *http.Client
}

type predictRequest struct {
	Instances [][][]float64 `json:"instances"`
}

// PredictResponse is the body returned by :predict.
type PredictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// NewTFServingClient creates a client for modelName hosted at serviceURL.
func NewTFServingClient(serviceURL, modelName string) *TFServingClient {
	if serviceURL == "" {
		serviceURL = "http://localhost:8501"
	}
	if modelName == "" {
		modelName = "voice_sentiment"
	}

	return &TFServingClient{
		serviceURL: strings.TrimRight(serviceURL, "/"),
		modelName:  modelName,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *TFServingClient) WithHTTPClient(client *http.Client) *TFServingClient {
	c.client = client
	return c
}

func (c *TFServingClient) modelURL() string {
	return c.serviceURL + "/v1/models/" + c.modelName
}

// HealthCheck verifies the model is loaded and available.
func (c *TFServingClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelURL(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("model service not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model service unhealthy: status %d", resp.StatusCode)
	}

	var status struct {
		ModelVersionStatus []struct {
			State string `json:"state"`
		} `json:"model_version_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode model status: %w", err)
	}
	for _, v := range status.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			return nil
		}
	}
	return fmt.Errorf("model %s has no available version", c.modelName)
}

// Predict sends one instance and returns its class probabilities.
func (c *TFServingClient) Predict(ctx context.Context, input [][]float64) ([]float64, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("empty model input")
	}

	body, err := json.Marshal(predictRequest{Instances: [][][]float64{input}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL()+":predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("model service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var predResp PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&predResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if predResp.Error != "" {
		return nil, fmt.Errorf("model service error: %s", predResp.Error)
	}
	if len(predResp.Predictions) != 1 || len(predResp.Predictions[0]) == 0 {
		return nil, fmt.Errorf("received %d predictions for one instance", len(predResp.Predictions))
	}

	return predResp.Predictions[0], nil
}
