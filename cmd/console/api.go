package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/colborne/fable-engine/pkg/actor"
	"github.com/colborne/fable-engine/pkg/encounter"
	"github.com/colborne/fable-engine/pkg/story"
)

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func apiError(status int, body []byte) error {
	var errorResp ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err != nil {
		return fmt.Errorf("API returned status %d: %s", status, string(body))
	}
	return fmt.Errorf("%s", errorResp.Error)
}

func getOwner(client *http.Client, baseURL string, ownerID int) (*actor.Record, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/actors/pc/%d", baseURL, ownerID))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body)
	}

	var rec actor.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse actor response: %w", err)
	}
	return &rec, nil
}

type storyWindowResponse struct {
	Messages []story.Message `json:"messages"`
}

func getStoryWindow(client *http.Client, baseURL string, ownerID, limit int) ([]story.Message, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/story/%d?limit=%d", baseURL, ownerID, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body)
	}

	var windowResp storyWindowResponse
	if err := json.Unmarshal(body, &windowResp); err != nil {
		return nil, fmt.Errorf("failed to parse story response: %w", err)
	}
	return windowResp.Messages, nil
}

// getActiveEncounter returns nil without error when the owner is not in
// combat; the side panel renders that state itself.
func getActiveEncounter(client *http.Client, baseURL string, ownerID int) (*encounter.Encounter, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/encounters/%d", baseURL, ownerID))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body)
	}

	var enc encounter.Encounter
	if err := json.Unmarshal(body, &enc); err != nil {
		return nil, fmt.Errorf("failed to parse encounter response: %w", err)
	}
	return &enc, nil
}

type appendMessageRequest struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

func appendStoryMessage(client *http.Client, baseURL string, ownerID int, content string, tags []string) (*story.Message, error) {
	req := appendMessageRequest{
		Role:    story.RolePlayer,
		Content: content,
		Tags:    tags,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(
		fmt.Sprintf("%s/v1/story/%d", baseURL, ownerID),
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, apiError(resp.StatusCode, body)
	}

	var msg story.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message response: %w", err)
	}
	return &msg, nil
}
