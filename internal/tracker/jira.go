package tracker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tracklinkhq/tracklink/internal/models"
)

// jiraSession implements Session against the Jira REST API (v2, which
// accepts plain/wiki-markup comment bodies and visibility scoping).
type jiraSession struct {
	url        string
	username   string
	apiToken   string
	httpClient *http.Client
}

func newJiraSession(siteURL, username, apiToken string) *jiraSession {
	return &jiraSession{
		url:      strings.TrimSuffix(siteURL, "/"),
		username: username,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ping verifies the instance answers at all before any per-issue work.
func (s *jiraSession) ping(ctx context.Context) error {
	_, err := s.doRequest(ctx, http.MethodGet, s.url+"/rest/api/2/serverInfo", nil)
	return err
}

func (s *jiraSession) ExistsIssue(ctx context.Context, id string) (bool, error) {
	apiURL := fmt.Sprintf("%s/rest/api/2/issue/%s?fields=id", s.url, url.PathEscape(id))
	_, err := s.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		// Only a 404 is a definitive answer. An auth refusal says nothing
		// about the issue and must fail the check, or rejected credentials
		// would make every candidate look nonexistent.
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("check issue %s: %w", id, err)
	}
	return true, nil
}

const issueFields = "summary,status,issuetype,priority,assignee,reporter"

func (s *jiraSession) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	apiURL := fmt.Sprintf("%s/rest/api/2/issue/%s?fields=%s", s.url, url.PathEscape(id), issueFields)

	body, err := s.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", id, err)
	}

	var raw struct {
		Key    string `json:"key"`
		Fields struct {
			Summary string `json:"summary"`
			Status  struct {
				Name string `json:"name"`
			} `json:"status"`
			IssueType struct {
				Name string `json:"name"`
			} `json:"issuetype"`
			Priority struct {
				Name string `json:"name"`
			} `json:"priority"`
			Assignee struct {
				Name        string `json:"name"`
				DisplayName string `json:"displayName"`
			} `json:"assignee"`
			Reporter struct {
				Name        string `json:"name"`
				DisplayName string `json:"displayName"`
			} `json:"reporter"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse issue response: %w", err)
	}

	issue := &models.Issue{
		ID:       strings.ToUpper(raw.Key),
		Summary:  raw.Fields.Summary,
		Status:   raw.Fields.Status.Name,
		Type:     raw.Fields.IssueType.Name,
		Priority: raw.Fields.Priority.Name,
		Assignee: displayName(raw.Fields.Assignee.DisplayName, raw.Fields.Assignee.Name),
		Reporter: displayName(raw.Fields.Reporter.DisplayName, raw.Fields.Reporter.Name),
	}
	if issue.ID == "" {
		issue.ID = strings.ToUpper(id)
	}
	return issue, nil
}

func displayName(display, login string) string {
	if display != "" {
		return display
	}
	return login
}

func (s *jiraSession) AddComment(ctx context.Context, id, body, groupVisibility, roleVisibility string) error {
	payload := map[string]any{"body": body}
	// Jira accepts a single visibility restriction per comment.
	if groupVisibility != "" {
		payload["visibility"] = map[string]string{"type": "group", "value": groupVisibility}
	} else if roleVisibility != "" {
		payload["visibility"] = map[string]string{"type": "role", "value": roleVisibility}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal comment: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/2/issue/%s/comment", s.url, url.PathEscape(id))
	if _, err := s.doRequest(ctx, http.MethodPost, apiURL, data); err != nil {
		return fmt.Errorf("add comment to %s: %w", id, err)
	}
	return nil
}

func (s *jiraSession) UpdateCustomField(ctx context.Context, id, fieldID, value string) error {
	payload := map[string]any{
		"fields": map[string]string{fieldID: value},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal field update: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/2/issue/%s", s.url, url.PathEscape(id))
	if _, err := s.doRequest(ctx, http.MethodPut, apiURL, data); err != nil {
		return fmt.Errorf("update field %s on %s: %w", fieldID, id, err)
	}
	return nil
}

// doRequest executes an authenticated request, retrying transient failures
// with bounded exponential backoff. Definitive 4xx refusals are returned
// immediately: 404 wrapped as ErrNotFound, 401/403 as ErrNotPermitted.
func (s *jiraSession) doRequest(ctx context.Context, method, apiURL string, body []byte) ([]byte, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	var respBody []byte
	op := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		s.setAuth(req)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return err // network failure, retryable
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusNoContent:
			respBody = nil
			return nil
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			respBody = data
			return nil
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w (HTTP %d)", ErrNotFound, resp.StatusCode))
		case resp.StatusCode == http.StatusUnauthorized,
			resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(fmt.Errorf("%w (HTTP %d)", ErrNotPermitted, resp.StatusCode))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("tracker returned %d: %s", resp.StatusCode, truncate(data, 200))
		default:
			return backoff.Permanent(fmt.Errorf("tracker returned %d: %s", resp.StatusCode, truncate(data, 200)))
		}
	}

	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return respBody, nil
}

func (s *jiraSession) setAuth(req *http.Request) {
	if s.username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(s.username + ":" + s.apiToken))
		req.Header.Set("Authorization", "Basic "+auth)
	} else if s.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiToken)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
