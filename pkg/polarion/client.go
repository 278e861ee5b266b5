// Package polarion is a thin client for the Polarion REST API, scoped to the
// read-only queries the diagnostics need: test runs, test cases and
// regression work items.
package polarion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/openshift-netlab/netdiag/pkg/constants"
	"github.com/openshift-netlab/netdiag/pkg/version"
)

type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient builds a client for the given Polarion instance. The token falls
// back to the POLARION_TOKEN environment variable.
func NewClient(baseURL, token string) (*Client, error) {
	if token == "" {
		token = os.Getenv(constants.PolarionTokenEnv)
	}
	if token == "" {
		return nil, errors.Errorf("no Polarion token given and %s is not set", constants.PolarionTokenEnv)
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		// The default transport honors the standard proxy variables.
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type restResource struct {
	ID         string          `json:"id"`
	Attributes json.RawMessage `json:"attributes"`
}

type restDocument struct {
	Data []restResource `json:"data"`
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out *restDocument) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.GetUserAgent())

	klog.V(2).Infof("GET %s", u)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("polarion returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// TestRun is one execution record of a test plan.
type TestRun struct {
	ID       string    `json:"id"`
	Status   string    `json:"status"`
	Finished time.Time `json:"finished,omitempty"`
}

// TestRuns lists the runs of a project finished within the last daysBack
// days.
func (c *Client) TestRuns(ctx context.Context, project string, daysBack int) ([]TestRun, error) {
	since := time.Now().AddDate(0, 0, -daysBack).Format("20060102")
	query := url.Values{}
	query.Set("query", fmt.Sprintf("finishedOn:[%s TO 30000000]", since))

	var doc restDocument
	if err := c.getJSON(ctx, "/projects/"+project+"/testruns", query, &doc); err != nil {
		return nil, err
	}

	var runs []TestRun
	for _, resource := range doc.Data {
		var attrs struct {
			Status     string `json:"status"`
			FinishedOn string `json:"finishedOn"`
		}
		if err := json.Unmarshal(resource.Attributes, &attrs); err != nil {
			klog.V(1).Infof("skipping test run %s: %v", resource.ID, err)
			continue
		}
		run := TestRun{ID: resource.ID, Status: attrs.Status}
		if attrs.FinishedOn != "" {
			if t, err := time.Parse(time.RFC3339, attrs.FinishedOn); err == nil {
				run.Finished = t
			}
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// TestCase is one test definition.
type TestCase struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// TestCases runs a Lucene query against a project's work items of type
// testcase.
func (c *Client) TestCases(ctx context.Context, project, luceneQuery string) ([]TestCase, error) {
	query := url.Values{}
	query.Set("query", "type:testcase")
	if luceneQuery != "" {
		query.Set("query", "type:testcase AND ("+luceneQuery+")")
	}

	var doc restDocument
	if err := c.getJSON(ctx, "/projects/"+project+"/workitems", query, &doc); err != nil {
		return nil, err
	}

	var cases []TestCase
	for _, resource := range doc.Data {
		var attrs struct {
			Title  string `json:"title"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(resource.Attributes, &attrs); err != nil {
			klog.V(1).Infof("skipping work item %s: %v", resource.ID, err)
			continue
		}
		cases = append(cases, TestCase{ID: resource.ID, Title: attrs.Title, Status: attrs.Status})
	}
	return cases, nil
}

// RegressionClosures lists regression work items closed within the last
// daysBack days, with the open duration needed by the mass-closure filter.
func (c *Client) RegressionClosures(ctx context.Context, project string, daysBack int) ([]RegressionClosure, error) {
	since := time.Now().AddDate(0, 0, -daysBack).Format("20060102")
	query := url.Values{}
	query.Set("query", fmt.Sprintf("type:regression AND status:closed AND updated:[%s TO 30000000]", since))

	var doc restDocument
	if err := c.getJSON(ctx, "/projects/"+project+"/workitems", query, &doc); err != nil {
		return nil, err
	}

	var closures []RegressionClosure
	for _, resource := range doc.Data {
		var attrs struct {
			Created string `json:"created"`
			Updated string `json:"updated"`
		}
		if err := json.Unmarshal(resource.Attributes, &attrs); err != nil {
			klog.V(1).Infof("skipping work item %s: %v", resource.ID, err)
			continue
		}
		closure := RegressionClosure{ID: resource.ID}
		created, errCreated := time.Parse(time.RFC3339, attrs.Created)
		updated, errUpdated := time.Parse(time.RFC3339, attrs.Updated)
		if errUpdated != nil {
			klog.V(1).Infof("skipping work item %s: no usable close date", resource.ID)
			continue
		}
		closure.ClosedOn = updated
		if errCreated == nil {
			closure.OpenFor = updated.Sub(created)
		}
		closures = append(closures, closure)
	}
	return closures, nil
}
