// Package catalog reads the public planning.domains catalog: collections,
// the domains of a collection and the problems of a domain.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessionsync/internal/remote"
	"github.com/GriffinCanCode/sessionsync/internal/types"
)

// DefaultURL is the classical planning catalog.
const DefaultURL = "https://api.planning.domains/json/classical/"

// Operation names, also used as metric labels.
const (
	OpCollections = "catalog_collections"
	OpDomains     = "catalog_domains"
	OpProblems    = "catalog_problems"
)

// Client reads the catalog. Failures are *remote.Error values.
type Client struct {
	http    *httpclient.Client
	metrics *monitoring.Metrics
}

// NewClient creates a catalog client over a transport whose base URL is the
// catalog root.
func NewClient(transport *httpclient.Client) *Client {
	return &Client{http: transport}
}

// WithMetrics attaches a metrics collector.
func (c *Client) WithMetrics(metrics *monitoring.Metrics) *Client {
	c.metrics = metrics
	return c
}

type collectionRecord struct {
	ID          int    `json:"collection_id"`
	Name        string `json:"collection_name"`
	Description string `json:"description"`
	DomainSet   string `json:"domain_set"`
}

type domainRecord struct {
	ID          int    `json:"domain_id"`
	Name        string `json:"domain_name"`
	Description string `json:"description"`
}

type problemRecord struct {
	ID         int    `json:"problem_id"`
	Problem    string `json:"problem"`
	DomainURL  string `json:"domain_url"`
	ProblemURL string `json:"problem_url"`
}

type envelope[T any] struct {
	Result []T `json:"result"`
}

// Collections lists the catalog collections in server order.
func (c *Client) Collections(ctx context.Context) ([]types.Collection, error) {
	records, err := get[collectionRecord](ctx, c, OpCollections, "collections")
	if err != nil {
		return nil, err
	}

	out := make([]types.Collection, 0, len(records))
	for _, r := range records {
		domains := []int{}
		if r.DomainSet != "" {
			if err := sonic.UnmarshalString(r.DomainSet, &domains); err != nil {
				return nil, &remote.Error{
					Op:     OpCollections,
					Target: "collections/" + strconv.Itoa(r.ID),
					Kind:   remote.ErrRemoteRejected,
					Err:    fmt.Errorf("malformed domain_set: %w", err),
				}
			}
		}
		out = append(out, types.Collection{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			DomainSet:   domains,
		})
	}
	return out, nil
}

// Domains lists the domains of a collection, sorted by label.
func (c *Client) Domains(ctx context.Context, collectionID int) ([]types.Domain, error) {
	records, err := get[domainRecord](ctx, c, OpDomains, "domains/"+strconv.Itoa(collectionID))
	if err != nil {
		return nil, err
	}

	out := make([]types.Domain, 0, len(records))
	for _, r := range records {
		out = append(out, types.Domain{ID: r.ID, Name: r.Name, Description: r.Description})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label() < out[j].Label() })
	return out, nil
}

// Problems lists the problems of a domain, sorted by label.
func (c *Client) Problems(ctx context.Context, domainID int) ([]types.Problem, error) {
	records, err := get[problemRecord](ctx, c, OpProblems, "problems/"+strconv.Itoa(domainID))
	if err != nil {
		return nil, err
	}

	out := make([]types.Problem, 0, len(records))
	for _, r := range records {
		out = append(out, types.Problem{
			ID:         r.ID,
			Name:       r.Problem,
			DomainURL:  r.DomainURL,
			ProblemURL: r.ProblemURL,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label() < out[j].Label() })
	return out, nil
}

func get[T any](ctx context.Context, c *Client, op, path string) ([]T, error) {
	timer := monitoring.NewTimer(c.metrics, op)

	resp, err := c.http.Execute(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetHeader("Accept", "application/json").Get(path)
	})
	if err != nil {
		timer.Stop("unavailable")
		return nil, &remote.Error{Op: op, Target: path, Kind: remote.ErrRemoteUnavailable, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		timer.Stop("rejected")
		return nil, &remote.Error{Op: op, Target: path, StatusCode: resp.StatusCode(), Kind: remote.ErrRemoteRejected}
	}

	var body envelope[T]
	if err := sonic.Unmarshal(resp.Body(), &body); err != nil {
		timer.Stop("rejected")
		return nil, &remote.Error{Op: op, Target: path, Kind: remote.ErrRemoteRejected, Err: fmt.Errorf("malformed catalog body: %w", err)}
	}

	timer.Stop("success")
	if body.Result == nil {
		return []T{}, nil
	}
	return body.Result, nil
}
