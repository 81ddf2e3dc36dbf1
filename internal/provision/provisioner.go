package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"punktlich/internal/httpclient"
)

var ErrMissingToken = errors.New("hosting API token missing")

type Provisioner struct {
	apiURL string
	token  string
	base   *http.Client
	dryRun bool
	out    io.Writer
}

type Option func(*Provisioner)

// DryRun prints each request to w instead of sending it.
func DryRun(w io.Writer) Option {
	return func(p *Provisioner) { p.dryRun, p.out = true, w }
}

func WithHTTPClient(hc *http.Client) Option { return func(p *Provisioner) { p.base = hc } }

func NewProvisioner(apiURL, token string, opts ...Option) *Provisioner {
	p := &Provisioner{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		base:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type createRepoRequest struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	Private      bool   `json:"private"`
	SDK          string `json:"sdk"`
	Hardware     string `json:"hardware,omitempty"`
}

type keyValue struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// Result summarises a registration.
type Result struct {
	RepoID       string
	Created      bool // false when the space already existed
	SecretsSet   int
	VariablesSet int
}

// Register creates the space (an existing space counts as success), then sets
// its secrets and variables. Secrets must be resolved first.
func (p *Provisioner) Register(ctx context.Context, m *Manifest) (Result, error) {
	res := Result{RepoID: m.RepoID()}
	if p.token == "" && !p.dryRun {
		return res, ErrMissingToken
	}

	create := createRepoRequest{
		Type:         "space",
		Name:         m.Name,
		Organization: m.Organization,
		Private:      m.Private,
		SDK:          m.SDK,
		Hardware:     m.Hardware,
	}
	err := p.post(ctx, "/api/repos/create", create, create)
	switch {
	case err == nil:
		res.Created = true
		log.Printf("provision: created space %s", res.RepoID)
	case httpclient.IsStatus(err, http.StatusConflict):
		log.Printf("provision: space %s already exists", res.RepoID)
	default:
		return res, fmt.Errorf("create space %s: %w", res.RepoID, err)
	}

	for _, s := range m.Secrets {
		body := keyValue{Key: s.Key, Value: s.value, Description: s.Description}
		shown := keyValue{Key: s.Key, Value: "REDACTED", Description: s.Description}
		if err := p.post(ctx, "/api/spaces/"+res.RepoID+"/secrets", body, shown); err != nil {
			return res, fmt.Errorf("set secret %s: %w", s.Key, err)
		}
		res.SecretsSet++
	}
	for _, v := range m.RuntimeVariables() {
		body := keyValue{Key: v.Key, Value: v.Value, Description: v.Description}
		if err := p.post(ctx, "/api/spaces/"+res.RepoID+"/variables", body, body); err != nil {
			return res, fmt.Errorf("set variable %s: %w", v.Key, err)
		}
		res.VariablesSet++
	}
	return res, nil
}

// post sends body as JSON. In dry-run mode shown is printed instead.
func (p *Provisioner) post(ctx context.Context, path string, body, shown any) error {
	if p.dryRun {
		b, err := json.Marshal(shown)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(p.out, "POST %s%s %s\n", p.apiURL, path, b)
		return err
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := httpclient.Do(p.client(ctx), req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (p *Provisioner) client(ctx context.Context) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.base)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: p.token}))
}
