// Package sandbox implements the Sandbox Adapter & Lease Manager
// (spec §4.2): one remote execution environment per agent thread,
// exposing fs/shell/git capabilities over Daytona, governed by a
// KV-backed lease with TTL.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	apiclient "github.com/daytonaio/daytona/libs/api-client-go"
	toolbox "github.com/daytonaio/daytona/libs/toolbox-api-client-go"
	"github.com/google/uuid"
)

const (
	defaultDaytonaAPIURL = "https://app.daytona.io/api"
	daytonaSourceHeader  = "agentstart"
)

// DaytonaConfig configures the Daytona sandbox backend.
type DaytonaConfig struct {
	APIKey         string
	JWTToken       string
	OrganizationID string
	APIURL         string
	Target         string
	Snapshot       string
	Image          string
	SandboxClass   string
	WorkspaceDir   string
	NetworkAllow   string
	NetworkEnabled bool
	ReuseSandbox   bool
	AutoStop       *time.Duration
	AutoArchive    *time.Duration
	AutoDelete     *time.Duration
}

type daytonaClient struct {
	apiKey         string
	jwtToken       string
	organizationID string
	apiURL         string
	target         string

	apiClient  *apiclient.APIClient
	httpClient *http.Client

	proxyMu    sync.Mutex
	proxyCache map[string]string
}

func resolveDaytonaConfig(cfg *DaytonaConfig) (*DaytonaConfig, error) {
	resolved := DaytonaConfig{NetworkEnabled: true}
	if cfg != nil {
		resolved = *cfg
	}

	resolved.APIKey = strings.TrimSpace(resolved.APIKey)
	resolved.JWTToken = strings.TrimSpace(resolved.JWTToken)
	resolved.OrganizationID = strings.TrimSpace(resolved.OrganizationID)
	resolved.APIURL = strings.TrimSpace(resolved.APIURL)
	resolved.Target = strings.TrimSpace(resolved.Target)
	resolved.Snapshot = strings.TrimSpace(resolved.Snapshot)
	resolved.Image = strings.TrimSpace(resolved.Image)
	resolved.SandboxClass = strings.TrimSpace(resolved.SandboxClass)
	resolved.WorkspaceDir = strings.TrimSpace(resolved.WorkspaceDir)
	resolved.NetworkAllow = strings.TrimSpace(resolved.NetworkAllow)

	if resolved.APIKey == "" {
		resolved.APIKey = strings.TrimSpace(os.Getenv("DAYTONA_API_KEY"))
	}
	if resolved.JWTToken == "" {
		resolved.JWTToken = strings.TrimSpace(os.Getenv("DAYTONA_JWT_TOKEN"))
	}
	if resolved.OrganizationID == "" {
		resolved.OrganizationID = strings.TrimSpace(os.Getenv("DAYTONA_ORGANIZATION_ID"))
	}
	if resolved.APIURL == "" {
		resolved.APIURL = strings.TrimSpace(os.Getenv("DAYTONA_API_URL"))
		if resolved.APIURL == "" {
			resolved.APIURL = strings.TrimSpace(os.Getenv("DAYTONA_SERVER_URL"))
		}
	}
	if resolved.APIURL == "" {
		resolved.APIURL = defaultDaytonaAPIURL
	}
	if resolved.Target == "" {
		resolved.Target = strings.TrimSpace(os.Getenv("DAYTONA_TARGET"))
	}
	if resolved.Snapshot == "" {
		resolved.Snapshot = strings.TrimSpace(os.Getenv("DAYTONA_SNAPSHOT"))
	}
	if resolved.Image == "" {
		resolved.Image = strings.TrimSpace(os.Getenv("DAYTONA_IMAGE"))
	}
	if resolved.SandboxClass == "" {
		resolved.SandboxClass = strings.TrimSpace(os.Getenv("DAYTONA_SANDBOX_CLASS"))
	}
	if resolved.WorkspaceDir == "" {
		resolved.WorkspaceDir = strings.TrimSpace(os.Getenv("DAYTONA_WORKSPACE_DIR"))
	}
	if resolved.NetworkAllow == "" {
		resolved.NetworkAllow = strings.TrimSpace(os.Getenv("DAYTONA_NETWORK_ALLOW_LIST"))
	}
	if resolved.AutoStop == nil {
		resolved.AutoStop = envDuration("DAYTONA_AUTO_STOP_INTERVAL")
	}
	if resolved.AutoArchive == nil {
		resolved.AutoArchive = envDuration("DAYTONA_AUTO_ARCHIVE_INTERVAL")
	}
	if resolved.AutoDelete == nil {
		resolved.AutoDelete = envDuration("DAYTONA_AUTO_DELETE_INTERVAL")
	}

	if resolved.APIKey == "" && resolved.JWTToken == "" {
		return nil, errors.New("daytona api key or jwt token is required")
	}
	if resolved.JWTToken != "" && resolved.OrganizationID == "" {
		return nil, errors.New("daytona organization id is required when using a jwt token")
	}

	return &resolved, nil
}

func envDuration(name string) *time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return nil
	}
	return &d
}

func newDaytonaClient(cfg *DaytonaConfig) (*daytonaClient, error) {
	if cfg == nil {
		return nil, errors.New("daytona config is required")
	}

	scheme, host, basePath, err := parseBaseURL(cfg.APIURL)
	if err != nil {
		return nil, err
	}

	apiCfg := apiclient.NewConfiguration()
	apiCfg.Host = host
	apiCfg.Scheme = scheme
	apiCfg.HTTPClient = &http.Client{}
	apiCfg.AddDefaultHeader("X-Daytona-Source", daytonaSourceHeader)
	if cfg.JWTToken != "" && cfg.OrganizationID != "" {
		apiCfg.AddDefaultHeader("X-Daytona-Organization-ID", cfg.OrganizationID)
	}
	apiCfg.Servers = apiclient.ServerConfigurations{
		{URL: fmt.Sprintf("%s://%s%s", scheme, host, basePath)},
	}

	return &daytonaClient{
		apiKey:         cfg.APIKey,
		jwtToken:       cfg.JWTToken,
		organizationID: cfg.OrganizationID,
		apiURL:         cfg.APIURL,
		target:         cfg.Target,
		apiClient:      apiclient.NewAPIClient(apiCfg),
		httpClient:     apiCfg.HTTPClient,
		proxyCache:     make(map[string]string),
	}, nil
}

func (c *daytonaClient) authContext(ctx context.Context) context.Context {
	token := c.apiKey
	if token == "" {
		token = c.jwtToken
	}
	return context.WithValue(ctx, apiclient.ContextAccessToken, token)
}

func (c *daytonaClient) getToolboxProxyURL(ctx context.Context, sandboxID, target string) (string, error) {
	cacheKey := strings.TrimSpace(target)
	c.proxyMu.Lock()
	if cacheKey != "" {
		if cached, ok := c.proxyCache[cacheKey]; ok {
			c.proxyMu.Unlock()
			return cached, nil
		}
	}
	c.proxyMu.Unlock()

	result, httpResp, err := c.apiClient.SandboxAPI.GetToolboxProxyUrl(c.authContext(ctx), sandboxID).Execute()
	if err != nil {
		return "", fmt.Errorf("get toolbox proxy url: %w", formatAPIError(err, httpResp))
	}

	proxyURL := strings.TrimRight(result.GetUrl(), "/")
	if cacheKey != "" {
		c.proxyMu.Lock()
		c.proxyCache[cacheKey] = proxyURL
		c.proxyMu.Unlock()
	}

	return proxyURL, nil
}

func (c *daytonaClient) toolboxClient(ctx context.Context, sandboxID, target string) (*toolbox.APIClient, error) {
	proxyURL, err := c.getToolboxProxyURL(ctx, sandboxID, target)
	if err != nil {
		return nil, err
	}

	toolboxURL := fmt.Sprintf("%s/%s", strings.TrimRight(proxyURL, "/"), sandboxID)
	scheme, host, basePath, err := parseBaseURL(toolboxURL)
	if err != nil {
		return nil, err
	}

	cfg := toolbox.NewConfiguration()
	cfg.Host = host
	cfg.Scheme = scheme
	cfg.HTTPClient = c.httpClient
	cfg.AddDefaultHeader("Authorization", "Bearer "+c.authToken())
	cfg.AddDefaultHeader("X-Daytona-Source", daytonaSourceHeader)
	if c.jwtToken != "" && c.organizationID != "" {
		cfg.AddDefaultHeader("X-Daytona-Organization-ID", c.organizationID)
	}
	cfg.Servers = toolbox.ServerConfigurations{
		{URL: fmt.Sprintf("%s://%s%s", scheme, host, basePath)},
	}

	return toolbox.NewAPIClient(cfg), nil
}

func (c *daytonaClient) authToken() string {
	if c.apiKey != "" {
		return c.apiKey
	}
	return c.jwtToken
}

// createSandbox provisions a new Daytona sandbox per cfg and waits for
// it to reach the started state.
func (c *daytonaClient) createSandbox(ctx context.Context, cfg *DaytonaConfig) (*apiclient.Sandbox, error) {
	createReq := apiclient.NewCreateSandbox()
	createReq.SetName(fmt.Sprintf("agentstart-%s", uuid.NewString()))

	if c.target != "" {
		createReq.SetTarget(c.target)
	}
	if cfg.Snapshot != "" {
		createReq.SetSnapshot(cfg.Snapshot)
	} else if cfg.Image != "" {
		createReq.SetBuildInfo(apiclient.CreateBuildInfo{
			DockerfileContent: fmt.Sprintf("FROM %s", cfg.Image),
		})
	}
	if cfg.SandboxClass != "" {
		createReq.SetClass(cfg.SandboxClass)
	}
	if cfg.NetworkAllow != "" && cfg.NetworkEnabled {
		createReq.SetNetworkAllowList(cfg.NetworkAllow)
	}
	if !cfg.NetworkEnabled {
		createReq.SetNetworkBlockAll(true)
	}
	if minutes := durationToMinutes(cfg.AutoStop); minutes != nil {
		createReq.SetAutoStopInterval(*minutes)
	}
	if minutes := durationToMinutes(cfg.AutoArchive); minutes != nil {
		createReq.SetAutoArchiveInterval(*minutes)
	}
	if minutes := durationToMinutes(cfg.AutoDelete); minutes != nil {
		createReq.SetAutoDeleteInterval(*minutes)
	}

	sandbox, httpResp, err := c.apiClient.SandboxAPI.CreateSandbox(c.authContext(ctx)).CreateSandbox(*createReq).Execute()
	if err != nil {
		return nil, fmt.Errorf("daytona create sandbox: %w", formatAPIError(err, httpResp))
	}

	state := sandbox.GetState()
	if state == apiclient.SANDBOXSTATE_ERROR || state == apiclient.SANDBOXSTATE_BUILD_FAILED {
		return nil, fmt.Errorf("daytona sandbox failed to start: %s", state)
	}
	if state != apiclient.SANDBOXSTATE_STARTED {
		if err := c.waitForSandbox(ctx, sandbox.GetId()); err != nil {
			return nil, err
		}
	}
	return sandbox, nil
}

func (c *daytonaClient) waitForSandbox(ctx context.Context, sandboxID string) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		sandbox, httpResp, err := c.apiClient.SandboxAPI.GetSandbox(c.authContext(ctx), sandboxID).Execute()
		if err != nil {
			return fmt.Errorf("daytona sandbox status: %w", formatAPIError(err, httpResp))
		}

		switch sandbox.GetState() {
		case apiclient.SANDBOXSTATE_STARTED:
			return nil
		case apiclient.SANDBOXSTATE_ERROR, apiclient.SANDBOXSTATE_BUILD_FAILED, apiclient.SANDBOXSTATE_DESTROYED:
			return fmt.Errorf("daytona sandbox failed: %s", sandbox.GetState())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// attachSandbox verifies a previously-created sandbox is still present
// and running, starting it if merely stopped.
func (c *daytonaClient) attachSandbox(ctx context.Context, sandboxID string) (*apiclient.Sandbox, error) {
	sandbox, httpResp, err := c.apiClient.SandboxAPI.GetSandbox(c.authContext(ctx), sandboxID).Execute()
	if err != nil {
		return nil, fmt.Errorf("daytona sandbox status: %w", formatAPIError(err, httpResp))
	}

	switch sandbox.GetState() {
	case apiclient.SANDBOXSTATE_STARTED:
		return sandbox, nil
	case apiclient.SANDBOXSTATE_STOPPED:
		_, httpResp, err := c.apiClient.SandboxAPI.StartSandbox(c.authContext(ctx), sandboxID).Execute()
		if err != nil {
			return nil, fmt.Errorf("daytona start sandbox: %w", formatAPIError(err, httpResp))
		}
		if err := c.waitForSandbox(ctx, sandboxID); err != nil {
			return nil, err
		}
		restarted, httpResp, err := c.apiClient.SandboxAPI.GetSandbox(c.authContext(ctx), sandboxID).Execute()
		if err != nil {
			return nil, fmt.Errorf("daytona sandbox status: %w", formatAPIError(err, httpResp))
		}
		return restarted, nil
	default:
		return nil, fmt.Errorf("daytona sandbox unavailable: %s", sandbox.GetState())
	}
}

func (c *daytonaClient) deleteSandbox(ctx context.Context, sandboxID string) error {
	_, _, err := c.apiClient.SandboxAPI.DeleteSandbox(c.authContext(ctx), sandboxID).Execute()
	return err
}

func parseBaseURL(raw string) (string, string, string, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		return "", "", "", errors.New("empty url")
	}
	if !strings.Contains(normalized, "://") {
		normalized = "https://" + normalized
	}

	parsed, err := url.Parse(normalized)
	if err != nil {
		return "", "", "", err
	}

	scheme := parsed.Scheme
	host := parsed.Host
	basePath := strings.TrimRight(parsed.Path, "/")
	if scheme == "" || host == "" {
		return "", "", "", fmt.Errorf("invalid url: %s", raw)
	}

	return scheme, host, basePath, nil
}

func formatAPIError(err error, resp *http.Response) error {
	if resp == nil {
		return err
	}
	return fmt.Errorf("%s (status %s)", err.Error(), resp.Status)
}

func formatToolboxError(err error, resp *http.Response) error {
	if resp == nil {
		return err
	}
	return fmt.Errorf("%s (status %s)", err.Error(), resp.Status)
}

func durationToMinutes(value *time.Duration) *int32 {
	if value == nil {
		return nil
	}
	minutes := int32(*value / time.Minute)
	return &minutes
}
