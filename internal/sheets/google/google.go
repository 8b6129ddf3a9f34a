package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"studiocharts/internal/core"
	"studiocharts/internal/log"
	ports "studiocharts/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	brandsRange   string
	moviesRange   string
	logger        *log.Logger
}

// Ensure interface conformance
var (
	_ ports.TableReader = (*Client)(nil)
	_ ports.TableWriter = (*Client)(nil)
)

// Config selects the spreadsheet, the A1 ranges holding each schema and the
// OAuth material. Client and token may be given inline or as file paths.
type Config struct {
	SpreadsheetID   string
	BrandsRange     string
	MoviesRange     string
	OAuthClientFile string
	OAuthTokenFile  string
	OAuthClientJSON string
	OAuthTokenJSON  string
}

// New creates a Sheets client authorised with a stored OAuth token.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg, logger), nil
}

// NewWithService wraps an existing service. Used by tests against a fake
// endpoint.
func NewWithService(svc *gsheet.Service, cfg Config, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	brands := strings.TrimSpace(cfg.BrandsRange)
	if brands == "" {
		brands = "brand!A:E"
	}
	movies := strings.TrimSpace(cfg.MoviesRange)
	if movies == "" {
		movies = "peliculas!A:E"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		brandsRange:   brands,
		moviesRange:   movies,
		logger:        logger.WithComponent(log.ComponentSource),
	}
}

// newSheetsService builds an OAuth2 HTTP client from the installed-app client
// credentials and a token produced by cmd/oauth-init.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	clientJSON, err := inlineOrFile(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	if len(clientJSON) == 0 {
		return nil, errors.New("missing OAuth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	tokenJSON, err := inlineOrFile(cfg.OAuthTokenJSON, cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	if len(tokenJSON) == 0 {
		return nil, errors.New("missing OAuth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}

	oauthCfg, err := oauthgoogle.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	// The pooled client carries the token refresh requests too.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	httpClient := oauthCfg.Client(ctx, &tok)

	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func inlineOrFile(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if path = strings.TrimSpace(path); path != "" {
		return os.ReadFile(path)
	}
	return nil, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

func (c *Client) ReadBrands(ctx context.Context) (core.Table, error) {
	return c.readTable(ctx, c.brandsRange)
}

func (c *Client) ReadMovies(ctx context.Context) (core.Table, error) {
	return c.readTable(ctx, c.moviesRange)
}

func (c *Client) readTable(ctx context.Context, rng string) (core.Table, error) {
	if c.svc == nil {
		return core.Table{}, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return core.Table{}, fmt.Errorf("read %s: %w", rng, err)
	}
	t, err := parseValues(resp.Values)
	if err != nil {
		return core.Table{}, fmt.Errorf("parse %s: %w", rng, err)
	}
	c.logger.DebugContext(ctx, "Read sheet range", "range", rng, log.FieldRows, len(t.Records))
	return t, nil
}

func (c *Client) ReplaceBrands(ctx context.Context, t core.Table) error {
	return c.replace(ctx, c.brandsRange, t, core.BrandColumns)
}

func (c *Client) ReplaceMovies(ctx context.Context, t core.Table) error {
	return c.replace(ctx, c.moviesRange, t, core.MovieColumns)
}

// replace clears rng and writes the header plus every record as raw values.
func (c *Client) replace(ctx context.Context, rng string, t core.Table, cols []string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}

	vr := &gsheet.ValueRange{Values: toValues(t, cols)}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, startCell(rng), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}

	c.logger.InfoContext(ctx, "Replaced sheet range", "range", rng, log.FieldRows, len(t.Records))
	return nil
}

// startCell turns "sheet!A:E" into "sheet!A1" for updates.
func startCell(rng string) string {
	sheet, cells, ok := strings.Cut(rng, "!")
	if !ok {
		return rng
	}
	first, _, _ := strings.Cut(cells, ":")
	first = strings.TrimRight(first, "0123456789")
	return sheet + "!" + first + "1"
}
