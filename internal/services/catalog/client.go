package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"poslink/internal/cache"
	"poslink/internal/config"
	"poslink/internal/logger"

	"golang.org/x/time/rate"
)

const (
	// pageSize is the POS service page size. A page with fewer rows is
	// treated as the last one; the service sends no has-more flag.
	pageSize = 100
	// maxPages caps the pagination loop in case the last-page heuristic
	// never triggers.
	maxPages = 60

	keyCategories      = "catalog:categories"
	keyProductsAll     = "catalog:products:all"
	keyProductsPageFmt = "catalog:products:page:%d"
)

// Client talks to the remote POS catalog service. It owns timeouts and
// response caching; it does not retry, the polling caller does.
type Client struct {
	baseURL        string
	token          string
	locationID     string
	salesChannelID string

	// Product and stock payloads can be tens of megabytes, so they get a
	// much longer timeout than the rest of the API.
	httpClient *http.Client
	bulkClient *http.Client

	cache   *cache.Store
	limiter *rate.Limiter
	logger  *logger.Logger
	pageTTL time.Duration
}

func NewClient(cfg *config.Config, cacheStore *cache.Store, log *logger.Logger) *Client {
	return &Client{
		baseURL:        cfg.POSAPIURL,
		token:          cfg.POSAPIToken,
		locationID:     cfg.POSLocationID,
		salesChannelID: cfg.POSSalesChannelID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		bulkClient: &http.Client{
			Timeout: 3 * time.Minute,
		},
		cache:   cacheStore,
		limiter: rate.NewLimiter(rate.Limit(4), 4),
		logger:  log,
		pageTTL: time.Duration(cfg.CacheTTLHours) * time.Hour,
	}
}

type CategoriesResult struct {
	Categories []RemoteCategory
	Cached     bool
}

// FetchCategories returns the full remote category list, served from cache
// when a fresh copy exists.
func (c *Client) FetchCategories(ctx context.Context) (*CategoriesResult, error) {
	var cached []RemoteCategory
	hit, err := c.cache.Get(keyCategories, &cached)
	if err != nil {
		return nil, err
	}
	if hit {
		return &CategoriesResult{Categories: cached, Cached: true}, nil
	}

	var categories []RemoteCategory
	if err := c.doRequest(ctx, c.httpClient, "GET", "/categories", nil, &categories); err != nil {
		return nil, err
	}
	for i := range categories {
		if err := categories[i].Validate(); err != nil {
			return nil, &DecodeError{Err: err}
		}
	}

	if err := c.cache.Set(keyCategories, categories, c.pageTTL); err != nil {
		c.logger.Error("Failed to cache categories: %v", err)
	}
	return &CategoriesResult{Categories: categories}, nil
}

type ProductsPage struct {
	Products []RemoteProduct
	Cached   bool
}

// FetchProductsPage returns one page of the remote product list. Pages are
// cached independently so a re-driven sweep does not re-download them.
func (c *Client) FetchProductsPage(ctx context.Context, page int) (*ProductsPage, error) {
	key := fmt.Sprintf(keyProductsPageFmt, page)

	var cached []RemoteProduct
	hit, err := c.cache.Get(key, &cached)
	if err != nil {
		return nil, err
	}
	if hit {
		return &ProductsPage{Products: cached, Cached: true}, nil
	}

	var products []RemoteProduct
	path := fmt.Sprintf("/products?page=%d", page)
	if err := c.doRequest(ctx, c.bulkClient, "GET", path, nil, &products); err != nil {
		return nil, err
	}
	for i := range products {
		if err := products[i].Validate(); err != nil {
			return nil, &DecodeError{Err: err}
		}
	}

	if err := c.cache.Set(key, products, c.pageTTL); err != nil {
		c.logger.Error("Failed to cache products page %d: %v", page, err)
	}
	return &ProductsPage{Products: products}, nil
}

type ProductsResult struct {
	Products []RemoteProduct
	Cached   bool
	// Truncated means the page cap was hit before the last-page heuristic
	// triggered; the accumulated list is still usable.
	Truncated bool
}

// FetchAllProducts paginates through the whole remote product list. The
// aggregate is cached under its own key so repeated full-catalog reads skip
// re-pagination entirely.
func (c *Client) FetchAllProducts(ctx context.Context) (*ProductsResult, error) {
	var cached []RemoteProduct
	hit, err := c.cache.Get(keyProductsAll, &cached)
	if err != nil {
		return nil, err
	}
	if hit {
		return &ProductsResult{Products: cached, Cached: true}, nil
	}

	var all []RemoteProduct
	truncated := false
	for page := 0; ; page++ {
		if page >= maxPages {
			c.logger.Warn("Product pagination hit the %d page cap, returning %d accumulated products", maxPages, len(all))
			truncated = true
			break
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Err: err}
		}

		resp, err := c.FetchProductsPage(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Products...)

		if len(resp.Products) < pageSize {
			break
		}
	}

	if err := c.cache.Set(keyProductsAll, all, c.pageTTL); err != nil {
		c.logger.Error("Failed to cache product aggregate: %v", err)
	}
	return &ProductsResult{Products: all, Truncated: truncated}, nil
}

// FetchStock returns the remote stock quantity for one variation at the
// configured location.
func (c *Client) FetchStock(ctx context.Context, productID, variationID int64) (int, error) {
	req := stockCheckRequest{
		ProductID:      productID,
		VariationID:    variationID,
		LocationID:     c.locationID,
		SalesChannelID: c.salesChannelID,
	}
	var resp stockCheckResponse
	if err := c.doRequest(ctx, c.bulkClient, "POST", "/stock/check", req, &resp); err != nil {
		return 0, err
	}
	return resp.Quantity, nil
}

// PostInventoryDelta records an outbound stock movement. Quantity is signed;
// order decrements pass a negative value.
func (c *Client) PostInventoryDelta(ctx context.Context, productID, variationID int64, quantity int, note string) (int, error) {
	req := stockMovementRequest{
		ProductID:   productID,
		VariationID: variationID,
		LocationID:  c.locationID,
		Quantity:    quantity,
		Notes:       note,
		Type:        "OUT",
	}
	var resp stockMovementResponse
	if err := c.doRequest(ctx, c.httpClient, "POST", "/stock/movements", req, &resp); err != nil {
		return 0, err
	}
	return resp.NewStock, nil
}

// ClearProductCache removes every cached product page and the aggregate.
// Category and stock caches belong to their own synchronizers.
func (c *Client) ClearProductCache() error {
	return c.cache.DeletePrefix("catalog:products:")
}

// ClearCategoryCache removes the cached category list.
func (c *Client) ClearCategoryCache() error {
	return c.cache.Delete(keyCategories)
}

func (c *Client) doRequest(ctx context.Context, httpClient *http.Client, method, path string, payload, out interface{}) error {
	if c.token == "" {
		return ErrUnconfigured
	}

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}
