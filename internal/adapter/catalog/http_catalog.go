package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Carlos-Arce04/diseno-store/internal/core/domain"
)

// pageSize matches the storefront's product grid.
const pageSize = 6

// HTTPCatalog implements port.Catalog against the public fake-store REST
// API (no API key required).
type HTTPCatalog struct {
	baseURL string
	client  *http.Client
}

func NewHTTPCatalog(baseURL string) *HTTPCatalog {
	return &HTTPCatalog{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPCatalog) ProductByID(ctx context.Context, id int) (*domain.Product, error) {
	var p domain.Product
	err := c.getJSON(ctx, "/products/"+strconv.Itoa(id), nil, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPCatalog) Products(ctx context.Context, page int) ([]domain.Product, error) {
	return c.listProducts(ctx, pageQuery(page))
}

func (c *HTTPCatalog) ProductsByCategory(ctx context.Context, categoryID, page int) ([]domain.Product, error) {
	q := pageQuery(page)
	q.Set("categoryId", strconv.Itoa(categoryID))
	return c.listProducts(ctx, q)
}

func (c *HTTPCatalog) Search(ctx context.Context, query string, page int) ([]domain.Product, error) {
	q := pageQuery(page)
	q.Set("title", query)
	return c.listProducts(ctx, q)
}

func (c *HTTPCatalog) Categories(ctx context.Context) ([]domain.Category, error) {
	var cats []domain.Category
	if err := c.getJSON(ctx, "/categories", nil, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

func (c *HTTPCatalog) listProducts(ctx context.Context, q url.Values) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.getJSON(ctx, "/products", q, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func pageQuery(page int) url.Values {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("offset", strconv.Itoa((page-1)*pageSize))
	q.Set("limit", strconv.Itoa(pageSize))
	return q
}

func (c *HTTPCatalog) getJSON(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		// the fake-store API answers 400 for unknown product ids
		return domain.ErrProductNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("catalog request %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}
