package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Carlos-Arce04/diseno-store/internal/core/domain"
)

// MySQLCatalog implements port.Catalog on a self-hosted products table,
// for deployments that do not want to depend on the public catalog API.
//
// Expected schema:
//
//	products(id, title, price, description, image, category_id)
//	categories(id, name, image)
type MySQLCatalog struct {
	db *sql.DB
}

func NewMySQLCatalog(db *sql.DB) *MySQLCatalog {
	return &MySQLCatalog{db: db}
}

func (m *MySQLCatalog) ProductByID(ctx context.Context, id int) (*domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT p.id, p.title, p.price, p.description, p.image, p.category_id, c.name
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = ?`, id,
	).Scan(&p.ID, &p.Title, &p.Price, &p.Description, &p.Image, &p.Category.ID, &p.Category.Name)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLCatalog) Products(ctx context.Context, page int) ([]domain.Product, error) {
	return m.listProducts(ctx, `
		SELECT id, title, price, description, image, category_id
		FROM products ORDER BY id LIMIT ? OFFSET ?`,
		pageSize, pageOffset(page))
}

func (m *MySQLCatalog) ProductsByCategory(ctx context.Context, categoryID, page int) ([]domain.Product, error) {
	return m.listProducts(ctx, `
		SELECT id, title, price, description, image, category_id
		FROM products WHERE category_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		categoryID, pageSize, pageOffset(page))
}

func (m *MySQLCatalog) Search(ctx context.Context, query string, page int) ([]domain.Product, error) {
	return m.listProducts(ctx, `
		SELECT id, title, price, description, image, category_id
		FROM products WHERE title LIKE ? ORDER BY id LIMIT ? OFFSET ?`,
		"%"+query+"%", pageSize, pageOffset(page))
}

func (m *MySQLCatalog) Categories(ctx context.Context) ([]domain.Category, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, name, image FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var cats []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Image); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (m *MySQLCatalog) listProducts(ctx context.Context, query string, args ...interface{}) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Price, &p.Description, &p.Image, &p.Category.ID); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func pageOffset(page int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}
