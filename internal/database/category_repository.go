package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CategoryRepository handles normalized skill categories
type CategoryRepository struct {
	db querier
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db querier) *CategoryRepository {
	return &CategoryRepository{db: db}
}

const categoryColumns = `id, name, slug, description, icon, color, is_predefined, user_id, skill_count, created_at`

// List returns all categories, predefined first, then by name
func (r *CategoryRepository) List(ctx context.Context) ([]*Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY is_predefined DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// GetByID retrieves a category by id, returning nil when absent
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*Category, error) {
	return r.getOne(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
}

// GetBySlug retrieves a category by slug, returning nil when absent
func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (*Category, error) {
	return r.getOne(ctx, `SELECT `+categoryColumns+` FROM categories WHERE slug = $1`, slug)
}

func (r *CategoryRepository) getOne(ctx context.Context, query string, arg string) (*Category, error) {
	category, err := scanCategory(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

// Create inserts a user-defined category
func (r *CategoryRepository) Create(ctx context.Context, category *Category) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	category.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, category.ID, category.Name, category.Slug, category.Description, category.Icon, category.Color,
		category.IsPredefined, category.UserID, category.SkillCount, category.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// IncrementCount bumps the skill count of a category
func (r *CategoryRepository) IncrementCount(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE categories SET skill_count = skill_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment category count: %w", err)
	}
	return nil
}

func scanCategory(s scanner) (*Category, error) {
	var c Category
	err := s.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Icon, &c.Color,
		&c.IsPredefined, &c.UserID, &c.SkillCount, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
