package toolapi

import (
	"cmp"
	"slices"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/javi11/skillvault/internal/api"
	"github.com/javi11/skillvault/internal/auth"
	"github.com/javi11/skillvault/internal/database"
	"github.com/javi11/skillvault/internal/slug"
)

// CategoryView is one category as returned to tools. Legacy categories come
// from the free-text category of entries that have no normalized one.
type CategoryView struct {
	Key         string  `json:"key"`
	ID          *string `json:"id"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description string  `json:"description,omitempty"`
	Icon        string  `json:"icon,omitempty"`
	Color       string  `json:"color,omitempty"`
	IsLegacy    bool    `json:"is_legacy"`
}

// SkillView is the metadata of one skill as returned to tools
type SkillView struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Category        string     `json:"category"`
	CategoryID      *string    `json:"category_id"`
	Tags            []string   `json:"tags"`
	Level           string     `json:"level"`
	Status          string     `json:"status"`
	SourceURL       string     `json:"source_url"`
	HasArchive      bool       `json:"has_archive"`
	RemoteUpdatedAt *time.Time `json:"remote_updated_at"`
}

func newSkillView(e *database.CatalogEntry) SkillView {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return SkillView{
		ID:              e.ID,
		Title:           e.Title,
		Description:     e.Description,
		Category:        e.Category,
		CategoryID:      e.CategoryID,
		Tags:            tags,
		Level:           e.Level,
		Status:          string(e.Status),
		SourceURL:       e.URL,
		HasArchive:      e.HasArchive(),
		RemoteUpdatedAt: e.RemoteUpdatedAt,
	}
}

// handleListCategories handles GET /categories
func (s *Server) handleListCategories(c *fiber.Ctx) error {
	ctx := c.UserContext()
	conn := auth.GetConnectionFromContext(c)

	entries, err := s.allowedEntries(ctx, conn)
	if err != nil {
		return api.RespondInternalError(c, "Failed to load skills", err.Error())
	}

	byKey := make(map[string]CategoryView)
	for _, e := range entries {
		if e.CategoryID != nil && *e.CategoryID != "" {
			key := "id:" + *e.CategoryID
			if _, ok := byKey[key]; ok {
				continue
			}
			category, err := s.categories.GetByID(ctx, *e.CategoryID)
			if err != nil {
				return api.RespondInternalError(c, "Failed to load categories", err.Error())
			}
			if category == nil {
				continue
			}
			byKey[key] = CategoryView{
				Key:         key,
				ID:          &category.ID,
				Name:        category.Name,
				Slug:        category.Slug,
				Description: category.Description,
				Icon:        category.Icon,
				Color:       category.Color,
			}
			continue
		}

		legacySlug := slug.Make(e.Category)
		if legacySlug == "" {
			continue
		}
		key := "legacy:" + legacySlug
		if _, ok := byKey[key]; !ok {
			byKey[key] = CategoryView{Key: key, Name: e.Category, Slug: legacySlug, IsLegacy: true}
		}
	}

	categories := make([]CategoryView, 0, len(byKey))
	for _, v := range byKey {
		categories = append(categories, v)
	}
	slices.SortFunc(categories, func(a, b CategoryView) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Key, b.Key))
	})

	return api.RespondSuccess(c, fiber.Map{"categories": categories})
}

// handleListSkills handles GET /skills?categoryId=&category=
func (s *Server) handleListSkills(c *fiber.Ctx) error {
	ctx := c.UserContext()
	conn := auth.GetConnectionFromContext(c)

	entries, err := s.allowedEntries(ctx, conn)
	if err != nil {
		return api.RespondInternalError(c, "Failed to list skills", err.Error())
	}

	categoryID := c.Query("categoryId")
	categorySlug := c.Query("category")

	// A slug naming a normalized category filters by its id
	if categoryID == "" && categorySlug != "" {
		category, err := s.categories.GetBySlug(ctx, categorySlug)
		if err != nil {
			return api.RespondInternalError(c, "Failed to resolve category", err.Error())
		}
		if category != nil {
			categoryID = category.ID
		}
	}

	skills := make([]SkillView, 0, len(entries))
	for _, e := range entries {
		switch {
		case categoryID != "":
			hasID := e.CategoryID != nil && *e.CategoryID == categoryID
			legacyMatch := categorySlug != "" && e.CategoryID == nil && slug.Make(e.Category) == categorySlug
			if !hasID && !legacyMatch {
				continue
			}
		case categorySlug != "":
			if e.CategoryID != nil || slug.Make(e.Category) != categorySlug {
				continue
			}
		}
		skills = append(skills, newSkillView(e))
	}

	return api.RespondSuccess(c, fiber.Map{"skills": skills})
}

// grantedEntry loads the skillId entry, writing the error response itself
// when the id is missing, not granted or unknown
func (s *Server) grantedEntry(c *fiber.Ctx) (*database.CatalogEntry, bool, error) {
	skillID := c.Query("skillId")
	if skillID == "" {
		return nil, false, api.RespondBadRequest(c, "Missing skillId", "")
	}

	conn := auth.GetConnectionFromContext(c)
	if !conn.Allows(skillID) {
		return nil, false, api.RespondForbidden(c, "Skill not allowed for this token", skillID)
	}

	entry, err := s.catalog.GetEntry(c.UserContext(), skillID)
	if err != nil {
		return nil, false, api.RespondInternalError(c, "Failed to load skill", err.Error())
	}
	if entry == nil || entry.UserID != conn.UserID {
		return nil, false, api.RespondNotFound(c, "Skill", skillID)
	}
	return entry, true, nil
}

// handleSkillDescription handles GET /skill-description?skillId=
func (s *Server) handleSkillDescription(c *fiber.Ctx) error {
	entry, ok, err := s.grantedEntry(c)
	if !ok {
		return err
	}
	return api.RespondSuccess(c, fiber.Map{"skill": newSkillView(entry)})
}
