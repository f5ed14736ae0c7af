package services

import (
	"context"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"

	problem "github.com/scholarfolio/portfolio-api/pkg/portfolio_api/helpers/problem"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/models"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/repositories"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/uploads"
	"github.com/scholarfolio/portfolio-api/pkg/tools"
)

// PaperService orchestrates the paper lifecycle, including the uploaded
// document file that backs the download endpoint.
type PaperService struct {
	repo   *repositories.Store[models.Paper]
	assets *uploads.Adapter
}

func NewPaperService(repo *repositories.Store[models.Paper], assets *uploads.Adapter) *PaperService {
	return &PaperService{repo: repo, assets: assets}
}

// List returns papers newest first, optionally filtered by category.
func (s *PaperService) List(ctx context.Context, p *models.ListPapersParams) ([]models.Paper, models.Pagination, error) {
	filters := map[string]any{}
	if p.Category != "" {
		filters["category"] = p.Category
	}
	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	pagination := paginate(int(total), p.Page, p.PerPage)
	offset := (pagination.CurrentPage - 1) * pagination.RecordsPerPage
	papers, err := s.repo.GetAll(ctx, filters, pagination.RecordsPerPage, offset)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return papers, pagination, nil
}

// Get resolves an all-digit argument as a numeric id first, falling back to
// a slug lookup when no record has that id.
func (s *PaperService) Get(ctx context.Context, idOrSlug string) (*models.Paper, error) {
	if id, ok := parseID(idOrSlug); ok {
		paper, err := s.repo.GetByID(ctx, id)
		if err != nil || paper != nil {
			return paper, err
		}
	}
	return s.repo.FindOne(ctx, map[string]any{"slug": idOrSlug})
}

// Create validates the input, allocates a unique slug and persists the
// paper; an uploaded document is stored and referenced in the same
// operation.
func (s *PaperService) Create(ctx context.Context, input *models.CreatePaperInput, file *multipart.FileHeader) (*models.Paper, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, problem.NewBadRequest("title", "title is required")
	}
	if strings.TrimSpace(input.Abstract) == "" {
		return nil, problem.NewBadRequest("abstract", "abstract is required")
	}

	slug, err := allocateSlug(ctx, title, strings.TrimSpace(input.Slug), s.slugExists)
	if err != nil {
		return nil, err
	}

	published := true
	if input.Published != nil {
		published = *input.Published
	}
	paper := &models.Paper{
		Title:     title,
		Slug:      slug,
		Abstract:  input.Abstract,
		Authors:   input.Authors,
		Keywords:  input.Keywords,
		Category:  strings.TrimSpace(input.Category),
		Venue:     strings.TrimSpace(input.Venue),
		Year:      input.Year,
		Published: published,
	}
	if file != nil {
		ref, contentType, err := s.assets.SaveFile(file)
		if err != nil {
			return nil, err
		}
		paper.FileURL = &ref
		paper.FileType = contentType
	}
	if err := s.repo.Create(ctx, paper); err != nil {
		return nil, err
	}
	return paper, nil
}

// Update applies a partial update; a new document replaces the old file,
// which is unlinked best-effort.
func (s *PaperService) Update(ctx context.Context, idOrSlug string, input *models.UpdatePaperInput, file *multipart.FileHeader) (*models.Paper, error) {
	existing, err := s.Get(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, problem.NewNotFound(idOrSlug, "paper not found")
	}

	fields := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, problem.NewBadRequest("title", "title is required")
		}
		fields["title"] = title
	}
	if input.Abstract != nil {
		if strings.TrimSpace(*input.Abstract) == "" {
			return nil, problem.NewBadRequest("abstract", "abstract is required")
		}
		fields["abstract"] = *input.Abstract
	}
	if input.Slug != nil {
		slug, err := s.renameSlug(ctx, existing.Slug, *input.Slug)
		if err != nil {
			return nil, err
		}
		if slug != "" {
			fields["slug"] = slug
		}
	}
	if input.Authors != nil {
		fields["authors"] = []string(*input.Authors)
	}
	if input.Keywords != nil {
		fields["keywords"] = []string(*input.Keywords)
	}
	if input.Category != nil {
		fields["category"] = strings.TrimSpace(*input.Category)
	}
	if input.Venue != nil {
		fields["venue"] = strings.TrimSpace(*input.Venue)
	}
	if input.Year != nil {
		fields["year"] = *input.Year
	}
	if input.Published != nil {
		fields["published"] = *input.Published
	}

	var oldFile *string
	if file != nil {
		ref, contentType, err := s.assets.SaveFile(file)
		if err != nil {
			return nil, err
		}
		fields["file_url"] = ref
		fields["file_type"] = contentType
		oldFile = existing.FileURL
	}

	updated, err := s.repo.Update(ctx, existing.ID, fields)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, problem.NewNotFound(idOrSlug, "paper not found")
	}
	if oldFile != nil {
		s.cleanupAsset(*oldFile)
	}
	return updated, nil
}

// Delete removes the paper and best-effort unlinks its document file.
func (s *PaperService) Delete(ctx context.Context, idOrSlug string) error {
	existing, err := s.Get(ctx, idOrSlug)
	if err != nil {
		return err
	}
	if existing == nil {
		return problem.NewNotFound(idOrSlug, "paper not found")
	}
	if existing.FileURL != nil {
		s.cleanupAsset(*existing.FileURL)
	}
	removed, err := s.repo.Remove(ctx, existing.ID)
	if err != nil {
		return err
	}
	if !removed {
		return problem.NewNotFound(idOrSlug, "paper not found")
	}
	return nil
}

// Download resolves the stored document for a paper. Returns the absolute
// file path, the content type recorded at upload time and a download name.
func (s *PaperService) Download(ctx context.Context, idOrSlug string) (string, string, string, error) {
	paper, err := s.Get(ctx, idOrSlug)
	if err != nil {
		return "", "", "", err
	}
	if paper == nil || paper.FileURL == nil {
		return "", "", "", problem.NewNotFound(idOrSlug, "no file available for this paper")
	}
	path, ok := s.assets.Resolve(*paper.FileURL)
	if !ok {
		return "", "", "", problem.NewNotFound(idOrSlug, "no file available for this paper")
	}
	contentType := paper.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return path, contentType, paper.Slug + filepath.Ext(path), nil
}

func (s *PaperService) slugExists(ctx context.Context, slug string) (bool, error) {
	return s.repo.Exists(ctx, map[string]any{"slug": slug})
}

func (s *PaperService) renameSlug(ctx context.Context, current, requested string) (string, error) {
	slug := strings.TrimSpace(requested)
	if slug == "" || slug == current {
		return "", nil
	}
	if len(slug) < minSlugLength {
		return "", problem.NewBadRequest("slug", "slug must be at least 3 characters")
	}
	taken, err := s.slugExists(ctx, slug)
	if err != nil {
		return "", err
	}
	if taken {
		return "", problem.NewConflict("slug", "slug already in use: "+slug)
	}
	return slug, nil
}

func (s *PaperService) cleanupAsset(ref string) {
	assets := s.assets
	tools.Dispatch(context.Background(), "remove paper asset", func(context.Context) error {
		if err := assets.Remove(ref); err != nil {
			log.Printf("[WARN] could not remove %s: %v", ref, err)
		}
		return nil
	})
}
