package services

import (
	"context"
	"fmt"
	"log"
	"mime/multipart"
	"strings"

	problem "github.com/scholarfolio/portfolio-api/pkg/portfolio_api/helpers/problem"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/models"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/repositories"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/uploads"
	"github.com/scholarfolio/portfolio-api/pkg/tools"
)

const (
	minTitleLength   = 3
	minContentLength = 10
	excerptLength    = 200
)

// BlogService orchestrates the blog post lifecycle: validate, allocate slug,
// persist, reconcile the cover image with the filesystem.
type BlogService struct {
	repo   *repositories.Store[models.BlogPost]
	assets *uploads.Adapter
}

func NewBlogService(repo *repositories.Store[models.BlogPost], assets *uploads.Adapter) *BlogService {
	return &BlogService{repo: repo, assets: assets}
}

// List returns the listing view of posts, newest first. Note: the public
// listing includes unpublished posts, matching the admin console's
// expectation that the same endpoint feeds both views.
func (s *BlogService) List(ctx context.Context, p *models.ListBlogsParams) ([]models.BlogSummary, models.Pagination, error) {
	posts, err := s.repo.GetAll(ctx, nil, 0, 0)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	if p.Tag != "" {
		filtered := posts[:0]
		for _, post := range posts {
			if hasTag(post.Tags, p.Tag) {
				filtered = append(filtered, post)
			}
		}
		posts = filtered
	}

	pagination := paginate(len(posts), p.Page, p.PerPage)
	start, end := pageBounds(pagination, len(posts))

	summaries := make([]models.BlogSummary, 0, end-start)
	for _, post := range posts[start:end] {
		summaries = append(summaries, toBlogSummary(post))
	}
	return summaries, pagination, nil
}

// Get resolves an all-digit argument as a numeric id first, falling back to
// a slug lookup when no record has that id. A purely numeric slug stays
// reachable until another post claims the matching id.
func (s *BlogService) Get(ctx context.Context, idOrSlug string) (*models.BlogPost, error) {
	if id, ok := parseID(idOrSlug); ok {
		post, err := s.repo.GetByID(ctx, id)
		if err != nil || post != nil {
			return post, err
		}
	}
	return s.repo.FindOne(ctx, map[string]any{"slug": idOrSlug})
}

// Create validates the input, allocates a unique slug, persists the record
// and attaches the cover image when one was uploaded.
func (s *BlogService) Create(ctx context.Context, input *models.CreateBlogInput, file *multipart.FileHeader) (*models.BlogPost, error) {
	title := strings.TrimSpace(input.Title)
	if len(title) < minTitleLength {
		return nil, problem.NewBadRequest("title", fmt.Sprintf("title must be at least %d characters", minTitleLength))
	}
	if len(strings.TrimSpace(input.Content)) < minContentLength {
		return nil, problem.NewBadRequest("content", fmt.Sprintf("content must be at least %d characters", minContentLength))
	}

	slug, err := allocateSlug(ctx, title, strings.TrimSpace(input.Slug), s.slugExists)
	if err != nil {
		return nil, err
	}

	published := true
	if input.Published != nil {
		published = *input.Published
	}
	post := &models.BlogPost{
		Title:     title,
		Slug:      slug,
		Content:   input.Content,
		Tags:      input.Tags,
		Published: published,
	}
	if file != nil {
		ref, err := s.assets.SaveImage(file)
		if err != nil {
			return nil, err
		}
		post.CoverImage = &ref
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Update applies a partial update; a new cover image replaces the old file,
// which is unlinked best-effort.
func (s *BlogService) Update(ctx context.Context, idOrSlug string, input *models.UpdateBlogInput, file *multipart.FileHeader) (*models.BlogPost, error) {
	existing, err := s.Get(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, problem.NewNotFound(idOrSlug, "blog post not found")
	}

	fields := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if len(title) < minTitleLength {
			return nil, problem.NewBadRequest("title", fmt.Sprintf("title must be at least %d characters", minTitleLength))
		}
		fields["title"] = title
	}
	if input.Content != nil {
		if len(strings.TrimSpace(*input.Content)) < minContentLength {
			return nil, problem.NewBadRequest("content", fmt.Sprintf("content must be at least %d characters", minContentLength))
		}
		fields["content"] = *input.Content
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
	if input.Tags != nil {
		fields["tags"] = *input.Tags
	}
	if input.Published != nil {
		fields["published"] = *input.Published
	}

	var oldCover *string
	if file != nil {
		ref, err := s.assets.SaveImage(file)
		if err != nil {
			return nil, err
		}
		fields["cover_image"] = ref
		oldCover = existing.CoverImage
	}

	updated, err := s.repo.Update(ctx, existing.ID, fields)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, problem.NewNotFound(idOrSlug, "blog post not found")
	}
	if oldCover != nil {
		s.cleanupAsset(*oldCover)
	}
	return updated, nil
}

// Delete removes the post and best-effort unlinks its cover image.
func (s *BlogService) Delete(ctx context.Context, idOrSlug string) error {
	existing, err := s.Get(ctx, idOrSlug)
	if err != nil {
		return err
	}
	if existing == nil {
		return problem.NewNotFound(idOrSlug, "blog post not found")
	}
	if existing.CoverImage != nil {
		s.cleanupAsset(*existing.CoverImage)
	}
	removed, err := s.repo.Remove(ctx, existing.ID)
	if err != nil {
		return err
	}
	if !removed {
		return problem.NewNotFound(idOrSlug, "blog post not found")
	}
	return nil
}

// AttachCover stores an uploaded image and writes its reference onto the
// post, replacing (and best-effort deleting) any previous cover.
func (s *BlogService) AttachCover(ctx context.Context, idOrSlug string, file *multipart.FileHeader) (string, *models.BlogPost, error) {
	existing, err := s.Get(ctx, idOrSlug)
	if err != nil {
		return "", nil, err
	}
	if existing == nil {
		return "", nil, problem.NewNotFound(idOrSlug, "blog post not found")
	}
	ref, err := s.assets.SaveImage(file)
	if err != nil {
		return "", nil, err
	}
	updated, err := s.repo.Update(ctx, existing.ID, map[string]any{"cover_image": ref})
	if err != nil {
		return "", nil, err
	}
	if existing.CoverImage != nil {
		s.cleanupAsset(*existing.CoverImage)
	}
	return ref, updated, nil
}

func (s *BlogService) slugExists(ctx context.Context, slug string) (bool, error) {
	return s.repo.Exists(ctx, map[string]any{"slug": slug})
}

// renameSlug validates an explicit slug rename. Returns "" when the slug is
// unchanged. A collision fails the whole update, nothing is mutated.
func (s *BlogService) renameSlug(ctx context.Context, current, requested string) (string, error) {
	slug := strings.TrimSpace(requested)
	if slug == "" || slug == current {
		return "", nil
	}
	if len(slug) < minSlugLength {
		return "", problem.NewBadRequest("slug", fmt.Sprintf("slug must be at least %d characters", minSlugLength))
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

func (s *BlogService) cleanupAsset(ref string) {
	assets := s.assets
	tools.Dispatch(context.Background(), "remove blog asset", func(context.Context) error {
		if err := assets.Remove(ref); err != nil {
			log.Printf("[WARN] could not remove %s: %v", ref, err)
		}
		return nil
	})
}

func toBlogSummary(post models.BlogPost) models.BlogSummary {
	return models.BlogSummary{
		ID:         post.ID,
		Title:      post.Title,
		Slug:       post.Slug,
		Excerpt:    excerpt(post.Content),
		Tags:       post.Tags,
		Published:  post.Published,
		CoverImage: post.CoverImage,
		CreatedAt:  post.CreatedAt,
	}
}

func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptLength {
		return content
	}
	return strings.TrimSpace(string(runes[:excerptLength])) + "…"
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
