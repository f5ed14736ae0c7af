package handler

import (
	"github.com/gin-gonic/gin"

	problem "github.com/scholarfolio/portfolio-api/pkg/portfolio_api/helpers/problem"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/helpers/util"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/models"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/services"
)

// BlogController binds HTTP requests to the BlogService.
type BlogController struct {
	Service *services.BlogService
}

func NewBlogController(s *services.BlogService) *BlogController {
	return &BlogController{Service: s}
}

type BlogResponse struct {
	Message string          `json:"message"`
	Blog    models.BlogPost `json:"blog"`
}

type DeleteResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

type UploadImageResponse struct {
	Message  string          `json:"message"`
	ImageURL string          `json:"imageUrl"`
	Blog     models.BlogPost `json:"blog"`
}

// ListBlogs handles GET /blogs
func (c *BlogController) ListBlogs(ctx *gin.Context, p *models.ListBlogsParams) ([]models.BlogSummary, error) {
	posts, pagination, err := c.Service.List(ctx.Request.Context(), p)
	if err != nil {
		return nil, err
	}
	util.SetPaginationHeaders(ctx.Request, ctx.Header, pagination)
	return posts, nil
}

// RetrieveBlog handles GET /blogs/:idOrSlug
func (c *BlogController) RetrieveBlog(ctx *gin.Context, params *models.ItemParams) (*models.BlogPost, error) {
	post, err := c.Service.Get(ctx.Request.Context(), params.IDOrSlug)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, problem.NewNotFound(params.IDOrSlug, "blog post not found")
	}
	return post, nil
}

// CreateBlog handles POST /blogs
func (c *BlogController) CreateBlog(ctx *gin.Context, body *models.CreateBlogInput) (*BlogResponse, error) {
	created, err := c.Service.Create(ctx.Request.Context(), body, nil)
	if err != nil {
		return nil, err
	}
	return &BlogResponse{Message: "blog post created", Blog: *created}, nil
}

// UpdateBlog handles PUT /blogs/:idOrSlug
func (c *BlogController) UpdateBlog(ctx *gin.Context, body *models.UpdateBlogInput) (*BlogResponse, error) {
	updated, err := c.Service.Update(ctx.Request.Context(), body.IDOrSlug, body, nil)
	if err != nil {
		return nil, err
	}
	return &BlogResponse{Message: "blog post updated", Blog: *updated}, nil
}

// DeleteBlog handles DELETE /blogs/:idOrSlug
func (c *BlogController) DeleteBlog(ctx *gin.Context, params *models.ItemParams) (*DeleteResponse, error) {
	if err := c.Service.Delete(ctx.Request.Context(), params.IDOrSlug); err != nil {
		return nil, err
	}
	return &DeleteResponse{Message: "blog post deleted", Success: true}, nil
}

// UploadImage handles POST /blogs/upload-image: multipart field "image" plus
// a "blogId" form value naming the post the cover belongs to.
func (c *BlogController) UploadImage(ctx *gin.Context) {
	file, err := ctx.FormFile("image")
	if err != nil {
		respondError(ctx, problem.NewBadRequest("image", "multipart field 'image' is required"))
		return
	}
	blogID := ctx.PostForm("blogId")
	if blogID == "" {
		respondError(ctx, problem.NewBadRequest("blogId", "blogId is required"))
		return
	}
	imageURL, blog, err := c.Service.AttachCover(ctx.Request.Context(), blogID, file)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, UploadImageResponse{Message: "image uploaded", ImageURL: imageURL, Blog: *blog})
}
