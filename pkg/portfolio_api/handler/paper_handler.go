package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	problem "github.com/scholarfolio/portfolio-api/pkg/portfolio_api/helpers/problem"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/helpers/util"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/models"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/services"
)

// PaperController binds HTTP requests to the PaperService. Create and update
// accept either JSON or multipart bodies, because the admin console sends
// multipart whenever a document file rides along.
type PaperController struct {
	Service *services.PaperService
}

func NewPaperController(s *services.PaperService) *PaperController {
	return &PaperController{Service: s}
}

type PaperResponse struct {
	Message string       `json:"message"`
	Paper   models.Paper `json:"paper"`
}

// ListPapers handles GET /papers
func (c *PaperController) ListPapers(ctx *gin.Context, p *models.ListPapersParams) ([]models.Paper, error) {
	papers, pagination, err := c.Service.List(ctx.Request.Context(), p)
	if err != nil {
		return nil, err
	}
	util.SetPaginationHeaders(ctx.Request, ctx.Header, pagination)
	return papers, nil
}

// RetrievePaper handles GET /papers/:idOrSlug
func (c *PaperController) RetrievePaper(ctx *gin.Context, params *models.ItemParams) (*models.Paper, error) {
	paper, err := c.Service.Get(ctx.Request.Context(), params.IDOrSlug)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, problem.NewNotFound(params.IDOrSlug, "paper not found")
	}
	return paper, nil
}

// CreatePaper handles POST /papers
func (c *PaperController) CreatePaper(ctx *gin.Context) {
	input, file, err := bindCreatePaper(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}
	created, err := c.Service.Create(ctx.Request.Context(), input, file)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, PaperResponse{Message: "paper created", Paper: *created})
}

// UpdatePaper handles PUT /papers/:idOrSlug
func (c *PaperController) UpdatePaper(ctx *gin.Context) {
	input, file, err := bindUpdatePaper(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}
	updated, err := c.Service.Update(ctx.Request.Context(), ctx.Param("idOrSlug"), input, file)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, PaperResponse{Message: "paper updated", Paper: *updated})
}

// DeletePaper handles DELETE /papers/:idOrSlug
func (c *PaperController) DeletePaper(ctx *gin.Context, params *models.ItemParams) (*DeleteResponse, error) {
	if err := c.Service.Delete(ctx.Request.Context(), params.IDOrSlug); err != nil {
		return nil, err
	}
	return &DeleteResponse{Message: "paper deleted", Success: true}, nil
}

// DownloadPaper handles GET /papers/:idOrSlug/download, streaming the stored
// document with the content type recorded at upload time.
func (c *PaperController) DownloadPaper(ctx *gin.Context) {
	path, contentType, name, err := c.Service.Download(ctx.Request.Context(), ctx.Param("idOrSlug"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Header("Content-Type", contentType)
	ctx.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	ctx.File(path)
}

func bindCreatePaper(ctx *gin.Context) (*models.CreatePaperInput, *multipart.FileHeader, error) {
	if !isMultipart(ctx) {
		var input models.CreatePaperInput
		if err := ctx.ShouldBindJSON(&input); err != nil {
			return nil, nil, problem.NewBadRequest("body", err.Error())
		}
		return &input, nil, nil
	}

	input := &models.CreatePaperInput{
		Title:    ctx.PostForm("title"),
		Abstract: ctx.PostForm("abstract"),
		Slug:     ctx.PostForm("slug"),
		Authors:  models.ParseStringList(ctx.PostForm("authors")),
		Keywords: models.ParseStringList(ctx.PostForm("keywords")),
		Category: ctx.PostForm("category"),
		Venue:    ctx.PostForm("venue"),
	}
	if v := ctx.PostForm("year"); v != "" {
		if year, err := strconv.Atoi(v); err == nil {
			input.Year = year
		}
	}
	if v := ctx.PostForm("published"); v != "" {
		published := v == "true" || v == "1"
		input.Published = &published
	}
	file, _ := ctx.FormFile("file")
	return input, file, nil
}

func bindUpdatePaper(ctx *gin.Context) (*models.UpdatePaperInput, *multipart.FileHeader, error) {
	if !isMultipart(ctx) {
		var input models.UpdatePaperInput
		if err := ctx.ShouldBindJSON(&input); err != nil {
			return nil, nil, problem.NewBadRequest("body", err.Error())
		}
		return &input, nil, nil
	}

	input := &models.UpdatePaperInput{}
	if v, ok := ctx.GetPostForm("title"); ok {
		input.Title = &v
	}
	if v, ok := ctx.GetPostForm("abstract"); ok {
		input.Abstract = &v
	}
	if v, ok := ctx.GetPostForm("slug"); ok {
		input.Slug = &v
	}
	if v, ok := ctx.GetPostForm("authors"); ok {
		authors := models.StringList(models.ParseStringList(v))
		input.Authors = &authors
	}
	if v, ok := ctx.GetPostForm("keywords"); ok {
		keywords := models.StringList(models.ParseStringList(v))
		input.Keywords = &keywords
	}
	if v, ok := ctx.GetPostForm("category"); ok {
		input.Category = &v
	}
	if v, ok := ctx.GetPostForm("venue"); ok {
		input.Venue = &v
	}
	if v, ok := ctx.GetPostForm("year"); ok {
		if year, err := strconv.Atoi(v); err == nil {
			input.Year = &year
		}
	}
	if v, ok := ctx.GetPostForm("published"); ok {
		published := v == "true" || v == "1"
		input.Published = &published
	}
	file, _ := ctx.FormFile("file")
	return input, file, nil
}

func isMultipart(ctx *gin.Context) bool {
	return strings.HasPrefix(ctx.ContentType(), "multipart/")
}
