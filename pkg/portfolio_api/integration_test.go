package portfolio_api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/loopfz/gadgeto/tonic"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	api "github.com/scholarfolio/portfolio-api/pkg/portfolio_api"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/handler"
	problem "github.com/scholarfolio/portfolio-api/pkg/portfolio_api/helpers/problem"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/middleware"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/models"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/repositories"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/services"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/testutil"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/uploads"
)

var integrationSecret = []byte("integration-secret")

var errorHookOnce sync.Once

func setupErrorHook() {
	errorHookOnce.Do(func() {
		tonic.SetErrorHook(func(c *gin.Context, err error) (int, interface{}) {
			var be tonic.BindError
			var verrs validator.ValidationErrors
			if errors.As(err, &be) || errors.As(err, &verrs) {
				invalids := invalidParamsFromBinding(err)
				apiErr := problem.NewBadRequest("body", "Invalid request body", invalids...)
				c.Header("Content-Type", "application/problem+json")
				return apiErr.Status, apiErr
			}

			if apiErr, ok := err.(problem.APIError); ok {
				c.Header("Content-Type", "application/problem+json")
				return apiErr.Status, apiErr
			}

			internal := problem.NewInternalServerError(err.Error())
			c.Header("Content-Type", "application/problem+json")
			return internal.Status, internal
		})
	})
}

func invalidParamsFromBinding(err error) []problem.InvalidParam {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []problem.InvalidParam{{Name: "body", Reason: err.Error()}}
	}
	t := reflect.TypeOf(models.CreateBlogInput{})
	out := make([]problem.InvalidParam, 0, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if f, ok := t.FieldByName(fe.StructField()); ok {
			if tag := f.Tag.Get("json"); tag != "" && tag != "-" {
				name = strings.Split(tag, ",")[0]
			}
		}
		out = append(out, problem.InvalidParam{Name: name, Reason: fe.Error()})
	}
	return out
}

var dbSeq int64

type integrationEnv struct {
	server      *httptest.Server
	blogs       *repositories.Store[models.BlogPost]
	papers      *repositories.Store[models.Paper]
	adapter     *uploads.Adapter
	adminToken  string
	authorToken string
	client      *http.Client
}

func newIntegrationEnv(t *testing.T, loginBurst int) *integrationEnv {
	t.Helper()

	gin.SetMode(gin.TestMode)
	setupErrorHook()

	dsn := fmt.Sprintf("file:itest%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.BlogPost{}, &models.Paper{}))

	uploadDir := t.TempDir()
	adapter, err := uploads.NewAdapter(uploadDir)
	require.NoError(t, err)

	users := repositories.NewStore[models.User](db)
	blogs := repositories.NewStore[models.BlogPost](db)
	papers := repositories.NewStore[models.Paper](db)

	authService := services.NewAuthService(users, integrationSecret)
	blogService := services.NewBlogService(blogs, adapter)
	paperService := services.NewPaperService(papers, adapter)

	admin := seedIntegrationUser(t, users, "admin@example.com", "admin", true)
	author := seedIntegrationUser(t, users, "author@example.com", "author", false)
	adminToken, err := authService.MintToken(admin)
	require.NoError(t, err)
	authorToken, err := authService.MintToken(author)
	require.NoError(t, err)

	limiter := middleware.NewLoginLimiter(loginBurst, time.Minute)
	t.Cleanup(limiter.Close)

	router := api.NewRouter(api.RouterConfig{
		APIVersion:   "test-version",
		JWTSecret:    integrationSecret,
		UploadDir:    uploadDir,
		LoginLimiter: limiter,
	},
		handler.NewAuthController(authService, false),
		handler.NewBlogController(blogService),
		handler.NewPaperController(paperService),
	)

	server := testutil.NewTestServer(t, router)

	return &integrationEnv{
		server:      server,
		blogs:       blogs,
		papers:      papers,
		adapter:     adapter,
		adminToken:  adminToken,
		authorToken: authorToken,
		client:      &http.Client{Timeout: 2 * time.Second},
	}
}

func seedIntegrationUser(t *testing.T, users *repositories.Store[models.User], email, role string, owner bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{Email: email, Name: role, PasswordHash: string(hash), Role: role, IsOwner: owner}
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

func (e *integrationEnv) doRequest(t *testing.T, method, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	return resp
}

func (e *integrationEnv) doJSONRequest(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	return resp
}

func (e *integrationEnv) doMultipartRequest(t *testing.T, method, path, token string, fields map[string]string, fileField, filename string, fileContent []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write(fileContent)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req, err := http.NewRequest(method, e.server.URL+path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	err = json.Unmarshal(data, &out)
	require.NoErrorf(t, err, "body=%s", string(data))
	return out
}

func smallPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func TestPortfolioApplicationRun(t *testing.T) {
	env := newIntegrationEnv(t, 20)
	ctx := context.Background()

	t.Run("login sets cookie and returns token", func(t *testing.T) {
		resp := env.doJSONRequest(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "admin@example.com",
			"password": "secret-password",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "test-version", resp.Header.Get("API-Version"))

		var tokenCookie *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == middleware.CookieName {
				tokenCookie = c
			}
		}
		require.NotNil(t, tokenCookie)
		require.True(t, tokenCookie.HttpOnly)

		login := decodeBody[handler.LoginResponse](t, resp)
		require.NotEmpty(t, login.Token)
		require.Equal(t, "admin@example.com", login.User.Email)
	})

	t.Run("login wrong password", func(t *testing.T) {
		resp := env.doJSONRequest(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "admin@example.com",
			"password": "wrong",
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("profile from bearer token", func(t *testing.T) {
		resp := env.doRequest(t, http.MethodGet, "/api/auth/profile", env.adminToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		profile := decodeBody[handler.ProfileResponse](t, resp)
		require.Equal(t, "admin@example.com", profile.User.Email)
		require.True(t, profile.User.IsOwner)
	})

	t.Run("create blog requires a credential", func(t *testing.T) {
		resp := env.doJSONRequest(t, http.MethodPost, "/api/blogs", "", map[string]any{
			"title":   "Sneaky Post",
			"content": "should never be persisted",
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, resp.Header.Get("Content-Type"), "application/problem+json")

		n, err := env.blogs.Count(ctx, nil)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("create blog rejects non-admin", func(t *testing.T) {
		resp := env.doJSONRequest(t, http.MethodPost, "/api/blogs", env.authorToken, map[string]any{
			"title":   "Author Post",
			"content": "authors cannot write yet",
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	var blogSlug string

	t.Run("admin creates blog", func(t *testing.T) {
		resp := env.doJSONRequest(t, http.MethodPost, "/api/blogs", env.adminToken, map[string]any{
			"title":   "Integration Testing in Go",
			"content": "A full round-trip through the HTTP stack.",
			"tags":    []string{"go", "testing"},
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.Equal(t, "test-version", resp.Header.Get("API-Version"))

		created := decodeBody[handler.BlogResponse](t, resp)
		require.Equal(t, "integration-testing-in-go", created.Blog.Slug)
		require.True(t, created.Blog.Published)
		blogSlug = created.Blog.Slug
	})

	t.Run("blog create validation problem json", func(t *testing.T) {
		resp := env.doJSONRequest(t, http.MethodPost, "/api/blogs", env.adminToken, map[string]any{
			"content": "body without a title",
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		prob := decodeBody[problem.APIError](t, resp)
		require.Equal(t, 400, prob.Status)
		require.NotEmpty(t, prob.Errors)
	})

	t.Run("public retrieve by slug", func(t *testing.T) {
		resp := env.doRequest(t, http.MethodGet, "/api/blogs/"+blogSlug, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		post := decodeBody[models.BlogPost](t, resp)
		require.Equal(t, "Integration Testing in Go", post.Title)
		require.Equal(t, []string{"go", "testing"}, post.Tags)
	})

	t.Run("list blogs with pagination headers", func(t *testing.T) {
		resp := env.doRequest(t, http.MethodGet, "/api/blogs", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "1", resp.Header.Get("X-Total-Count"))
		require.Equal(t, "1", resp.Header.Get("X-Current-Page"))

		summaries := decodeBody[[]models.BlogSummary](t, resp)
		require.Len(t, summaries, 1)
		require.Equal(t, blogSlug, summaries[0].Slug)
	})

	t.Run("admin updates blog", func(t *testing.T) {
		resp := env.doJSONRequest(t, http.MethodPut, "/api/blogs/"+blogSlug, env.adminToken, map[string]any{
			"published": false,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		updated := decodeBody[handler.BlogResponse](t, resp)
		require.False(t, updated.Blog.Published)
		require.Equal(t, "Integration Testing in Go", updated.Blog.Title)
	})

	t.Run("upload and replace cover image", func(t *testing.T) {
		first := env.doMultipartRequest(t, http.MethodPost, "/api/blogs/upload-image", env.adminToken,
			map[string]string{"blogId": blogSlug}, "image", "cover.png", smallPNG(t))
		require.Equal(t, http.StatusOK, first.StatusCode)
		uploaded := decodeBody[handler.UploadImageResponse](t, first)
		require.True(t, strings.HasPrefix(uploaded.ImageURL, uploads.URLPrefix+"/"))
		firstPath, ok := env.adapter.Resolve(uploaded.ImageURL)
		require.True(t, ok)
		_, err := os.Stat(firstPath)
		require.NoError(t, err)

		second := env.doMultipartRequest(t, http.MethodPost, "/api/blogs/upload-image", env.adminToken,
			map[string]string{"blogId": blogSlug}, "image", "cover2.png", smallPNG(t))
		require.Equal(t, http.StatusOK, second.StatusCode)
		replaced := decodeBody[handler.UploadImageResponse](t, second)
		require.NotEqual(t, uploaded.ImageURL, replaced.ImageURL)

		// the old file is removed asynchronously
		require.Eventually(t, func() bool {
			_, err := os.Stat(firstPath)
			return os.IsNotExist(err)
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("uploaded asset is served with CORS", func(t *testing.T) {
		post, err := env.blogs.FindOne(ctx, map[string]any{"slug": blogSlug})
		require.NoError(t, err)
		require.NotNil(t, post.CoverImage)

		resp := env.doRequest(t, http.MethodGet, *post.CoverImage, "")
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("admin deletes blog", func(t *testing.T) {
		resp := env.doRequest(t, http.MethodDelete, "/api/blogs/"+blogSlug, env.adminToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		deleted := decodeBody[handler.DeleteResponse](t, resp)
		require.True(t, deleted.Success)

		missing := env.doRequest(t, http.MethodGet, "/api/blogs/"+blogSlug, "")
		require.Equal(t, http.StatusNotFound, missing.StatusCode)
		prob := decodeBody[problem.APIError](t, missing)
		require.Equal(t, 404, prob.Status)
	})

	t.Run("paper multipart create and download", func(t *testing.T) {
		resp := env.doMultipartRequest(t, http.MethodPost, "/api/papers", env.adminToken, map[string]string{
			"title":    "A Study of Upload Paths",
			"abstract": "We upload a document and fetch it back.",
			"authors":  "First Author, Second Author",
			"category": "systems",
			"year":     "2025",
		}, "file", "study.pdf", []byte("%PDF-1.4 integration"))
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		created := decodeBody[handler.PaperResponse](t, resp)
		require.Equal(t, "a-study-of-upload-paths", created.Paper.Slug)
		require.Equal(t, []string{"First Author", "Second Author"}, created.Paper.Authors)
		require.Equal(t, 2025, created.Paper.Year)
		require.NotNil(t, created.Paper.FileURL)

		download := env.doRequest(t, http.MethodGet, "/api/papers/"+created.Paper.Slug+"/download", "")
		defer download.Body.Close()
		require.Equal(t, http.StatusOK, download.StatusCode)
		require.Contains(t, download.Header.Get("Content-Disposition"), created.Paper.Slug)
		data, err := io.ReadAll(download.Body)
		require.NoError(t, err)
		require.Equal(t, []byte("%PDF-1.4 integration"), data)
	})

	t.Run("paper json update", func(t *testing.T) {
		resp := env.doJSONRequest(t, http.MethodPut, "/api/papers/a-study-of-upload-paths", env.adminToken, map[string]any{
			"venue": "SIGOPS",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		updated := decodeBody[handler.PaperResponse](t, resp)
		require.Equal(t, "SIGOPS", updated.Paper.Venue)
		require.Equal(t, "A Study of Upload Paths", updated.Paper.Title)
	})

	t.Run("openapi document is served", func(t *testing.T) {
		resp := env.doRequest(t, http.MethodGet, "/api/openapi.json", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		doc := decodeBody[map[string]any](t, resp)
		info, ok := doc["info"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "Portfolio API", info["title"])
	})
}

func TestLoginThrottling(t *testing.T) {
	env := newIntegrationEnv(t, 2)

	payload := map[string]string{"email": "ghost@example.com", "password": "wrong"}
	for i := 0; i < 2; i++ {
		resp := env.doJSONRequest(t, http.MethodPost, "/api/auth/login", "", payload)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := env.doJSONRequest(t, http.MethodPost, "/api/auth/login", "", payload)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	prob := decodeBody[problem.APIError](t, resp)
	require.Equal(t, 429, prob.Status)
}
