package portfolio_api

import (
	"github.com/gin-gonic/gin"
	"github.com/loopfz/gadgeto/tonic"
	"github.com/wI2L/fizz"
	"github.com/wI2L/fizz/openapi"

	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/handler"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/middleware"
)

// RouterConfig carries everything the router wires into middleware.
type RouterConfig struct {
	APIVersion   string
	JWTSecret    []byte
	UploadDir    string
	LoginLimiter *middleware.LoginLimiter
}

func NewRouter(cfg RouterConfig, auth *handler.AuthController, blogs *handler.BlogController, papers *handler.PaperController) *fizz.Fizz {
	g := gin.Default()
	g.Use(APIVersionMiddleware(cfg.APIVersion))
	f := fizz.NewFromEngine(g)

	info := &openapi.Info{
		Title:       "Portfolio API",
		Description: "Blog and paper publishing API for a personal academic portfolio site",
		Version:     cfg.APIVersion,
	}

	root := f.Group("/api", "Portfolio", "Portfolio API routes")

	// Auth endpoints. Login is throttled per IP.
	authGroup := root.Group("/auth", "Auth", "Authentication endpoints")
	authGroup.POST("/login",
		[]fizz.OperationOption{fizz.Summary("Sign in with email and password")},
		cfg.LoginLimiter.Throttle(),
		tonic.Handler(auth.Login, 200),
	)
	authGroup.POST("/logout",
		[]fizz.OperationOption{fizz.Summary("Sign out")},
		tonic.Handler(auth.Logout, 200),
	)
	authGroup.GET("/profile",
		[]fizz.OperationOption{fizz.Summary("Current user from the credential")},
		middleware.RequireAuth(cfg.JWTSecret),
		tonic.Handler(auth.Profile, 200),
	)

	// Public read endpoints.
	read := root.Group("", "Read", "Public content endpoints")
	read.GET("/blogs",
		[]fizz.OperationOption{fizz.Summary("List blog posts")},
		tonic.Handler(blogs.ListBlogs, 200),
	)
	read.GET("/blogs/:idOrSlug",
		[]fizz.OperationOption{fizz.Summary("Fetch a blog post by id or slug")},
		tonic.Handler(blogs.RetrieveBlog, 200),
	)
	read.GET("/papers",
		[]fizz.OperationOption{fizz.Summary("List papers")},
		tonic.Handler(papers.ListPapers, 200),
	)
	read.GET("/papers/:idOrSlug",
		[]fizz.OperationOption{fizz.Summary("Fetch a paper by id or slug")},
		tonic.Handler(papers.RetrievePaper, 200),
	)

	// Mutating endpoints require an admin credential.
	write := root.Group("", "Write", "Content management endpoints", middleware.RequireAdmin(cfg.JWTSecret))
	write.POST("/blogs",
		[]fizz.OperationOption{fizz.Summary("Create a blog post")},
		tonic.Handler(blogs.CreateBlog, 201),
	)
	write.PUT("/blogs/:idOrSlug",
		[]fizz.OperationOption{fizz.Summary("Update a blog post")},
		tonic.Handler(blogs.UpdateBlog, 200),
	)
	write.DELETE("/blogs/:idOrSlug",
		[]fizz.OperationOption{fizz.Summary("Delete a blog post")},
		tonic.Handler(blogs.DeleteBlog, 200),
	)
	write.DELETE("/papers/:idOrSlug",
		[]fizz.OperationOption{fizz.Summary("Delete a paper")},
		tonic.Handler(papers.DeletePaper, 200),
	)

	// Multipart and streaming routes bypass tonic, so they go on the engine
	// directly with the same middleware.
	adminOnly := middleware.RequireAdmin(cfg.JWTSecret)
	g.GET("/api/papers/:idOrSlug/download", papers.DownloadPaper)
	g.POST("/api/blogs/upload-image", adminOnly, blogs.UploadImage)
	g.POST("/api/papers", adminOnly, papers.CreatePaper)
	g.PUT("/api/papers/:idOrSlug", adminOnly, papers.UpdatePaper)

	// Uploaded assets, served with permissive CORS so the admin console can
	// preview them from its own origin.
	uploadsGroup := g.Group("/uploads", uploadsCORS())
	uploadsGroup.Static("", cfg.UploadDir)

	f.GET("/api/openapi.json", []fizz.OperationOption{}, f.OpenAPI(info, "json"))

	return f
}

func uploadsCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		c.Next()
	}
}

type apiVersionWriter struct {
	gin.ResponseWriter
	version string
}

func (w *apiVersionWriter) WriteHeader(code int) {
	if code >= 200 && code < 300 {
		w.Header().Set("API-Version", w.version)
	}
	w.ResponseWriter.WriteHeader(code)
}

func APIVersionMiddleware(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer = &apiVersionWriter{c.Writer, version}
		c.Next()
	}
}
