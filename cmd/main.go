package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/loopfz/gadgeto/tonic"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/scholarfolio/portfolio-api/pkg/jobs"
	api "github.com/scholarfolio/portfolio-api/pkg/portfolio_api"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/database"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/handler"
	problem "github.com/scholarfolio/portfolio-api/pkg/portfolio_api/helpers/problem"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/middleware"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/models"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/repositories"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/services"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/uploads"
)

const apiVersion = "1.0.0"

const shutdownTimeout = 10 * time.Second

func invalidParamsFromBinding(err error, sample any) []problem.InvalidParam {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []problem.InvalidParam{{Name: "body", Reason: err.Error()}}
	}

	t := reflect.TypeOf(sample)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	out := make([]problem.InvalidParam, 0, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if f, ok := t.FieldByName(fe.StructField()); ok {
			if tag := f.Tag.Get("json"); tag != "" && tag != "-" {
				name = strings.Split(tag, ",")[0]
			}
		}
		out = append(out, problem.InvalidParam{
			Name:   name,
			Reason: humanReason(fe),
		})
	}
	return out
}

func humanReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	default:
		return fe.Error()
	}
}

func init() {
	tonic.SetErrorHook(func(c *gin.Context, err error) (int, interface{}) {
		var be tonic.BindError
		if errors.As(err, &be) || isValidationErr(err) {
			invalids := invalidParamsFromBinding(err, models.CreateBlogInput{})
			apiErr := problem.NewBadRequest("body", "Invalid request body", invalids...)
			c.Header("Content-Type", "application/problem+json")
			return apiErr.Status, apiErr
		}

		if apiErr, ok := err.(problem.APIError); ok {
			c.Header("Content-Type", "application/problem+json")
			return apiErr.Status, apiErr
		}

		log.Printf("[ERROR] %v", err)
		internal := problem.NewInternalServerError("internal server error")
		c.Header("Content-Type", "application/problem+json")
		return internal.Status, internal
	})
}

func isValidationErr(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}

func main() {
	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./uploads"
	}

	dbcon := "postgres://" +
		os.Getenv("DB_USERNAME") + ":" +
		os.Getenv("DB_PASSWORD") + "@" +
		os.Getenv("DB_HOSTNAME") + "/" +
		os.Getenv("DB_DBNAME") + "?sslmode=" +
		sslMode()
	db, err := database.Connect(dbcon)
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}

	assets, err := uploads.NewAdapter(uploadDir)
	if err != nil {
		log.Fatalf("could not prepare upload root: %v", err)
	}

	userRepo := repositories.NewStore[models.User](db)
	blogRepo := repositories.NewStore[models.BlogPost](db)
	paperRepo := repositories.NewStore[models.Paper](db)

	authService := services.NewAuthService(userRepo, []byte(secret))
	blogService := services.NewBlogService(blogRepo, assets)
	paperService := services.NewPaperService(paperRepo, assets)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := authService.EnsureOwner(ctx, os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD"), os.Getenv("ADMIN_NAME")); err != nil {
		log.Fatalf("could not seed owner account: %v", err)
	}

	sweeper := services.NewAssetSweeper(blogRepo, paperRepo, assets)
	jobs.ScheduleAssetSweep(ctx, sweeper)

	router := api.NewRouter(api.RouterConfig{
		APIVersion:   apiVersion,
		JWTSecret:    []byte(secret),
		UploadDir:    uploadDir,
		LoginLimiter: middleware.NewLoginLimiter(5, time.Minute),
	},
		handler.NewAuthController(authService, cookieSecure()),
		handler.NewBlogController(blogService),
		handler.NewPaperController(paperService),
	)

	addr := ":" + port()
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Printf("Server is running on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] forced shutdown: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func port() string {
	if v := os.Getenv("PORT"); v != "" {
		return v
	}
	return "4000"
}

func sslMode() string {
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		return v
	}
	return "disable"
}

func cookieSecure() bool {
	return strings.EqualFold(os.Getenv("COOKIE_SECURE"), "true")
}
