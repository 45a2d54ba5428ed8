package controllers

import (
	"context"
	"log"
	"net/http"
	"os"

	"stylistapi/models"
	"stylistapi/services"

	firebase "firebase.google.com/go/v4"
	"github.com/go-playground/validator"
	"github.com/hibiken/asynq"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		// Optionally, you could return the error to give each route more control over the status code
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func SetupServer(
	db *gorm.DB,
	googleService services.GoogleServiceProvider,
	awsService services.AWSServiceProvider,
	firebaseApp *firebase.App,
	asynqClient *asynq.Client,
	urlCache services.URLCacheServiceProvider,
	stylistProvider services.OutfitStylistProvider,
	imageFetcher services.ItemImageFetcher,
	weather services.WeatherProvider,
) *echo.Echo {

	err := awsService.InitPresignClient(context.Background())
	if err != nil {
		log.Fatal("Failed to initialize AWS provider: S3")
	}

	e := echo.New()
	v := validator.New()
	v.RegisterValidation("platform", models.ValidatePlatform)
	v.RegisterValidation("style", models.ValidateStyle)
	e.Validator = &CustomValidator{validator: v}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", db)
			c.Set("__asynqclient", asynqClient)
			return next(c)
		}
	})

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "Accept-Language"},
	}))

	authGroup := e.Group("auth")
	authController := AuthController{Google: googleService, FirebaseApp: firebaseApp}
	authController.AuthRoutes(authGroup)

	appGroup := e.Group("app", echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))))
	appGroup.Use(UserMiddleware)

	profileController := ProfileController{AWSService: awsService}
	profileGroup := appGroup.Group("/profile")
	profileController.ProfileRoutes(profileGroup)

	wardrobeController := WardrobeController{AWSService: awsService, FirebaseApp: firebaseApp, URLCache: urlCache}
	wardrobeGroup := appGroup.Group("/wardrobe")
	wardrobeController.WardrobeRoutes(wardrobeGroup)

	outfitsController := OutfitsController{
		Stylists: services.NewOrchestratorRegistry(stylistProvider, imageFetcher),
		Weather:  weather,
	}
	outfitsGroup := appGroup.Group("/outfits")
	outfitsController.OutfitRoutes(outfitsGroup)

	return e
}
