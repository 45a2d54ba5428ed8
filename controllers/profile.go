package controllers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"stylistapi/models"
	"stylistapi/services"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type ProfileController struct {
	AWSService services.AWSServiceProvider
}

func (m *ProfileController) ProfileRoutes(g *echo.Group) {
	g.GET("/me", m.Me)
	g.POST("/settings", m.UpdateSettings)
	g.POST("/register-push", m.RegisterPush)
	g.POST("/delete-push", m.DeletePush)
	g.POST("/logout", m.Logout)
	g.POST("/delete-account", m.DeleteAccount)
}

func (m *ProfileController) Me(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	return c.JSON(http.StatusOK, models.UserMeInfoOut{
		Id:                   UIntToStr(user.ID),
		Name:                 user.Name,
		Email:                user.Email,
		AvatarURL:            user.AvatarURL,
		ReceiveNotifications: user.ReceiveNotifications,
		PreferredStyle:       user.PreferredStyle,
		Subscription:         string(user.Subscription),
	})
}

func (m *ProfileController) UpdateSettings(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	var settingsIn = new(models.UserSettingsIn)
	db := c.Get("__db").(*gorm.DB)
	if err := c.Bind(settingsIn); err != nil {
		return err
	}
	if settingsIn.PreferredStyle != nil && !models.ValidateStyleRaw(*settingsIn.PreferredStyle) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown style"})
	}
	user.ReceiveNotifications = settingsIn.ReceiveNotifications
	if settingsIn.PreferredStyle != nil {
		user.PreferredStyle = settingsIn.PreferredStyle
	}
	db.Save(&user)
	return c.JSON(http.StatusOK, settingsIn)
}

func (m *ProfileController) RegisterPush(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	var tokenRequest = new(models.UserPushIn)

	if err := c.Bind(tokenRequest); err != nil {
		return err
	}
	if !models.ValidatePlatformRaw(string(tokenRequest.Platform)) {
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Please provide proper platform parameter"})
	}
	var pushData models.UserPushToken = models.UserPushToken{
		Platform:      models.ScanPlatform(tokenRequest.Platform),
		Token:         tokenRequest.Token,
		UserAccountID: user.ID,
		Active:        true,
	}

	// same token/device can sign in to diff accs and still receive pushes.
	result := db.Where("token = ? and user_account_id = ?", tokenRequest.Token, user.ID).FirstOrCreate(&pushData)
	if result.Error != nil {
		log.Println(result.Error)
		return echo.ErrInternalServerError
	}
	if result.RowsAffected >= 1 {
		fmt.Println("Token created for user ", user.ID, "Platform: ", tokenRequest.Platform)
	}
	fmt.Println("Push id ", pushData.ID, " Token ", pushData.Token, " Platform: ", pushData.Platform, "User ID:", pushData.UserAccountID)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "registered",
		"push_id": pushData.ID,
	})
}

func (m *ProfileController) DeletePush(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	var tokenRequest = new(models.UserPushIn)

	if err := c.Bind(tokenRequest); err != nil {
		return err
	}
	if !models.ValidatePlatformRaw(string(tokenRequest.Platform)) {
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Please provide proper platform parameter"})
	}

	result := db.Where("token = ? and user_account_id = ? and platform = ?", tokenRequest.Token, user.ID, tokenRequest.Platform).Delete(&models.UserPushToken{})
	if result.Error != nil {
		log.Println(result.Error)
		return echo.ErrInternalServerError
	}
	if result.RowsAffected >= 1 {
		fmt.Println("Token deleted for user ", user.ID, "Platform: ", tokenRequest.Platform)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "deleted",
		"deleted": result.RowsAffected > 0,
	})
}

func (m *ProfileController) Logout(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	var tokenRequest = new(models.UserPushIn)
	if err := c.Bind(tokenRequest); err != nil {
		return err
	}

	db.Where("user_account_id = ? and token = ?", user.ID, tokenRequest.Token).Delete(&models.UserPushToken{})

	return c.JSON(http.StatusOK, echo.Map{
		"message": "logged out",
	})
}

func (m *ProfileController) DeleteAccount(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	now := time.Now()
	user.ConfirmedDeleteDate = &now
	db.Save(&user)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "scheduled for deletion",
	})
}
