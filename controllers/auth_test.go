package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"stylistapi/dbhelper"
	"stylistapi/models"
	"stylistapi/test"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthGoogle(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})

	param := models.GoogleAuthSignIn{
		IdToken:  "fake-google-id-token",
		Platform: "ios",
	}
	req := test.NewJSONRequest("POST", "/auth/google/v2?verify=true", param)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp echo.Map
	json.Unmarshal(rec.Body.Bytes(), &resp)

	assert.Equal(t, "fake@example.com", resp["email"], resp)
	assert.Equal(t, true, resp["new"], resp)
	assert.Equal(t, "pictureurl", resp["avatar"], resp)
	assert.NotEmpty(t, resp["access_token"], resp)
	assert.NotEmpty(t, resp["refresh_token"], resp)

	var user models.UserAccount
	db.First(&user, "email = ?", "fake@example.com")
	assert.Equal(t, "fake@example.com", user.Email)
	assert.Equal(t, "STARTED_AUTH", user.Status)
	assert.Equal(t, "123googleid", user.GoogleID)
	assert.Equal(t, models.PlatformIOS, user.Platform)
	assert.Equal(t, models.Free, user.Subscription)

	// second leg finishes onboarding with the chosen profile name
	param2 := models.SignUpIn{
		IdToken:  "fake-google-id-token",
		Platform: "ios",
		ProfileIn: models.ProfileIn{
			Name:      "My Name",
			UTMSource: "appstore",
		},
	}
	req2 := test.NewJSONRequest("POST", "/auth/google/v2", param2)
	rec2 := httptest.NewRecorder()

	e.ServeHTTP(rec2, req2)

	assert.Equal(t, http.StatusOK, rec2.Code, rec2.Body.String())

	db.First(&user, "email = ?", "fake@example.com")
	assert.Equal(t, "FINISHED_AUTH", user.Status)
	assert.Equal(t, "My Name", user.Name)
	assert.Equal(t, "appstore", user.UTMSource)

	// verifying again signs in the same account, not a new one
	req3 := test.NewJSONRequest("POST", "/auth/google/v2?verify=true", param)
	rec3 := httptest.NewRecorder()

	e.ServeHTTP(rec3, req3)

	assert.Equal(t, http.StatusOK, rec3.Code)
	var resp3 echo.Map
	json.Unmarshal(rec3.Body.Bytes(), &resp3)
	assert.Equal(t, fmt.Sprint(user.ID), fmt.Sprint(resp3["id"]), rec3.Body.String())
	assert.Equal(t, false, resp3["new"], resp3)

	var count int64
	db.Model(&models.UserAccount{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAuthGoogleInvalidPlatform(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})

	param := models.GoogleAuthSignIn{
		IdToken:  "fake-google-id-token",
		Platform: "blackberry",
	}
	req := test.NewJSONRequest("POST", "/auth/google/v2?verify=true", param)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthFinish(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})

	user := &models.UserAccount{
		Name:         "Pending",
		Email:        "pending@example.com",
		GoogleID:     "pendinggoogleid",
		Platform:     models.PlatformAndroid,
		Status:       "STARTED_AUTH",
		Subscription: models.Free,
	}
	db.Create(&user)

	param := models.ProfileIn{Name: "Chosen Name", UTMSource: "play"}
	req := test.NewJSONAuthRequest("POST", "/auth/finish", strconv.FormatUint(uint64(user.ID), 10), param)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated models.UserAccount
	db.First(&updated, user.ID)
	assert.Equal(t, "FINISHED_AUTH", updated.Status)
	assert.Equal(t, "Chosen Name", updated.Name)

	// finishing twice is rejected
	req = test.NewJSONAuthRequest("POST", "/auth/finish", strconv.FormatUint(uint64(user.ID), 10), param)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshToken(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})

	userDb := test.FakeUser(db)
	refreshToken, err := GenerateRefreshToken(fmt.Sprint(userDb.ID))
	if err != nil {
		fmt.Println("Error generating refresh", err)
	}
	param := echo.Map{
		"refresh_token": refreshToken,
	}
	req := test.NewJSONRequest("POST", "/auth/refresh-token", param)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp echo.Map
	json.Unmarshal(rec.Body.Bytes(), &resp)
	assert.NotEmpty(t, resp["access_token"])
	assert.NotEmpty(t, resp["refresh_token"])
}

func TestRefreshTokenBannedUser(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})

	userDb := test.FakeUser(db)
	db.Model(&models.UserAccount{}).Where("id = ?", userDb.ID).Update("banned", true)

	refreshToken, err := GenerateRefreshToken(fmt.Sprint(userDb.ID))
	require.NoError(t, err)
	param := echo.Map{
		"refresh_token": refreshToken,
	}
	req := test.NewJSONRequest("POST", "/auth/refresh-token", param)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshTokenEmpty(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})

	req := test.NewJSONRequest("POST", "/auth/refresh-token", echo.Map{"refresh_token": ""})
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
