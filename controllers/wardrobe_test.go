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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWardrobeItemOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})
	user := test.FakeUser(db)

	reqBody := CreateItemIn{
		Name:        "Blue Shirt",
		Description: StrPointer("Light cotton shirt"),
		Category:    "top",
		FileName:    StrPointer("shirt.jpg"),
		AddToCloset: BoolPointer(true),
	}
	req := test.NewJSONAuthRequest("POST", "/app/wardrobe/create", strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, "Expected status code 201 Created, got %d: %s", rec.Code, rec.Body.String())

	var response ItemCreatedResponse
	err := json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, reqBody.Name, response.Item.Name)
	assert.Equal(t, "top", response.Item.Category)
	assert.Equal(t, "in_closet", response.Item.Status)
	assert.Equal(t, fmt.Sprintf("https://fakebucketurl.com/wardrobe/%v/shirt.jpg", user.ID), response.FileUploadUrl)

	var item models.WardrobeItem
	require.NoError(t, db.First(&item, response.Item.ID).Error)
	assert.Equal(t, "draft", item.ImageStatus)
	require.NotNil(t, item.ImageURL)
	assert.Equal(t, fmt.Sprintf("wardrobe/%v/shirt.jpg", user.ID), *item.ImageURL)
}

func TestCreateWardrobeItemInvalidCategory(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})
	user := test.FakeUser(db)

	reqBody := CreateItemIn{
		Name:        "Odd Item",
		Category:    "hat",
		FileName:    StrPointer("hat.jpg"),
		AddToCloset: BoolPointer(false),
	}
	req := test.NewJSONAuthRequest("POST", "/app/wardrobe/create", strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var response map[string]string
	err := json.Unmarshal(rec.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Contains(t, response["error"], "Category")
}

func TestCreateWardrobeItemUnsupportedFile(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})
	user := test.FakeUser(db)

	reqBody := CreateItemIn{
		Name:        "Not An Image",
		Category:    "top",
		FileName:    StrPointer("report.pdf"),
		AddToCloset: BoolPointer(false),
	}
	req := test.NewJSONAuthRequest("POST", "/app/wardrobe/create", strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var response map[string]string
	err := json.Unmarshal(rec.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Contains(t, response["error"], "Unsupported image format")
}

func TestCreateWardrobeItemFreePlanLimit(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})
	user := test.FakeUser(db)

	for i := 0; i < freeItemLimit; i++ {
		test.FakeWardrobeItem(db, user.ID, fmt.Sprintf("Item%v", i), "top")
	}

	reqBody := CreateItemIn{
		Name:        "One Too Many",
		Category:    "top",
		FileName:    StrPointer("extra.jpg"),
		AddToCloset: BoolPointer(true),
	}
	req := test.NewJSONAuthRequest("POST", "/app/wardrobe/create", strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var response map[string]string
	err := json.Unmarshal(rec.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Contains(t, response["error"], "free limit")
}

func TestCreateWardrobeItemProHasNoFreeLimit(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})
	user := test.FakeUserV2(db, "Pro", "pro@example.com", models.Pro)

	for i := 0; i < freeItemLimit; i++ {
		test.FakeWardrobeItem(db, user.ID, fmt.Sprintf("Item%v", i), "top")
	}

	reqBody := CreateItemIn{
		Name:        "Still Fine",
		Category:    "top",
		FileName:    StrPointer("fine.jpg"),
		AddToCloset: BoolPointer(true),
	}
	req := test.NewJSONAuthRequest("POST", "/app/wardrobe/create", strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateWardrobeItemEnforcedDailyLimit(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})
	user := test.FakeUser(db)
	limit := int32(1)
	user.EnforcedDailyItemLimit = &limit
	require.NoError(t, db.Save(user).Error)

	test.FakeWardrobeItem(db, user.ID, "Today", "top")

	reqBody := CreateItemIn{
		Name:        "Second Today",
		Category:    "top",
		FileName:    StrPointer("second.jpg"),
		AddToCloset: BoolPointer(true),
	}
	req := test.NewJSONAuthRequest("POST", "/app/wardrobe/create", strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var response map[string]string
	err := json.Unmarshal(rec.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Contains(t, response["error"], "daily items")
}

func TestCreateWardrobeItemUnauthorized(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})
	test.FakeUser(db)

	reqBody := CreateItemIn{
		Name:        "Blue Shirt",
		Category:    "top",
		FileName:    StrPointer("shirt.jpg"),
		AddToCloset: BoolPointer(true),
	}
	req := test.NewJSONAuthRequest("POST", "/app/wardrobe/create", "", reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListWardrobeItemsGrouped(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})
	user := test.FakeUser(db)
	shirt := test.FakeWardrobeItem(db, user.ID, "Shirt", "top")
	test.FakeWardrobeItem(db, user.ID, "Jeans", "bottom")
	test.FakeWardrobeItem(db, user.ID, "Sneakers", "shoes")

	// another user's item stays invisible
	other := test.FakeUserV2(db, "Other", "other@example.com", models.Free)
	test.FakeWardrobeItem(db, other.ID, "Coat", "outer")

	req := test.NewJSONAuthRequest("GET", "/app/wardrobe/list", strconv.FormatUint(uint64(user.ID), 10), nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response WardrobeListResponse
	err := json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)
	require.Len(t, response.Tops, 1)
	require.Len(t, response.Bottoms, 1)
	require.Len(t, response.Shoes, 1)
	assert.Empty(t, response.Outerwear)
	assert.Empty(t, response.Accessories)
	assert.Equal(t, "Shirt", response.Tops[0].Name)
	require.NotNil(t, response.Tops[0].Uri)
	assert.Equal(t, fmt.Sprintf("https://fakebucketurl.com/%s", *shirt.ImageURL), *response.Tops[0].Uri)
}

func TestConfirmUploadForeignItemNotFound(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})
	user := test.FakeUser(db)
	other := test.FakeUserV2(db, "Other", "other@example.com", models.Free)
	foreign := test.FakeWardrobeItem(db, other.ID, "Coat", "outer")

	req := test.NewJSONAuthRequest("POST", fmt.Sprintf("/app/wardrobe/%v/uploaded", foreign.ID), strconv.FormatUint(uint64(user.ID), 10), nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var item models.WardrobeItem
	require.NoError(t, db.First(&item, foreign.ID).Error)
	assert.Equal(t, "uploaded", item.ImageStatus)
}

func TestDeleteWardrobeItemOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})
	user := test.FakeUser(db)
	item := test.FakeWardrobeItem(db, user.ID, "Shirt", "top")

	req := test.NewJSONAuthRequest("DELETE", fmt.Sprintf("/app/wardrobe/%v", item.ID), strconv.FormatUint(uint64(user.ID), 10), nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var count int64
	db.Model(&models.WardrobeItem{}).Where("id = ?", item.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestDeleteWardrobeItemForeignNotFound(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{}, &test.MockStylistProvider{}, &test.MockImageFetcher{}, test.MockWeatherProvider{TempC: 18})
	user := test.FakeUser(db)
	other := test.FakeUserV2(db, "Other", "other@example.com", models.Free)
	foreign := test.FakeWardrobeItem(db, other.ID, "Coat", "outer")

	req := test.NewJSONAuthRequest("DELETE", fmt.Sprintf("/app/wardrobe/%v", foreign.ID), strconv.FormatUint(uint64(user.ID), 10), nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
