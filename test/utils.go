package test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"time"

	"stylistapi/models"
	"stylistapi/services"

	"github.com/golang-jwt/jwt/v4"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {

	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateUserToken(userPk string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Fatalf("Error when signing user token for %s. Error %s ", userPk, err)
	}
	return t
}

func NewJSONAuthRequest(method string, target string, userPk string, param interface{}) *http.Request {
	log.Println(JsonString(param))
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func NewJSONAuthRequestRaw(method string, target string, userPk string, json string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(json))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func NewRefString(data string) *string {
	return &data
}

func Float64Pointer(f float64) *float64 {
	return &f
}

func FakeUser(db *gorm.DB) *models.UserAccount {
	user := &models.UserAccount{
		Name:         "OurName",
		Email:        "email@example.com",
		GoogleID:     "12232",
		Platform:     models.PlatformIOS,
		LastIp:       "123.122.122.122",
		Status:       "FINISHED_AUTH",
		Subscription: models.Free,
		AvatarURL:    "pictureurl",
	}
	db.Create(&user)

	tokenDb := models.UserPushToken{
		UserAccountID: user.ID,
		Platform:      "android",
		Token:         "cX-UZ3zwQEiPt-2GJkG2gA:APA91bGqRflaGrJrnynhRwZ442HdgUjVcO7mWMFnx6IwAdJ9RRKopvSP4QU7hbvTmk1XAp8XGvtHZLvo5JmOPTVKBbGqqvhfbZWKlXA9csEjx1hgpNvrWepU-rqG1sxS8_WCF5cGZchf",
		Active:        true,
	}
	db.Save(&tokenDb)
	return user
}

func FakeUserV2(db *gorm.DB, userName string, email string, subscription models.Subscription) *models.UserAccount {
	if email == "" {
		email = "email@example.com"
	}
	user := &models.UserAccount{
		Name:         userName,
		Email:        email,
		GoogleID:     "12232",
		Platform:     models.PlatformIOS,
		LastIp:       "123.122.122.122",
		Status:       "FINISHED_AUTH",
		Subscription: subscription,
		AvatarURL:    "pictureurl",
	}
	db.Create(&user)
	return user
}

func FakeWardrobeItem(db *gorm.DB, ownerID uint, name string, category string) *models.WardrobeItem {
	item := &models.WardrobeItem{
		Name:             name,
		Category:         category,
		OwnerID:          ownerID,
		Status:           "in_closet",
		ImageStatus:      "uploaded",
		ProcessingStatus: "completed",
		ImageURL:         NewRefString(fmt.Sprintf("wardrobe/%v/%s.png", ownerID, name)),
	}
	db.Create(&item)
	return item
}

type GoogleServiceMock struct{}

func (gsm GoogleServiceMock) ValidateIdToken(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error) {

	return &idtoken.Payload{Issuer: "Issue", Audience: "AAA", Expires: 119919191919, IssuedAt: 12312321321, Subject: "fake@example.com", Claims: map[string]interface{}{
		"email":   "fake@example.com",
		"picture": "pictureurl",
		"name":    "Fake Name",
		"sub":     "123googleid",
	}}, nil

}

type AWSProviderMock struct {
	MockUrl string
}

func (awsService AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {

	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	return awsService.MockUrl, nil
}

func (awsService AWSProviderMock) UploadToPresignedURL(ctx context.Context, bucketName, url string, fileContent []byte) (string, int, error) {
	return url, 200, nil
}

type URLCacheMock struct {
	MockUrl string
}

func (m URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	if m.MockUrl != "" {
		return m.MockUrl, nil
	}
	return fmt.Sprintf("https://fakebucketurl.com/%s", objectKey), nil
}

// SampleAnalysisJSON is the canonical stylist reply used across tests.
const SampleAnalysisJSON = `{
	"compatibility_score": 8,
	"color_harmony": {
		"score": 7,
		"description": "Blue and white work well together",
		"complementary_colors": ["navy", "beige"]
	},
	"style_consistency_score": 9,
	"advice": "Add a belt to complete the look",
	"suggestions": ["Try white sneakers", "Roll up the sleeves"]
}`

const SampleItemDescriptionJSON = `{"name": "Blue Jeans", "category": "bottom", "colors": ["blue"]}`

// ScriptedCall records one provider invocation for assertions.
type ScriptedCall struct {
	Model  services.LLMModelName
	Prompt string
}

// MockStylistProvider answers per model from Responses/Errors, recording every
// call. A model with neither a response nor an error replies with
// SampleAnalysisJSON.
type MockStylistProvider struct {
	mu        sync.Mutex
	Responses map[services.LLMModelName]string
	Errors    map[services.LLMModelName]error
	Calls     []ScriptedCall
}

func (m *MockStylistProvider) AnalyzeOutfit(ctx context.Context, images []services.ImageBlob, prompt string, model services.LLMModelName) (*services.LLMResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, ScriptedCall{Model: model, Prompt: prompt})
	m.mu.Unlock()
	if err, ok := m.Errors[model]; ok {
		return nil, err
	}
	if resp, ok := m.Responses[model]; ok {
		return &services.LLMResponse{Response: resp, InputTokenCount: 10, OutputTokenCount: 13, TotalTokenCount: 23}, nil
	}
	return &services.LLMResponse{Response: SampleAnalysisJSON, InputTokenCount: 10, OutputTokenCount: 13, TotalTokenCount: 23}, nil
}

func (m *MockStylistProvider) DescribeItem(ctx context.Context, image services.ImageBlob, model services.LLMModelName) (*services.LLMResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, ScriptedCall{Model: model, Prompt: "describe"})
	m.mu.Unlock()
	if err, ok := m.Errors[model]; ok {
		return nil, err
	}
	if resp, ok := m.Responses[model]; ok {
		return &services.LLMResponse{Response: resp}, nil
	}
	return &services.LLMResponse{Response: SampleItemDescriptionJSON}, nil
}

func (m *MockStylistProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockStylistProvider) CalledModels() []services.LLMModelName {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]services.LLMModelName, 0, len(m.Calls))
	for _, call := range m.Calls {
		out = append(out, call.Model)
	}
	return out
}

// MockImageFetcher serves fixed bytes for every object key.
type MockImageFetcher struct {
	mu      sync.Mutex
	Fetched []string
	Err     error
}

func (m *MockImageFetcher) FetchItemImage(ctx context.Context, objectKey string) (services.ImageBlob, error) {
	m.mu.Lock()
	m.Fetched = append(m.Fetched, objectKey)
	m.mu.Unlock()
	if m.Err != nil {
		return services.ImageBlob{}, m.Err
	}
	return services.ImageBlob{MIMEType: "image/png", Data: []byte("fake image bytes")}, nil
}

type MockWeatherProvider struct {
	TempC float64
	Err   error
}

func (m MockWeatherProvider) CurrentTemperature(ctx context.Context, lat, lon float64) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.TempC, nil
}
