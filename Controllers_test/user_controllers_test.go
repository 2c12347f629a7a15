package Controllers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/tableflow/reservation-app/controllers"
	"github.com/tableflow/reservation-app/middlewares"
	"github.com/tableflow/reservation-app/utils"
)

func setupUserRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	userCtrl := controllers.NewUserController(db)
	router.POST("/register", userCtrl.Register)
	router.POST("/login", userCtrl.Login)
	router.GET("/profile", middlewares.AuthMiddleware(), userCtrl.GetProfile)
	return router
}

func TestRegisterAndLogin(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	router := setupUserRouter(db)

	w := doJSON(t, router, "POST", "/register", map[string]string{
		"name":     "Sari Putri",
		"email":    "sari@example.com",
		"password": "rahasia-sekali",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "User registered", decodeResponse(t, w)["message"])

	w = doJSON(t, router, "POST", "/login", map[string]string{
		"email":    "sari@example.com",
		"password": "rahasia-sekali",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.NotEmpty(t, data["token"])
	user := data["user"].(map[string]interface{})
	assert.Equal(t, "customer", user["role"])
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	router := setupUserRouter(db)

	w := doJSON(t, router, "POST", "/register", map[string]string{
		"name":     "Sari Putri",
		"email":    "sari@example.com",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	router := setupUserRouter(db)

	w := doJSON(t, router, "POST", "/register", map[string]string{
		"name":     "Sari Putri",
		"email":    "sari@example.com",
		"password": "rahasia-sekali",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, "POST", "/login", map[string]string{
		"email":    "sari@example.com",
		"password": "bukan-itu",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, "POST", "/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "rahasia-sekali",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetProfileRequiresToken(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	router := setupUserRouter(db)

	w := doJSON(t, router, "GET", "/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetProfileWithToken(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	router := setupUserRouter(db)

	w := doJSON(t, router, "POST", "/register", map[string]string{
		"name":     "Sari Putri",
		"email":    "sari@example.com",
		"password": "rahasia-sekali",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, "POST", "/login", map[string]string{
		"email":    "sari@example.com",
		"password": "rahasia-sekali",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	token := decodeResponse(t, w)["data"].(map[string]interface{})["token"].(string)

	req, err := http.NewRequest("GET", "/profile", nil)
	assert.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	profile := decodeResponse(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "sari@example.com", profile["email"])
	// The password hash never leaves the API.
	_, exposed := profile["password"]
	assert.False(t, exposed)
}
