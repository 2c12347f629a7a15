package Controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tableflow/reservation-app/controllers"
	"github.com/tableflow/reservation-app/models"
	"github.com/tableflow/reservation-app/services"
	"github.com/tableflow/reservation-app/utils"
)

// setupTestDB opens an in-memory SQLite limited to one connection so the
// reconciler goroutine-free paths share a single database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.Table{}, &models.Reservation{}, &models.TableStatusLog{}); err != nil {
		t.Fatal(err)
	}
	return db
}

func newServices(db *gorm.DB) (*services.ReservationService, *services.TableService, *services.Reconciler) {
	locks := services.NewTableLocks()
	rec := services.NewReconciler(db, services.SystemClock, locks, 2*time.Hour, 2*time.Second)
	return services.NewReservationService(db, services.SystemClock, rec),
		services.NewTableService(db, services.SystemClock, rec),
		rec
}

func setupTableRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	_, tableSvc, _ := newServices(db)
	tableCtrl := controllers.NewTableController(tableSvc)
	router.GET("/tables", tableCtrl.GetAllTables)
	router.GET("/tables/availability", tableCtrl.CheckAvailability)
	router.POST("/tables", tableCtrl.CreateTable)
	router.PATCH("/tables/:table_id/status", tableCtrl.UpdateTableStatus)
	router.DELETE("/tables/:table_id", tableCtrl.DeleteTable)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, url string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		assert.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, body)
	assert.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	return response
}

func TestGetAllTables(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)

	db.Create(&models.Table{Number: 1, Capacity: 4, Location: "main hall", Status: models.TableAvailable})
	db.Create(&models.Table{Number: 2, Capacity: 6, Location: "terrace", Status: models.TableOccupied})

	router := setupTableRouter(db)
	w := doJSON(t, router, "GET", "/tables", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeResponse(t, w)
	assert.Equal(t, "List of tables", response["message"])

	data := response["data"].([]interface{})
	assert.Len(t, data, 2)
}

func TestCreateTable(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	router := setupTableRouter(db)

	w := doJSON(t, router, "POST", "/tables", map[string]interface{}{
		"number": 5, "capacity": 4, "location": "terrace",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	response := decodeResponse(t, w)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "available", data["status"])

	// Duplicate table number.
	w = doJSON(t, router, "POST", "/tables", map[string]interface{}{
		"number": 5, "capacity": 2, "location": "main hall",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateTableStatus(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)

	table := models.Table{Number: 3, Capacity: 4, Location: "main hall", Status: models.TableAvailable}
	db.Create(&table)

	router := setupTableRouter(db)
	url := "/tables/" + strconv.Itoa(int(table.ID)) + "/status"

	w := doJSON(t, router, "PATCH", url, map[string]string{"status": "maintenance"})
	assert.Equal(t, http.StatusOK, w.Code)

	response := decodeResponse(t, w)
	assert.Equal(t, "Table status updated", response["message"])
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "maintenance", data["status"])

	// maintenance -> reserved is outside the manual matrix.
	w = doJSON(t, router, "PATCH", url, map[string]string{"status": "reserved"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDeleteTableWithActiveReservation(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)

	table := models.Table{Number: 4, Capacity: 4, Location: "main hall", Status: models.TableAvailable}
	db.Create(&table)
	db.Create(&models.Reservation{
		CustomerName:  "Dewi Lestari",
		CustomerPhone: "081211112222",
		CustomerEmail: "dewi@example.com",
		Date:          time.Now().AddDate(0, 0, 1).Format(models.DateLayout),
		Time:          "19:00",
		Duration:      120,
		Guests:        2,
		TableID:       table.ID,
		Status:        models.ReservationConfirmed,
	})

	router := setupTableRouter(db)
	w := doJSON(t, router, "DELETE", "/tables/"+strconv.Itoa(int(table.ID)), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCheckAvailabilityEndpoint(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)

	db.Create(&models.Table{Number: 1, Capacity: 4, Location: "main hall", Status: models.TableAvailable})
	db.Create(&models.Table{Number: 2, Capacity: 8, Location: "terrace", Status: models.TableMaintenance})

	router := setupTableRouter(db)
	date := time.Now().AddDate(0, 0, 1).Format(models.DateLayout)

	w := doJSON(t, router, "GET", "/tables/availability?date="+date+"&time=19:00&duration=90&guests=2", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	response := decodeResponse(t, w)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["total_available"])

	// Missing parameters come back as a validation failure.
	w = doJSON(t, router, "GET", "/tables/availability?date="+date, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
