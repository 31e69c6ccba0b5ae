package users

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newSectorsRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(NewService(NewMemoryRepo())).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestGetSectorsCreatesUser(t *testing.T) {
	router := newSectorsRouter()

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/sectors?userId=user-1", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var body sectorsResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.EnabledSectors) != 3 {
		t.Fatalf("expected 3 default sectors, got %v", body.EnabledSectors)
	}
}

func TestPutSectorsReplacesSet(t *testing.T) {
	router := newSectorsRouter()

	req := httptest.NewRequest(http.MethodPut, "/api/v1/sectors", strings.NewReader(`{"userId":"user-1","enabledSectors":["habits","Goals","Habits"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"enabledSectors":["Habits","Goals"]`) {
		t.Fatalf("unexpected body: %s", resp.Body.String())
	}
}

func TestPutSectorsRejectsUnknownSector(t *testing.T) {
	router := newSectorsRouter()

	req := httptest.NewRequest(http.MethodPut, "/api/v1/sectors", strings.NewReader(`{"userId":"user-1","enabledSectors":["Finance"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"code":"invalid_request"`) {
		t.Fatalf("unexpected body: %s", resp.Body.String())
	}
}

func TestGetSectorsRequiresUser(t *testing.T) {
	router := newSectorsRouter()

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/sectors", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}
