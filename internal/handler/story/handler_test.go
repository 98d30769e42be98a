package story

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"

	"fable/internal/config"
	storyModel "fable/internal/model/story"
	storyrepo "fable/internal/repository/story"
	storyservice "fable/internal/service/story"
)

// fakeManifestRepo 内存版清单仓库
type fakeManifestRepo struct {
	manifests map[string]*storyModel.Manifest
}

func (r *fakeManifestRepo) Upsert(_ context.Context, m *storyModel.Manifest) error {
	r.manifests[m.ID] = m
	return nil
}

func (r *fakeManifestRepo) FindByID(_ context.Context, id string) (*storyModel.Manifest, error) {
	m, ok := r.manifests[id]
	if !ok {
		return nil, storyrepo.ErrManifestNotFound
	}
	return m, nil
}

func (r *fakeManifestRepo) List(_ context.Context, status storyModel.Status, _ int64) ([]*storyModel.Manifest, error) {
	var out []*storyModel.Manifest
	for _, m := range r.manifests {
		if status == "" || m.Status == status {
			out = append(out, m)
		}
	}
	return out, nil
}

func setupTestRouter(repo storyrepo.ManifestRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	svc := storyservice.NewStoryService(cfg, repo, nil, nil, storyservice.Providers{})
	h := NewHandler(svc)

	engine := gin.New()
	v1 := engine.Group("/api/v1")
	{
		v1.GET("/stories", h.ListStories)
		v1.GET("/stories/:id", h.GetStory)
		v1.GET("/stories/:id/status", h.GetStatus)
	}
	return engine
}

func TestGetStoryHandler(t *testing.T) {
	Convey("GET /api/v1/stories/:id", t, func() {
		repo := &fakeManifestRepo{manifests: map[string]*storyModel.Manifest{
			"m-1": {ID: "m-1", Title: "山间晨雾", Status: storyModel.StatusStoryReady},
		}}
		router := setupTestRouter(repo)

		Convey("存在的作品返回 200 与清单", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/stories/m-1", nil)
			router.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)

			var resp struct {
				Code int                 `json:"code"`
				Data storyModel.Manifest `json:"data"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Code, ShouldEqual, 0)
			So(resp.Data.Title, ShouldEqual, "山间晨雾")
		})

		Convey("不存在的作品返回 404 与 40401", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/stories/missing", nil)
			router.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusNotFound)

			var resp ErrorResponse
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Code, ShouldEqual, 40401)
		})
	})
}

func TestListStoriesHandler(t *testing.T) {
	Convey("GET /api/v1/stories", t, func() {
		repo := &fakeManifestRepo{manifests: map[string]*storyModel.Manifest{
			"m-1": {ID: "m-1", Status: storyModel.StatusCompleted},
			"m-2": {ID: "m-2", Status: storyModel.StatusFailed},
		}}
		router := setupTestRouter(repo)

		Convey("不带过滤返回全部", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/stories", nil)
			router.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)

			var resp struct {
				Code int `json:"code"`
				Data struct {
					Count int `json:"count"`
				} `json:"data"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Data.Count, ShouldEqual, 2)
		})

		Convey("按状态过滤", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/stories?status=completed", nil)
			router.ServeHTTP(w, req)

			var resp struct {
				Data struct {
					Count int `json:"count"`
				} `json:"data"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Data.Count, ShouldEqual, 1)
		})
	})
}

func TestGetStatusHandler(t *testing.T) {
	Convey("GET /api/v1/stories/:id/status", t, func() {
		repo := &fakeManifestRepo{manifests: map[string]*storyModel.Manifest{
			"m-1": {
				ID:                "m-1",
				Status:            storyModel.StatusCompleted,
				GeneratedVideoURL: "http://example.com/final.mp4",
			},
		}}
		router := setupTestRouter(repo)

		Convey("非运行中的作品回退到落库镜像", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/stories/m-1/status", nil)
			router.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)

			var resp struct {
				Data struct {
					Status   string `json:"status"`
					VideoURL string `json:"video_url"`
				} `json:"data"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Data.Status, ShouldEqual, "completed")
			So(resp.Data.VideoURL, ShouldEqual, "http://example.com/final.mp4")
		})

		Convey("不存在的作品返回 404", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/stories/missing/status", nil)
			router.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
