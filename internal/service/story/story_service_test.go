package story

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"fable/internal/config"
	storyModel "fable/internal/model/story"
	storyrepo "fable/internal/repository/story"
)

// fakeManifestRepo 内存版清单仓库
type fakeManifestRepo struct {
	manifests map[string]*storyModel.Manifest
	upserts   int
}

func newFakeManifestRepo() *fakeManifestRepo {
	return &fakeManifestRepo{manifests: make(map[string]*storyModel.Manifest)}
}

func (r *fakeManifestRepo) Upsert(_ context.Context, m *storyModel.Manifest) error {
	r.upserts++
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

func testService(repo storyrepo.ManifestRepository) *StoryService {
	cfg := &config.Config{}
	cfg.Image.Backend = "ark"
	return NewStoryService(cfg, repo, nil, nil, Providers{})
}

func TestGetStatusFallback(t *testing.T) {
	Convey("GetStatus 在无运行态与缓存时回退到落库镜像", t, func() {
		repo := newFakeManifestRepo()
		repo.manifests["m-1"] = &storyModel.Manifest{
			ID:                "m-1",
			Status:            storyModel.StatusCompleted,
			GeneratedVideoURL: "http://example.com/final.mp4",
		}
		svc := testService(repo)

		snap, err := svc.GetStatus(context.Background(), "m-1")
		So(err, ShouldBeNil)
		So(snap.Status, ShouldEqual, storyModel.StatusCompleted)
		So(snap.VideoURL, ShouldEqual, "http://example.com/final.mp4")
		So(snap.Manifest.ID, ShouldEqual, "m-1")

		Convey("清单不存在时透传 ErrManifestNotFound", func() {
			_, err := svc.GetStatus(context.Background(), "missing")
			So(errors.Is(err, storyrepo.ErrManifestNotFound), ShouldBeTrue)
		})
	})
}

func TestJobStateRegistry(t *testing.T) {
	Convey("任务状态广播器登记", t, func() {
		svc := testService(newFakeManifestRepo())

		Convey("未运行的作品没有广播器", func() {
			So(svc.JobStateFor("m-1"), ShouldBeNil)
		})

		Convey("jobState 按作品复用同一实例", func() {
			a := svc.jobState("m-1")
			b := svc.jobState("m-1")
			So(a, ShouldNotBeNil)
			So(b, ShouldEqual, a)
			So(svc.JobStateFor("m-1"), ShouldEqual, a)

			Convey("运行中的作品 GetStatus 直接读广播器", func() {
				a.AddLog("running")
				snap, err := svc.GetStatus(context.Background(), "m-1")
				So(err, ShouldBeNil)
				So(len(snap.Logs), ShouldEqual, 1)
			})
		})

		Convey("adoptJobState 不覆盖已有登记", func() {
			first := svc.jobState("m-2")
			svc.adoptJobState("m-2", first)
			So(svc.JobStateFor("m-2"), ShouldEqual, first)
		})
	})
}

func TestImageProviderSelection(t *testing.T) {
	Convey("按配置选择图片生成后端", t, func() {
		Convey("后端已选但客户端未配置时报错", func() {
			svc := testService(newFakeManifestRepo())
			_, err := svc.imageProvider("m-1")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "not configured")
		})

		Convey("t2p 后端同样要求客户端", func() {
			svc := testService(newFakeManifestRepo())
			svc.cfg.Image.Backend = "t2p"
			_, err := svc.imageProvider("m-1")
			So(err, ShouldNotBeNil)
		})

		Convey("未知后端报错", func() {
			svc := testService(newFakeManifestRepo())
			svc.cfg.Image.Backend = "dalle"
			_, err := svc.imageProvider("m-1")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unsupported image backend")
		})
	})
}

func TestCreateStoryRequiresChatModel(t *testing.T) {
	Convey("未配置文本模型时创建作品直接报错", t, func() {
		svc := testService(newFakeManifestRepo())
		_, err := svc.CreateStory(context.Background(), CreateStoryRequest{Idea: "一只会做饭的猫"})
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "chat model")
	})
}
