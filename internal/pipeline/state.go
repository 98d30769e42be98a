package pipeline

import (
	"fmt"
	"sync"
	"time"

	"fable/internal/model/story"
)

// LogEntry 一条带时间戳的进度日志
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Snapshot 任务状态的一次性快照
// 订阅者在每次变更时同步收到快照；Manifest 指针在各阶段间共享，
// 订阅者只读，不得通过它回写
type Snapshot struct {
	Status      story.Status    `json:"status"`
	Manifest    *story.Manifest `json:"manifest,omitempty"`
	Logs        []LogEntry      `json:"logs"`
	ImagesDone  int             `json:"images_done"`
	ImagesTotal int             `json:"images_total"`
	Error       string          `json:"error,omitempty"`
	VideoURL    string          `json:"video_url,omitempty"`
}

// Patch 状态的浅合并更新
// 为 nil 的字段保持不变
type Patch struct {
	Status      *story.Status
	Manifest    *story.Manifest
	ImagesDone  *int
	ImagesTotal *int
	Error       *string
	VideoURL    *string
}

// JobState 单次流水线运行的可观察状态（任务状态广播器）
// 每次运行持有独立实例，由编排层注入各阶段；所有修改都经过
// Update/AddLog，变更在持锁期间同步按序通知订阅者。
// 订阅回调内不得再调用本对象的方法（会死锁），需要异步处理时自行起 goroutine
type JobState struct {
	mu     sync.Mutex
	snap   Snapshot
	subs   map[int]func(Snapshot)
	nextID int
}

// NewJobState 创建任务状态广播器
func NewJobState() *JobState {
	return &JobState{
		snap: Snapshot{Status: story.StatusCreated},
		subs: make(map[int]func(Snapshot)),
	}
}

// Reset 清空所有字段回到初始状态并通知
// 新一轮运行复用实例前必须调用；订阅关系保留
func (j *JobState) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.snap = Snapshot{Status: story.StatusCreated}
	j.notifyLocked()
}

// Update 浅合并更新并通知
func (j *JobState) Update(p Patch) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if p.Status != nil {
		j.snap.Status = *p.Status
	}
	if p.Manifest != nil {
		j.snap.Manifest = p.Manifest
	}
	if p.ImagesDone != nil {
		j.snap.ImagesDone = *p.ImagesDone
	}
	if p.ImagesTotal != nil {
		j.snap.ImagesTotal = *p.ImagesTotal
	}
	if p.Error != nil {
		j.snap.Error = *p.Error
	}
	if p.VideoURL != nil {
		j.snap.VideoURL = *p.VideoURL
	}
	j.notifyLocked()
}

// SetStatus 更新状态并通知
func (j *JobState) SetStatus(s story.Status) {
	j.Update(Patch{Status: &s})
}

// Fail 记录错误并把状态置为 failed
func (j *JobState) Fail(msg string) {
	failed := story.StatusFailed
	j.Update(Patch{Status: &failed, Error: &msg})
}

// AddLog 追加一条日志并通知
func (j *JobState) AddLog(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.snap.Logs = append(j.snap.Logs, LogEntry{
		Time:    time.Now(),
		Message: fmt.Sprintf(format, args...),
	})
	j.notifyLocked()
}

// Subscribe 注册订阅者，返回取消订阅函数
// 注册后立即收到一次当前快照
func (j *JobState) Subscribe(fn func(Snapshot)) func() {
	j.mu.Lock()
	id := j.nextID
	j.nextID++
	j.subs[id] = fn
	fn(j.copyLocked())
	j.mu.Unlock()

	return func() {
		j.mu.Lock()
		delete(j.subs, id)
		j.mu.Unlock()
	}
}

// Snapshot 返回当前状态快照
func (j *JobState) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.copyLocked()
}

// notifyLocked 持锁状态下按序通知所有订阅者
func (j *JobState) notifyLocked() {
	snap := j.copyLocked()
	for _, fn := range j.subs {
		fn(snap)
	}
}

// copyLocked 持锁状态下复制快照（日志切片独立复制，防止订阅者观察到追加中的底层数组）
func (j *JobState) copyLocked() Snapshot {
	snap := j.snap
	snap.Logs = make([]LogEntry, len(j.snap.Logs))
	copy(snap.Logs, j.snap.Logs)
	return snap
}
