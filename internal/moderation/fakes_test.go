package moderation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fabble/moderation/internal/messaging"
	"github.com/fabble/moderation/internal/model"
	"github.com/quagmt/udecimal"
)

var errInjected = errors.New("injected failure")

// fakeDB 内存数据，事务回滚时整体恢复快照
type fakeDB struct {
	mu sync.Mutex

	comments      map[int64]model.ModeratedComment
	notifications []model.Notification
	spammers      map[int64]time.Time
	projects      map[int64]model.Project
	logs          []model.SpamDetectionLog
	owners        map[model.OwnerType]map[int64]model.Owner

	nextID int64

	// 注入的失败
	failMarkSpammer  bool
	failDeleteNotice bool
	failSoftDestroy  map[int64]bool
	failLogCreate    bool
	failCommentAt    map[int64]bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		comments:        make(map[int64]model.ModeratedComment),
		spammers:        make(map[int64]time.Time),
		projects:        make(map[int64]model.Project),
		owners:          map[model.OwnerType]map[int64]model.Owner{model.OwnerTypeUser: {}, model.OwnerTypeGroup: {}},
		failSoftDestroy: make(map[int64]bool),
		failCommentAt:   make(map[int64]bool),
		nextID:          100,
	}
}

type fakeSnapshot struct {
	comments      map[int64]model.ModeratedComment
	notifications []model.Notification
	spammers      map[int64]time.Time
	projects      map[int64]model.Project
	logs          []model.SpamDetectionLog
}

func (db *fakeDB) snapshot() fakeSnapshot {
	s := fakeSnapshot{
		comments:      make(map[int64]model.ModeratedComment, len(db.comments)),
		notifications: append([]model.Notification(nil), db.notifications...),
		spammers:      make(map[int64]time.Time, len(db.spammers)),
		projects:      make(map[int64]model.Project, len(db.projects)),
		logs:          append([]model.SpamDetectionLog(nil), db.logs...),
	}
	for id, c := range db.comments {
		s.comments[id] = cloneComment(c)
	}
	for id, t := range db.spammers {
		s.spammers[id] = t
	}
	for id, p := range db.projects {
		s.projects[id] = p
	}
	return s
}

func (db *fakeDB) restore(s fakeSnapshot) {
	db.comments = s.comments
	db.notifications = s.notifications
	db.spammers = s.spammers
	db.projects = s.projects
	db.logs = s.logs
}

func cloneComment(c model.ModeratedComment) model.ModeratedComment {
	switch v := c.(type) {
	case *model.CardComment:
		cp := *v
		return &cp
	case *model.ProjectComment:
		cp := *v
		return &cp
	}
	panic("unknown comment type")
}

type txMarker struct{}

// fakeTransactor 失败时恢复事务开始前的快照，嵌套调用复用外层事务
type fakeTransactor struct {
	db *fakeDB
}

func (t *fakeTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}
	t.db.mu.Lock()
	snap := t.db.snapshot()
	t.db.mu.Unlock()

	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		t.db.mu.Lock()
		t.db.restore(snap)
		t.db.mu.Unlock()
		return err
	}
	return nil
}

type fakeCommentStore struct {
	db   *fakeDB
	kind model.CommentKind
}

func (s *fakeCommentStore) Kind() model.CommentKind { return s.kind }

func (s *fakeCommentStore) Create(_ context.Context, c model.ModeratedComment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.nextID++
	switch v := c.(type) {
	case *model.CardComment:
		v.ID = s.db.nextID
		v.CreatedAt = time.Now()
	case *model.ProjectComment:
		v.ID = s.db.nextID
		v.CreatedAt = time.Now()
	}
	s.db.comments[c.GetID()] = cloneComment(c)
	return nil
}

func (s *fakeCommentStore) add(c model.ModeratedComment) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.comments[c.GetID()] = cloneComment(c)
}

func (s *fakeCommentStore) get(id int64) model.ModeratedComment {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if c, ok := s.db.comments[id]; ok {
		return cloneComment(c)
	}
	return nil
}

func (s *fakeCommentStore) GetForUpdate(_ context.Context, id int64) (model.ModeratedComment, error) {
	c := s.get(id)
	if c == nil || c.Kind() != s.kind {
		return nil, errors.New("comment not found")
	}
	return c, nil
}

func (s *fakeCommentStore) UpdateStatus(_ context.Context, c model.ModeratedComment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.failCommentAt[c.GetID()] {
		return errInjected
	}
	s.db.comments[c.GetID()] = cloneComment(c)
	return nil
}

func (s *fakeCommentStore) ListUnconfirmedIDsBefore(_ context.Context, cutoff time.Time) ([]int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var ids []int64
	for id, c := range s.db.comments {
		if c.Kind() == s.kind && c.GetStatus() == model.CommentStatusUnconfirmed && !c.GetCreatedAt().After(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type fakeNotificationStore struct {
	db *fakeDB
}

func (s *fakeNotificationStore) Create(_ context.Context, notifications ...*model.Notification) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, n := range notifications {
		s.db.notifications = append(s.db.notifications, *n)
	}
	return nil
}

func (s *fakeNotificationStore) DeleteByNotifier(_ context.Context, notifierID int64) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.failDeleteNotice {
		return 0, errInjected
	}
	kept := s.db.notifications[:0:0]
	removed := 0
	for _, n := range s.db.notifications {
		if n.NotifierID == notifierID {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	s.db.notifications = kept
	return removed, nil
}

func (db *fakeDB) notificationCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.notifications)
}

type fakeSpammerStore struct {
	db *fakeDB
}

func (s *fakeSpammerStore) Exists(_ context.Context, userID int64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	_, ok := s.db.spammers[userID]
	return ok, nil
}

func (s *fakeSpammerStore) Mark(_ context.Context, userID int64, detectedAt time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.failMarkSpammer {
		return errInjected
	}
	if _, ok := s.db.spammers[userID]; !ok {
		s.db.spammers[userID] = detectedAt
	}
	return nil
}

func (db *fakeDB) isSpammer(userID int64) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, ok := db.spammers[userID]
	return ok
}

type fakeLogStore struct {
	db *fakeDB
}

func (s *fakeLogStore) Create(_ context.Context, log *model.SpamDetectionLog) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.failLogCreate {
		return errInjected
	}
	s.db.nextID++
	log.ID = s.db.nextID
	s.db.logs = append(s.db.logs, *log)
	return nil
}

func (db *fakeDB) detectionLogs() []model.SpamDetectionLog {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]model.SpamDetectionLog(nil), db.logs...)
}

type fakeOwnerResolver struct {
	db *fakeDB
}

func (r *fakeOwnerResolver) GetOwner(_ context.Context, ownerType model.OwnerType, ownerID int64) (model.Owner, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	owner, ok := r.db.owners[ownerType][ownerID]
	if !ok {
		return nil, errors.New("owner not found")
	}
	return owner, nil
}

type fakeProjectStore struct {
	db *fakeDB
}

func (s *fakeProjectStore) SoftDestroy(_ context.Context, project *model.Project) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.failSoftDestroy[project.ID] {
		return errInjected
	}
	project.Title = model.DeletedProjectTitle
	project.Name = "deleted-project-test"
	project.IsDeleted = true
	s.db.projects[project.ID] = *project
	return nil
}

func (db *fakeDB) project(id int64) model.Project {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.projects[id]
}

type fakeKeywordSource struct {
	mu       sync.Mutex
	keywords []*model.SpamKeyword
	calls    int
	err      error
}

func (s *fakeKeywordSource) ListEnabled(context.Context) ([]*model.SpamKeyword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []*model.SpamKeyword
	for _, k := range s.keywords {
		if k.Enabled {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *fakeKeywordSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeEventSink struct {
	events []messaging.DetectionEvent
	err    error
}

func (s *fakeEventSink) PublishDetection(event messaging.DetectionEvent) error {
	s.events = append(s.events, event)
	return s.err
}

type fakeThresholds struct {
	value udecimal.Decimal
	err   error
}

func (f fakeThresholds) RecaptchaThreshold(context.Context) (udecimal.Decimal, error) {
	return f.value, f.err
}

type fakeReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *fakeReporter) Report(_ context.Context, err error, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *fakeReporter) Flush(time.Duration) {}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}
