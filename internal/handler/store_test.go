package handler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/fabble/moderation/internal/repository"
)

// memStore 处理器测试用的内存存储，实现各个窄接口
type memStore struct {
	mu sync.Mutex

	users         map[int64]*model.User
	groups        map[int64]*model.Group
	projects      map[int64]*model.Project
	cards         map[int64]*model.Card
	keywords      map[int64]*model.SpamKeyword
	logs          []*model.SpamDetectionLog
	spammers      map[int64]*model.Spammer
	notifications []*model.Notification
	settings      map[string]string

	nextID int64
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[int64]*model.User),
		groups:   make(map[int64]*model.Group),
		projects: make(map[int64]*model.Project),
		cards:    make(map[int64]*model.Card),
		keywords: make(map[int64]*model.SpamKeyword),
		spammers: make(map[int64]*model.Spammer),
		settings: make(map[string]string),
		nextID:   1000,
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) addUser(id int64, name string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &model.User{ID: id, Name: name}
	s.users[id] = u
	return u
}

func (s *memStore) addProject(p *model.Project) *model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	}
	s.projects[p.ID] = p
	return p
}

func (s *memStore) projectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.projects)
}

// UserStore

func (s *memStore) GetByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errors.NewNotFoundError("User")
	}
	return u, nil
}

func (s *memStore) GetOwner(_ context.Context, ownerType model.OwnerType, ownerID int64) (model.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ownerType {
	case model.OwnerTypeUser:
		if u, ok := s.users[ownerID]; ok {
			return model.Individual{User: u}, nil
		}
		return nil, errors.NewNotFoundError("User")
	case model.OwnerTypeGroup:
		if g, ok := s.groups[ownerID]; ok {
			return model.GroupOwner{Group: g}, nil
		}
		return nil, errors.NewNotFoundError("Group")
	}
	return nil, errors.NewInvalidRequest("unknown owner type")
}

// projects 项目存储
type memProjects struct{ *memStore }

func (s memProjects) Create(_ context.Context, p *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	s.projects[p.ID] = p
	return nil
}

func (s memProjects) GetByID(_ context.Context, id int64) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok || p.IsDeleted {
		return nil, errors.NewNotFoundError("Project")
	}
	return p, nil
}

func (s memProjects) GetByIDs(_ context.Context, ids []int64) ([]*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Project
	for _, id := range ids {
		if p, ok := s.projects[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s memProjects) Update(_ context.Context, p *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	return nil
}

func (s memProjects) SoftDestroy(_ context.Context, p *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.IsDeleted = true
	p.Title = model.DeletedProjectTitle
	s.projects[p.ID] = p
	return nil
}

type memCards struct{ *memStore }

func (s memCards) Create(_ context.Context, card *model.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	card.ID = s.id()
	s.cards[card.ID] = card
	return nil
}

func (s memCards) GetByID(_ context.Context, id int64) (*model.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[id]
	if !ok {
		return nil, errors.NewNotFoundError("Card")
	}
	return card, nil
}

func (s memCards) Update(_ context.Context, card *model.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[card.ID] = card
	return nil
}

type memKeywords struct{ *memStore }

func (s memKeywords) Create(_ context.Context, k *model.SpamKeyword) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k.ID = s.id()
	k.CreatedAt = time.Now()
	s.keywords[k.ID] = k
	return nil
}

func (s memKeywords) GetByID(_ context.Context, id int64) (*model.SpamKeyword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keywords[id]
	if !ok {
		return nil, errors.NewNotFoundError("SpamKeyword")
	}
	copied := *k
	return &copied, nil
}

func (s memKeywords) Update(_ context.Context, k *model.SpamKeyword) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *k
	s.keywords[k.ID] = &copied
	return nil
}

func (s memKeywords) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keywords[id]; !ok {
		return errors.NewNotFoundError("SpamKeyword")
	}
	delete(s.keywords, id)
	return nil
}

func (s memKeywords) List(_ context.Context, _ *repository.ListOptions) ([]*model.SpamKeyword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.SpamKeyword, 0, len(s.keywords))
	for _, k := range s.keywords {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s memKeywords) ListEnabled(_ context.Context) ([]*model.SpamKeyword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.SpamKeyword
	for _, k := range s.keywords {
		if k.Enabled {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memKeywords) ExistsByKeyword(_ context.Context, keyword string, excludeID *int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keywords {
		if k.Keyword == keyword && (excludeID == nil || k.ID != *excludeID) {
			return true, nil
		}
	}
	return false, nil
}

type memLogs struct{ *memStore }

func (s memLogs) Create(_ context.Context, log *model.SpamDetectionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.ID = s.id()
	s.logs = append(s.logs, log)
	return nil
}

func (s memLogs) match(filter repository.DetectionLogFilter) []*model.SpamDetectionLog {
	var out []*model.SpamDetectionLog
	for _, l := range s.logs {
		if filter.Method != "" && l.DetectionMethod != filter.Method {
			continue
		}
		if filter.UserID != nil && (l.UserID == nil || *l.UserID != *filter.UserID) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (s memLogs) List(_ context.Context, filter repository.DetectionLogFilter) ([]*model.SpamDetectionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match(filter), nil
}

func (s memLogs) Count(_ context.Context, filter repository.DetectionLogFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.match(filter)), nil
}

func (s *memStore) methodCount(method model.DetectionMethod) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.logs {
		if l.DetectionMethod == method {
			n++
		}
	}
	return n
}

func (s *memStore) logsFor(method model.DetectionMethod) []*model.SpamDetectionLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.SpamDetectionLog
	for _, l := range s.logs {
		if l.DetectionMethod == method {
			out = append(out, l)
		}
	}
	return out
}

type memSpammers struct{ *memStore }

func (s memSpammers) Exists(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sp := range s.spammers {
		if sp.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s memSpammers) Mark(ctx context.Context, userID int64, detectedAt time.Time) error {
	if exists, _ := s.Exists(ctx, userID); exists {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.spammers[id] = &model.Spammer{ID: id, UserID: userID, DetectedAt: &detectedAt}
	return nil
}

func (s memSpammers) List(_ context.Context, _ *repository.ListOptions) ([]*model.Spammer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Spammer, 0, len(s.spammers))
	for _, sp := range s.spammers {
		out = append(out, sp)
	}
	return out, nil
}

func (s memSpammers) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spammers[id]; !ok {
		return errors.NewNotFoundError("Spammer")
	}
	delete(s.spammers, id)
	return nil
}

type memNotifications struct{ *memStore }

func (s memNotifications) Create(_ context.Context, notifications ...*model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range notifications {
		n.ID = s.id()
		s.notifications = append(s.notifications, n)
	}
	return nil
}

func (s memNotifications) DeleteByNotifier(_ context.Context, notifierID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.notifications[:0]
	removed := 0
	for _, n := range s.notifications {
		if n.NotifierID == notifierID {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	s.notifications = kept
	return removed, nil
}

// memComments 单一种类的评论
type memComments struct {
	*memStore
	kind     model.CommentKind
	comments map[int64]model.ModeratedComment
}

func newMemComments(s *memStore, kind model.CommentKind) *memComments {
	return &memComments{memStore: s, kind: kind, comments: make(map[int64]model.ModeratedComment)}
}

func (s *memComments) Kind() model.CommentKind { return s.kind }

func (s *memComments) New() model.ModeratedComment {
	if s.kind == model.CommentKindCard {
		return &model.CardComment{}
	}
	return &model.ProjectComment{}
}

func (s *memComments) Create(_ context.Context, comment model.ModeratedComment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	switch c := comment.(type) {
	case *model.CardComment:
		c.ID, c.CreatedAt = id, time.Now()
	case *model.ProjectComment:
		c.ID, c.CreatedAt = id, time.Now()
	}
	s.comments[id] = comment
	return nil
}

func (s *memComments) GetForUpdate(_ context.Context, id int64) (model.ModeratedComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, errors.NewNotFoundError("Comment")
	}
	return c, nil
}

func (s *memComments) UpdateStatus(_ context.Context, comment model.ModeratedComment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[comment.GetID()] = comment
	return nil
}

func (s *memComments) ListUnconfirmedIDsBefore(_ context.Context, cutoff time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, c := range s.comments {
		if c.GetStatus() == model.CommentStatusUnconfirmed && !c.GetCreatedAt().After(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *memComments) List(_ context.Context, filter repository.CommentFilter) ([]model.ModeratedComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ModeratedComment
	for _, c := range s.comments {
		if filter.Status == nil || c.GetStatus() == *filter.Status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetID() > out[j].GetID() })
	return out, nil
}

func (s *memComments) Count(ctx context.Context, filter repository.CommentFilter) (int, error) {
	list, err := s.List(ctx, filter)
	return len(list), err
}

func (s *memComments) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.comments)
}

type memSettings struct{ *memStore }

func (s memSettings) Get(_ context.Context, key string) (*model.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	if !ok {
		return nil, errors.NewNotFoundError("SystemSetting")
	}
	return &model.SystemSetting{Key: key, Value: v}, nil
}

func (s memSettings) Upsert(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

// passTx 直接执行，不做回滚
type passTx struct{}

func (passTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
