package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fabble/moderation/internal/cache"
	"github.com/fabble/moderation/internal/i18n"
	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/fabble/moderation/internal/moderation"
	"github.com/fabble/moderation/internal/repository"
	"github.com/fabble/moderation/internal/setting"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminToken = "secret-admin-token"

type testEnv struct {
	store        *memStore
	projComments *memComments
	cardComments *memComments
	settings     *setting.Store
	router       *gin.Engine

	owner   *model.User
	author  *model.User
	spammer *model.User
	project *model.Project
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRecaptcha(t, moderation.RecaptchaConfig{})
}

// newSiteverify 返回固定分数的 siteverify 服务
func newSiteverify(t *testing.T, score float64, action string) moderation.RecaptchaConfig {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true, "score": score, "action": action,
		})
	}))
	t.Cleanup(server.Close)
	return moderation.RecaptchaConfig{
		SiteKey:   "site",
		SecretKey: "secret",
		VerifyURL: server.URL,
		Timeout:   time.Second,
	}
}

// projectForm 项目创建表单，token 为空时不带 reCAPTCHA 字段
func projectForm(name, title, token string) url.Values {
	form := url.Values{"name": {name}, "title": {title}}
	if token != "" {
		form.Set("g-recaptcha-response-data["+ActionCreateProject+"]", token)
	}
	return form
}

func newTestEnvWithRecaptcha(t *testing.T, recaptchaCfg moderation.RecaptchaConfig) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	env := &testEnv{store: store}
	env.owner = store.addUser(1, "owner")
	env.author = store.addUser(2, "author")
	env.spammer = store.addUser(3, "bot")
	env.project = store.addProject(&model.Project{
		OwnerType: model.OwnerTypeUser,
		OwnerID:   env.owner.ID,
		Name:      "lamp",
		Title:     "Desk Lamp",
	})

	_ = memKeywords{store}.Create(context.Background(), &model.SpamKeyword{Keyword: "casino", Enabled: true})
	_ = memSpammers{store}.Mark(context.Background(), env.spammer.ID, time.Now())

	translator := i18n.MustNew("en")
	logs := moderation.NewDetectionLogger(memLogs{store}, nil)
	spammers := moderation.NewSpammerRegistry(memSpammers{store}, logs)
	matcher := moderation.NewKeywordMatcher(memKeywords{store}, cache.NewMemoryCache(), logs, translator, moderation.KeywordMatcherConfig{})
	env.settings = setting.NewStore(memSettings{store}, cache.NewMemoryCache(), passTx{}, nil, setting.Config{})
	recaptcha := moderation.NewRecaptchaGate(recaptchaCfg, env.settings, logs, nil, translator)

	env.projComments = newMemComments(store, model.CommentKindProject)
	env.cardComments = newMemComments(store, model.CommentKindCard)
	notifications := memNotifications{store}

	deps := Deps{
		Users:         store,
		Projects:      memProjects{store},
		Cards:         memCards{store},
		Keywords:      memKeywords{store},
		DetectionLogs: memLogs{store},
		SpammerAdmin:  memSpammers{store},
		CardComments: CommentKindDeps{
			Lister:    env.cardComments,
			Moderator: moderation.NewCommentModerator(env.cardComments, notifications, spammers, passTx{}),
		},
		ProjComments: CommentKindDeps{
			Lister:    env.projComments,
			Moderator: moderation.NewCommentModerator(env.projComments, notifications, spammers, passTx{}),
		},
		Settings:    env.settings,
		Spammers:    spammers,
		Recaptcha:   recaptcha,
		Matcher:     matcher,
		Designation: moderation.NewSpamDesignationService(store, memProjects{store}, spammers, passTx{}, translator),
	}

	env.router = New(deps, Options{AdminToken: testAdminToken}).NewRouter()
	return env
}

func (e *testEnv) do(method, path string, userID int64, body interface{}, jsonReq bool) *httptest.ResponseRecorder {
	var req *http.Request
	switch b := body.(type) {
	case url.Values:
		req = httptest.NewRequest(method, path, strings.NewReader(b.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	case nil:
		req = httptest.NewRequest(method, path, nil)
	default:
		data, _ := json.Marshal(b)
		req = httptest.NewRequest(method, path, strings.NewReader(string(data)))
		req.Header.Set("Content-Type", "application/json")
	}
	if jsonReq {
		req.Header.Set("Accept", "application/json")
	}
	if userID > 0 {
		req.Header.Set("X-User-ID", itoa(userID))
	}
	if strings.HasPrefix(path, "/admin") {
		req.Header.Set("Authorization", "Bearer "+testAdminToken)
	}
	req.Header.Set("Referer", "http://example.com/owner/lamp")
	req.Host = "example.com"

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func flashFrom(t *testing.T, w *httptest.ResponseRecorder) (Flash, bool) {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == FlashCookie {
			f, err := ReadFlash(c.Value)
			require.NoError(t, err)
			return f, true
		}
	}
	return Flash{}, false
}

func TestCreateProjectComment_KeywordRejected(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/projects/"+itoa(env.project.ID)+"/comments", env.author.ID,
		map[string]string{"body": "Visit my CASINO today"}, true)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp PolicyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "c****o")
	assert.Equal(t, "Visit my CASINO today", resp.Input["body"])

	assert.Equal(t, 0, env.projComments.count())
	assert.Equal(t, 1, env.store.methodCount(model.DetectionMethodKeyword))
}

func TestCreateProjectComment_KeywordRejectedPage(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/projects/"+itoa(env.project.ID)+"/comments", env.author.ID,
		url.Values{"body": {"cheap casino"}}, false)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/owner/lamp", w.Header().Get("Location"))

	flash, ok := flashFrom(t, w)
	require.True(t, ok)
	assert.Contains(t, flash.Alert, "c****o")
	assert.Equal(t, "cheap casino", flash.Input["body"])
	assert.Equal(t, 0, env.projComments.count())
}

func TestCreateProject_SpammerSilentlyRejected(t *testing.T) {
	env := newTestEnv(t)
	before := env.store.projectCount()

	w := env.do(http.MethodPost, "/projects", env.spammer.ID,
		url.Values{"name": {"spam"}, "title": {"Buy now"}}, false)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/bot", w.Header().Get("Location"))
	_, hasFlash := flashFrom(t, w)
	assert.False(t, hasFlash)
	assert.Equal(t, before, env.store.projectCount())
	assert.Equal(t, 1, env.store.methodCount(model.DetectionMethodSpammer))
}

func TestCreateProject_SpammerWinsOverRecaptchaAndKeyword(t *testing.T) {
	env := newTestEnvWithRecaptcha(t, newSiteverify(t, 0.1, ActionCreateProject))
	before := env.store.projectCount()

	w := env.do(http.MethodPost, "/projects", env.spammer.ID, projectForm("spam", "casino", "tok"), false)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/bot", w.Header().Get("Location"))
	_, hasFlash := flashFrom(t, w)
	assert.False(t, hasFlash)
	assert.Equal(t, before, env.store.projectCount())
	assert.Equal(t, 1, env.store.methodCount(model.DetectionMethodSpammer))
	assert.Equal(t, 0, env.store.methodCount(model.DetectionMethodRecaptcha))
	assert.Equal(t, 0, env.store.methodCount(model.DetectionMethodKeyword))
}

func TestCreateProject_RecaptchaTokenMissing(t *testing.T) {
	env := newTestEnvWithRecaptcha(t, newSiteverify(t, 0.9, ActionCreateProject))
	before := env.store.projectCount()

	w := env.do(http.MethodPost, "/projects", env.author.ID,
		map[string]interface{}{"name": "robot", "title": "Robot Arm"}, true)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp PolicyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, errors.CodeRecaptchaTokenMissing, resp.Code)
	assert.Equal(t, before, env.store.projectCount())

	logs := env.store.logsFor(model.DetectionMethodRecaptcha)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].DetectionReason)
	assert.Equal(t, moderation.RecaptchaReasonTokenMissing, *logs[0].DetectionReason)
}

func TestCreateProject_RecaptchaLowScore(t *testing.T) {
	env := newTestEnvWithRecaptcha(t, newSiteverify(t, 0.1, ActionCreateProject))
	before := env.store.projectCount()

	w := env.do(http.MethodPost, "/projects", env.author.ID, projectForm("robot", "Robot Arm", "tok"), true)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp PolicyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, errors.CodeRecaptchaFailed, resp.Code)
	assert.Equal(t, before, env.store.projectCount())

	logs := env.store.logsFor(model.DetectionMethodRecaptcha)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].DetectionReason)
	assert.Equal(t, "score=0.1, threshold=0.5", *logs[0].DetectionReason)
	assert.Equal(t, 0, env.store.methodCount(model.DetectionMethodKeyword))
}

func TestCreateProject_RecaptchaPassed(t *testing.T) {
	env := newTestEnvWithRecaptcha(t, newSiteverify(t, 0.9, ActionCreateProject))

	w := env.do(http.MethodPost, "/projects", env.author.ID, projectForm("robot", "Robot Arm", "tok"), false)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/author/robot", w.Header().Get("Location"))
	assert.Equal(t, 0, env.store.methodCount(model.DetectionMethodRecaptcha))
}

func TestCreateProject(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/projects", env.author.ID,
		url.Values{"name": {"robot"}, "title": {"Robot Arm"}}, false)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/author/robot", w.Header().Get("Location"))
	assert.Equal(t, 2, env.store.projectCount())
}

func TestCreateProject_Anonymous(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/projects", 0, map[string]string{"name": "x", "title": "y"}, true)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateProject_ValidationAfterScreening(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/projects", env.author.ID, map[string]string{"name": "robot", "title": "  "}, true)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "title can't be blank")
}

func TestUpdateProject_NonMemberForbidden(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPatch, "/projects/"+itoa(env.project.ID), env.author.ID,
		map[string]string{"title": "Mine now"}, true)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Desk Lamp", env.project.Title)
}

func TestCreateProjectComment_Notifies(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/projects/"+itoa(env.project.ID)+"/comments", env.author.ID,
		map[string]string{"body": "Nice lamp"}, true)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, 1, env.projComments.count())

	comments, _ := env.projComments.List(context.Background(), repository.CommentFilter{})
	assert.Equal(t, model.CommentStatusUnconfirmed, comments[0].GetStatus())

	require.Len(t, env.store.notifications, 1)
	n := env.store.notifications[0]
	assert.Equal(t, env.owner.ID, n.NotifiedID)
	assert.Equal(t, env.author.ID, n.NotifierID)
	assert.Equal(t, "author commented on Desk Lamp.", n.Body)
	assert.Equal(t, "/owner/lamp", n.Path)
}

func TestCreateCardComment_SpammerAutoSpam(t *testing.T) {
	env := newTestEnv(t)
	card := &model.Card{ProjectID: env.project.ID, CardType: model.CardTypeNote, Title: "wiring"}
	require.NoError(t, memCards{env.store}.Create(context.Background(), card))

	w := env.do(http.MethodPost, "/cards/"+itoa(card.ID)+"/comments", env.spammer.ID,
		map[string]string{"body": "hello"}, true)

	require.Equal(t, http.StatusCreated, w.Code)
	comments, _ := env.cardComments.List(context.Background(), repository.CommentFilter{})
	require.Len(t, comments, 1)
	assert.Equal(t, model.CommentStatusSpam, comments[0].GetStatus())
	assert.Empty(t, env.store.notifications)
	assert.Equal(t, 0, env.store.methodCount(model.DetectionMethodSpammer))
}

func TestCreateCard_KeywordRejected(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/projects/"+itoa(env.project.ID)+"/usages", env.author.ID,
		map[string]string{"title": "step", "description": "casino link"}, true)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, env.store.cards)
	require.Len(t, env.store.logs, 1)
	assert.Equal(t, "Usage", env.store.logs[0].ContentType)
}

func TestReadonlyGate(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.settings.EnableReadonly(context.Background(), nil))

	w := env.do(http.MethodPost, "/projects/"+itoa(env.project.ID)+"/comments", env.author.ID,
		map[string]string{"body": "Nice lamp"}, true)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp PolicyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ReadonlyModeMessage, resp.Error)
	assert.Equal(t, 0, env.projComments.count())

	w = env.do(http.MethodPost, "/projects", 0, url.Values{"name": {"x"}}, false)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/owner/lamp", w.Header().Get("Location"))
	flash, ok := flashFrom(t, w)
	require.True(t, ok)
	assert.Equal(t, ReadonlyModeMessage, flash.Alert)
}

func TestAdminAuth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/spam_keywords", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminKeywords(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/admin/spam_keywords", 0, map[string]string{"keyword": "  casino "}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate_value")

	w = env.do(http.MethodPost, "/admin/spam_keywords", 0, map[string]string{"keyword": " pills "}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Data model.SpamKeyword `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "pills", created.Data.Keyword)
	assert.True(t, created.Data.Enabled)

	// 新关键词立即生效
	w = env.do(http.MethodPost, "/projects/"+itoa(env.project.ID)+"/comments", env.author.ID,
		map[string]string{"body": "cheap pills"}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(http.MethodPost, "/admin/spam_keywords/"+itoa(created.Data.ID)+"/toggle", 0, nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/projects/"+itoa(env.project.ID)+"/comments", env.author.ID,
		map[string]string{"body": "cheap pills"}, true)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodPost, "/admin/spam_keywords", 0, map[string]string{"keyword": "   "}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAdminCommentTransitions(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/projects/"+itoa(env.project.ID)+"/comments", env.author.ID,
		map[string]string{"body": "Nice lamp"}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	comments, _ := env.projComments.List(context.Background(), repository.CommentFilter{})
	id := itoa(comments[0].GetID())

	w = env.do(http.MethodPost, "/admin/project_comments/"+id+"/spam", 0, nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.CommentStatusSpam, comments[0].GetStatus())
	assert.Empty(t, env.store.notifications)

	spammer, _ := memSpammers{env.store}.Exists(context.Background(), env.author.ID)
	assert.True(t, spammer)

	w = env.do(http.MethodDelete, "/admin/project_comments/"+id+"/approval", 0, nil, true)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Can't unapprove spam comment")

	w = env.do(http.MethodPost, "/admin/project_comments/"+id+"/approval", 0, nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.CommentStatusApproved, comments[0].GetStatus())

	w = env.do(http.MethodGet, "/admin/project_comments?status=approved", 0, nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func TestAdminSpamBatch(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/admin/card_comments/spam_batch?before=yesterday", 0, nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/admin/card_comments/spam_batch", 0, nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c1 := &model.CardComment{CardID: 1, UserID: env.author.ID, Body: "a"}
	require.NoError(t, env.cardComments.Create(context.Background(), c1))

	before := url.QueryEscape(time.Now().Add(time.Minute).Format(time.RFC3339))
	w = env.do(http.MethodPost, "/admin/card_comments/spam_batch?before="+before, 0, nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
	assert.Equal(t, model.CommentStatusSpam, c1.Status)
}

func TestAdminBatchSpamProjects(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/admin/projects/batch_spam", 0, map[string]interface{}{"projectIds": []int64{}}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/admin/projects/batch_spam", 0, map[string]interface{}{"projectIds": []int64{env.project.ID}}, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success int               `json:"success"`
		Failed  []int64           `json:"failed"`
		Errors  map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Success)
	assert.Empty(t, resp.Failed)

	assert.True(t, env.project.IsDeleted)
	owner, _ := memSpammers{env.store}.Exists(context.Background(), env.owner.ID)
	assert.True(t, owner)
}

func TestAdminSettings(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPut, "/admin/system_settings", 0, map[string]interface{}{
		"recaptchaScoreThreshold": 1.5,
		"readonlyModeEnabled":     true,
	}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"recaptchaScoreThreshold":"1.5"`)

	w = env.do(http.MethodPut, "/admin/system_settings", 0, map[string]interface{}{
		"recaptchaScoreThreshold": "0.7",
		"readonlyModeEnabled":     true,
		"readonlyModeExpiresAt":   "next week",
	}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(http.MethodPut, "/admin/system_settings", 0, map[string]interface{}{
		"recaptchaScoreThreshold": 0.7,
		"readonlyModeEnabled":     true,
	}, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"recaptchaScoreThreshold":"0.7"`)
	assert.Contains(t, w.Body.String(), `"readonlyModeEnabled":true`)

	enabled, err := env.settings.ReadonlyEnabled(context.Background())
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/health", 0, nil, true)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.True(t, strings.HasPrefix(w.Header().Get(RequestIDHeader), "req_"))
}
