package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/moderation"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/fabble/moderation/internal/pkg/validator"
	"github.com/gin-gonic/gin"
)

// reCAPTCHA action 名称
const (
	ActionCreateProject        = "project"
	ActionCreateProjectComment = "project_comment"
	ActionCreateCardComment    = "card_comment"
)

var cardPaths = map[model.CardType]string{
	model.CardTypeState: "states",
	model.CardTypeNote:  "notes",
	model.CardTypeUsage: "usages",
}

type projectInput struct {
	Name        string `form:"name" json:"name" validate:"required,max=255"`
	Title       string `form:"title" json:"title" validate:"notblank,max=255"`
	Description string `form:"description" json:"description"`
	IsPrivate   bool   `form:"is_private" json:"isPrivate"`
}

func (in projectInput) echo() map[string]interface{} {
	return map[string]interface{}{"name": in.Name, "title": in.Title, "description": in.Description}
}

type commentInput struct {
	Body string `form:"body" json:"body" validate:"notblank,max=300"`
}

type cardInput struct {
	Title       string `form:"title" json:"title" validate:"max=255"`
	Description string `form:"description" json:"description"`
}

func (in cardInput) echo() map[string]interface{} {
	return map[string]interface{}{"title": in.Title, "description": in.Description}
}

// requireUser 要求已登录
func requireUser(c *gin.Context) (moderation.Actor, bool) {
	actor := actorFrom(c)
	if actor.UserID == nil {
		abortWithError(c, errors.NewAuthenticationError("Login required", errors.CodeUnauthorized))
		return actor, false
	}
	return actor, true
}

// bindInput 绑定表单或 JSON 输入
func bindInput(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBind(dest); err != nil {
		abortWithError(c, errors.NewInvalidRequest("Invalid request body").WithError(err))
		return false
	}
	return true
}

// validateInput 审核通过后再做字段校验，使关键词拒绝优先于字段错误
func (h *Handler) validateInput(c *gin.Context, in interface{}, echo map[string]interface{}) bool {
	err := validator.Validate(in)
	if err == nil {
		return true
	}

	fields := validator.ValidationErrors(err)
	messages := make([]string, 0, len(fields))
	for _, msg := range fields {
		messages = append(messages, msg)
	}
	message := strings.Join(messages, ", ")

	if wantsJSON(c) {
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		abortWithError(c, errors.NewValidationError(message, errors.CodeInvalidFormat).WithDetails(details))
		return false
	}
	h.rejectPolicy(c, http.StatusUnprocessableEntity, message, errors.CodeInvalidFormat, echo)
	return false
}

// projectPath 项目页面路径
func projectPath(owner model.Owner, project *model.Project) string {
	return owner.Path() + "/" + project.Name
}

// isMember 用户是否属于所有者
func isMember(owner model.Owner, userID int64) bool {
	for _, u := range owner.Members() {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// CreateProject 创建项目
func (h *Handler) CreateProject(c *gin.Context) {
	actor, ok := requireUser(c)
	if !ok {
		return
	}

	var in projectInput
	if !bindInput(c, &in) {
		return
	}
	in.Name = strings.TrimSpace(in.Name)

	if !h.screen(c, screening{
		ContentType:     "Project",
		SilentReject:    true,
		RecaptchaAction: ActionCreateProject,
		Contents:        []string{in.Title, in.Description},
		Input:           in.echo(),
	}) {
		return
	}
	if !h.validateInput(c, in, in.echo()) {
		return
	}

	ctx := c.Request.Context()
	owner, err := h.deps.Users.GetOwner(ctx, model.OwnerTypeUser, *actor.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	project := &model.Project{
		OwnerType:   model.OwnerTypeUser,
		OwnerID:     *actor.UserID,
		Name:        in.Name,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		IsPrivate:   in.IsPrivate,
	}
	if err := h.deps.Projects.Create(ctx, project); err != nil {
		abortWithError(c, err)
		return
	}

	respondCreated(c, projectPath(owner, project), project)
}

// UpdateProject 更新项目，仅所有者成员可操作
func (h *Handler) UpdateProject(c *gin.Context) {
	actor, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	project, err := h.deps.Projects.GetByID(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	owner, err := h.deps.Users.GetOwner(ctx, project.OwnerType, project.OwnerID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !isMember(owner, *actor.UserID) {
		abortWithError(c, errors.NewPermissionDenied("You can not edit this project", errors.CodePermissionDenied))
		return
	}

	in := projectInput{Name: project.Name, Title: project.Title, Description: project.Description, IsPrivate: project.IsPrivate}
	if !bindInput(c, &in) {
		return
	}

	if !h.screen(c, screening{
		ContentType:  "Project",
		SilentReject: true,
		Contents:     []string{in.Title, in.Description},
		Input:        in.echo(),
	}) {
		return
	}
	if !h.validateInput(c, in, in.echo()) {
		return
	}

	project.Title = strings.TrimSpace(in.Title)
	project.Description = in.Description
	project.IsPrivate = in.IsPrivate
	if err := h.deps.Projects.Update(ctx, project); err != nil {
		abortWithError(c, err)
		return
	}

	respondUpdated(c, projectPath(owner, project), project)
}

// CreateProjectComment 创建项目评论
func (h *Handler) CreateProjectComment(c *gin.Context) {
	actor, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	project, err := h.deps.Projects.GetByID(ctx, projectID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var in commentInput
	if !bindInput(c, &in) {
		return
	}
	echo := map[string]interface{}{"body": in.Body}

	if !h.screen(c, screening{
		ContentType:     model.CommentKindProject.ContentType(),
		RecaptchaAction: ActionCreateProjectComment,
		Contents:        []string{in.Body},
		Input:           echo,
	}) {
		return
	}
	if !h.validateInput(c, in, echo) {
		return
	}

	comment := &model.ProjectComment{ProjectID: project.ID, UserID: *actor.UserID, Body: in.Body}
	path, err := h.createComment(c, h.deps.ProjComments.Moderator, comment, project, *actor.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	respondCreated(c, fmt.Sprintf("%s#project-comment-%d", path, comment.ID), comment)
}

// CreateCardComment 创建卡片评论
func (h *Handler) CreateCardComment(c *gin.Context) {
	actor, ok := requireUser(c)
	if !ok {
		return
	}
	cardID, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	card, err := h.deps.Cards.GetByID(ctx, cardID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	project, err := h.deps.Projects.GetByID(ctx, card.ProjectID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var in commentInput
	if !bindInput(c, &in) {
		return
	}
	echo := map[string]interface{}{"body": in.Body}

	if !h.screen(c, screening{
		ContentType:     model.CommentKindCard.ContentType(),
		RecaptchaAction: ActionCreateCardComment,
		Contents:        []string{in.Body},
		Input:           echo,
	}) {
		return
	}
	if !h.validateInput(c, in, echo) {
		return
	}

	comment := &model.CardComment{CardID: card.ID, UserID: *actor.UserID, Body: in.Body}
	path, err := h.createComment(c, h.deps.CardComments.Moderator, comment, project, *actor.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	respondCreated(c, fmt.Sprintf("%s#card-comment-%d", path, comment.ID), comment)
}

// createComment 保存评论并通知项目所有者成员，返回项目路径
func (h *Handler) createComment(c *gin.Context, moderator *moderation.CommentModerator, comment model.ModeratedComment, project *model.Project, authorID int64) (string, error) {
	ctx := c.Request.Context()

	author, err := h.deps.Users.GetByID(ctx, authorID)
	if err != nil {
		return "", err
	}
	owner, err := h.deps.Users.GetOwner(ctx, project.OwnerType, project.OwnerID)
	if err != nil {
		return "", err
	}

	path := projectPath(owner, project)
	notice := &moderation.Notice{
		Path: path,
		Body: fmt.Sprintf("%s commented on %s.", author.Name, project.Title),
	}
	for _, u := range owner.Members() {
		notice.RecipientIDs = append(notice.RecipientIDs, u.ID)
	}

	if err := moderator.Create(ctx, comment, notice); err != nil {
		return "", err
	}
	return path, nil
}

// CreateCard 创建状态卡、笔记卡或用法卡
func (h *Handler) CreateCard(cardType model.CardType) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireUser(c); !ok {
			return
		}
		projectID, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx := c.Request.Context()
		project, err := h.deps.Projects.GetByID(ctx, projectID)
		if err != nil {
			abortWithError(c, err)
			return
		}

		var in cardInput
		if !bindInput(c, &in) {
			return
		}

		if !h.screen(c, screening{
			ContentType:  cardType.ContentType(),
			SilentReject: true,
			Contents:     []string{in.Title, in.Description},
			Input:        in.echo(),
		}) {
			return
		}
		if !h.validateInput(c, in, in.echo()) {
			return
		}

		card := &model.Card{
			ProjectID:   project.ID,
			CardType:    cardType,
			Title:       in.Title,
			Description: in.Description,
		}
		if err := h.deps.Cards.Create(ctx, card); err != nil {
			abortWithError(c, err)
			return
		}

		respondCreated(c, h.cardLocation(c, project, card), card)
	}
}

// UpdateCard 更新卡片
func (h *Handler) UpdateCard(cardType model.CardType) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireUser(c); !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx := c.Request.Context()
		card, err := h.deps.Cards.GetByID(ctx, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if card.CardType != cardType {
			abortWithError(c, errors.NewNotFoundError("Card"))
			return
		}
		project, err := h.deps.Projects.GetByID(ctx, card.ProjectID)
		if err != nil {
			abortWithError(c, err)
			return
		}

		in := cardInput{Title: card.Title, Description: card.Description}
		if !bindInput(c, &in) {
			return
		}

		if !h.screen(c, screening{
			ContentType:  cardType.ContentType(),
			SilentReject: true,
			Contents:     []string{in.Title, in.Description},
			Input:        in.echo(),
		}) {
			return
		}
		if !h.validateInput(c, in, in.echo()) {
			return
		}

		card.Title = in.Title
		card.Description = in.Description
		if err := h.deps.Cards.Update(ctx, card); err != nil {
			abortWithError(c, err)
			return
		}

		respondUpdated(c, h.cardLocation(c, project, card), card)
	}
}

func (h *Handler) cardLocation(c *gin.Context, project *model.Project, card *model.Card) string {
	owner, err := h.deps.Users.GetOwner(c.Request.Context(), project.OwnerType, project.OwnerID)
	if err != nil {
		return h.opts.FallbackPath
	}
	return fmt.Sprintf("%s#%s-%d", projectPath(owner, project), card.CardType, card.ID)
}
