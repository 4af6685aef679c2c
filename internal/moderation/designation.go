package moderation

import (
	"context"

	"github.com/fabble/moderation/internal/i18n"
	"github.com/fabble/moderation/internal/metrics"
	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/logger"
	"github.com/fabble/moderation/internal/repository"
)

// OwnerResolver 解析项目所有者
type OwnerResolver interface {
	GetOwner(ctx context.Context, ownerType model.OwnerType, ownerID int64) (model.Owner, error)
}

// ProjectDestroyer 项目软删除
type ProjectDestroyer interface {
	SoftDestroy(ctx context.Context, project *model.Project) error
}

// DesignationResult 垃圾认定结果
type DesignationResult struct {
	SuccessCount   int              `json:"successCount"`
	FailedProjects []*model.Project `json:"-"`
	Errors         map[int64]string `json:"errors"`
}

// FailedIDs 失败项目的 ID
func (r *DesignationResult) FailedIDs() []int64 {
	ids := make([]int64, 0, len(r.FailedProjects))
	for _, p := range r.FailedProjects {
		ids = append(ids, p.ID)
	}
	return ids
}

// SpamDesignationService 将项目所有者认定为垃圾用户并软删除项目
type SpamDesignationService struct {
	owners     OwnerResolver
	projects   ProjectDestroyer
	spammers   *SpammerRegistry
	tx         repository.Transactor
	translator *i18n.Translator
}

// NewSpamDesignationService 创建垃圾认定服务
func NewSpamDesignationService(owners OwnerResolver, projects ProjectDestroyer, spammers *SpammerRegistry, tx repository.Transactor, translator *i18n.Translator) *SpamDesignationService {
	return &SpamDesignationService{
		owners:     owners,
		projects:   projects,
		spammers:   spammers,
		tx:         tx,
		translator: translator,
	}
}

// Call 逐个处理项目，每个项目一个事务
// 单个项目失败时回滚该项目并记录通用错误消息，继续处理后续项目
func (s *SpamDesignationService) Call(ctx context.Context, projects []*model.Project) *DesignationResult {
	result := &DesignationResult{Errors: make(map[int64]string)}

	for _, project := range projects {
		if err := s.designate(ctx, project); err != nil {
			logger.Error().Err(err).
				Int64("project_id", project.ID).
				Msg("[SpamDesignation] Failed to designate project")
			metrics.DesignationsTotal.WithLabelValues("failed").Inc()

			result.FailedProjects = append(result.FailedProjects, project)
			result.Errors[project.ID] = s.translator.T(i18n.MsgSpamDesignationFailed, nil)
			continue
		}

		metrics.DesignationsTotal.WithLabelValues("success").Inc()
		result.SuccessCount++
	}

	logger.Info().
		Int("success", result.SuccessCount).
		Int("failed", len(result.FailedProjects)).
		Msg("[SpamDesignation] Finished")
	return result
}

func (s *SpamDesignationService) designate(ctx context.Context, project *model.Project) error {
	snapshot := *project

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		owner, err := s.owners.GetOwner(ctx, project.OwnerType, project.OwnerID)
		if err != nil {
			return err
		}

		for _, member := range owner.Members() {
			if err := s.spammers.MarkSpammer(ctx, member.ID); err != nil {
				return err
			}
		}
		return s.projects.SoftDestroy(ctx, project)
	})
	if err != nil {
		*project = snapshot
		return err
	}
	return nil
}
