/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-12 11:15:48
 * @FilePath: \iqupdate\backend\internal\service\release\service.go
 * @LastEditTime: 2025-10-20 16:12:09
 */
package release

import (
	"context"
	"errors"
	"fmt"
	"time"

	"iqupdate/backend/internal/domain/servicepack"
	domainuser "iqupdate/backend/internal/domain/user"
	appLogger "iqupdate/backend/internal/infra/logger"
	"iqupdate/backend/internal/service/access"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("service pack not found")
	ErrDetailNotFound = errors.New("service pack detail not found")
	ErrDuplicate      = errors.New("service pack with the same description or version number already exists")
)

// Gateway 是补丁包维护所需的持久化能力，由 repository.ServicePackRepository 实现。
type Gateway interface {
	ListAll(ctx context.Context) ([]servicepack.ServicePack, error)
	FindByID(ctx context.Context, id uint) (*servicepack.ServicePack, error)
	CreateWithDetails(ctx context.Context, pack *servicepack.ServicePack, details []servicepack.Detail) error
	UpdateWithDetails(ctx context.Context, pack *servicepack.ServicePack, details []servicepack.Detail, replaceDetails bool) error
	DeleteWithDetails(ctx context.Context, id uint) error
	DeleteDetail(ctx context.Context, packID, detailID uint) error
}

// Service 负责补丁包及其多语言说明的增删改。
type Service struct {
	packs  Gateway
	allow  access.Policy
	logger *zap.SugaredLogger
}

// NewService 构造维护服务；policy 为空时使用 RequireRole(releaseuser)。
func NewService(packs Gateway, policy access.Policy) *Service {
	if policy == nil {
		policy = access.RequireRole(domainuser.RoleReleaseUser)
	}
	return &Service{
		packs:  packs,
		allow:  policy,
		logger: appLogger.S().With("component", "release.service"),
	}
}

// DetailInput 描述一条内联编辑的说明；ID 为 0 表示新增。
type DetailInput struct {
	ID       uint
	Language string
	Contents string
}

// Input 是新增/编辑补丁包时允许填写的字段，不包含版本号。
// Details 仅在 ReplaceDetails 为 true 时参与更新；新增时总是使用 Details。
type Input struct {
	Description    string
	ReleaseDate    string // yyyy-MM-dd
	Details        []DetailInput
	ReplaceDetails bool
}

// DetailView 为返回给后台的说明。
type DetailView struct {
	ID       uint                 `json:"id"`
	Language servicepack.Language `json:"language"`
	Contents string               `json:"contents"`
}

// Pack 为返回给后台的补丁包。
type Pack struct {
	ID            uint         `json:"id"`
	Description   string       `json:"description"`
	VersionNumber int          `json:"version_number"`
	ReleaseDate   string       `json:"release_date"`
	Details       []DetailView `json:"details"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// List 按发布日期倒序返回全部补丁包。
func (s *Service) List(ctx context.Context, actor access.Actor) ([]Pack, error) {
	if err := s.allow(actor); err != nil {
		return nil, err
	}
	packs, err := s.packs.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list service packs: %w", err)
	}
	result := make([]Pack, 0, len(packs))
	for i := range packs {
		result = append(result, toPack(&packs[i]))
	}
	return result, nil
}

// Get 返回单个补丁包。
func (s *Service) Get(ctx context.Context, actor access.Actor, id uint) (Pack, error) {
	if err := s.allow(actor); err != nil {
		return Pack{}, err
	}
	pack, err := s.load(ctx, id)
	if err != nil {
		return Pack{}, err
	}
	return toPack(pack), nil
}

// Create 校验输入、从描述推导版本号，并在一个事务内写入补丁包与说明。
func (s *Service) Create(ctx context.Context, actor access.Actor, input Input) (Pack, error) {
	if err := s.allow(actor); err != nil {
		return Pack{}, err
	}
	pack, details, err := prepare(input)
	if err != nil {
		return Pack{}, err
	}
	for _, d := range details {
		if d.ID != 0 {
			return Pack{}, invalid("details", "new service packs cannot reference existing detail ids")
		}
	}

	if err := s.packs.CreateWithDetails(ctx, &pack, details); err != nil {
		return Pack{}, s.translateWriteError("create", err)
	}
	s.logger.Infow("service pack created", "id", pack.ID, "version", pack.VersionNumber, "details", len(details))
	return s.Get(ctx, actor, pack.ID)
}

// Update 重新推导版本号并保存。ReplaceDetails 为 true 时 Details 是最终的说明列表。
func (s *Service) Update(ctx context.Context, actor access.Actor, id uint, input Input) (Pack, error) {
	if err := s.allow(actor); err != nil {
		return Pack{}, err
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return Pack{}, err
	}

	prepared, details, err := prepare(input)
	if err != nil {
		return Pack{}, err
	}

	if input.ReplaceDetails {
		owned := make(map[uint]struct{}, len(current.Details))
		for _, d := range current.Details {
			owned[d.ID] = struct{}{}
		}
		for i, d := range details {
			if d.ID == 0 {
				continue
			}
			if _, ok := owned[d.ID]; !ok {
				return Pack{}, invalid(fmt.Sprintf("details[%d].id", i), "detail %d does not belong to service pack %d", d.ID, id)
			}
		}
	}

	current.Description = prepared.Description
	current.VersionNumber = prepared.VersionNumber
	current.ReleaseDate = prepared.ReleaseDate
	current.Details = nil

	if err := s.packs.UpdateWithDetails(ctx, current, details, input.ReplaceDetails); err != nil {
		return Pack{}, s.translateWriteError("update", err)
	}
	s.logger.Infow("service pack updated", "id", id, "version", current.VersionNumber, "replace_details", input.ReplaceDetails)
	return s.Get(ctx, actor, id)
}

// Delete 删除补丁包及其全部说明。
func (s *Service) Delete(ctx context.Context, actor access.Actor, id uint) error {
	if err := s.allow(actor); err != nil {
		return err
	}
	if err := s.packs.DeleteWithDetails(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete service pack: %w", err)
	}
	s.logger.Infow("service pack deleted", "id", id)
	return nil
}

// DeleteDetail 单独删除某条说明。
func (s *Service) DeleteDetail(ctx context.Context, actor access.Actor, packID, detailID uint) error {
	if err := s.allow(actor); err != nil {
		return err
	}
	if err := s.packs.DeleteDetail(ctx, packID, detailID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDetailNotFound
		}
		return fmt.Errorf("delete detail: %w", err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, id uint) (*servicepack.ServicePack, error) {
	pack, err := s.packs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load service pack: %w", err)
	}
	return pack, nil
}

func (s *Service) translateWriteError(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	s.logger.Errorw("service pack write failed", "op", op, "error", err)
	return fmt.Errorf("%s service pack: %w", op, err)
}

func toPack(p *servicepack.ServicePack) Pack {
	details := make([]DetailView, 0, len(p.Details))
	for _, d := range p.Details {
		details = append(details, DetailView{ID: d.ID, Language: d.Language, Contents: d.Contents})
	}
	return Pack{
		ID:            p.ID,
		Description:   p.Description,
		VersionNumber: p.VersionNumber,
		ReleaseDate:   p.Date().Format(time.DateOnly),
		Details:       details,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
