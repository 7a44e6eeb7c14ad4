/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-12 11:10:05
 * @FilePath: \iqupdate\backend\internal\repository\servicepack_repository.go
 * @LastEditTime: 2025-10-20 14:02:37
 */
package repository

import (
	"context"
	"fmt"

	"iqupdate/backend/internal/domain/servicepack"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ServicePackRepository 封装 service_packs 与 service_pack_details 两张表的访问。
type ServicePackRepository struct {
	db *gorm.DB
}

// NewServicePackRepository 构造仓储实例。
func NewServicePackRepository(db *gorm.DB) *ServicePackRepository {
	return &ServicePackRepository{db: db}
}

func orderedDetails(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

// ListNewerThan 返回版本号严格大于 baseline 的补丁包，按发布日期升序。
func (r *ServicePackRepository) ListNewerThan(ctx context.Context, baseline int) ([]servicepack.ServicePack, error) {
	var packs []servicepack.ServicePack
	err := r.db.WithContext(ctx).
		Where("version_number > ?", baseline).
		Order("release_date ASC, id ASC").
		Find(&packs).Error
	if err != nil {
		return nil, err
	}
	return packs, nil
}

// ExistsNewerThan 判断是否存在版本号大于 baseline 的补丁包。
func (r *ServicePackRepository) ExistsNewerThan(ctx context.Context, baseline int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&servicepack.ServicePack{}).
		Where("version_number > ?", baseline).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByVersion 根据版本号查找补丁包并预加载说明，不存在时返回 gorm.ErrRecordNotFound。
func (r *ServicePackRepository) FindByVersion(ctx context.Context, version int) (*servicepack.ServicePack, error) {
	var pack servicepack.ServicePack
	err := r.db.WithContext(ctx).
		Preload("Details", orderedDetails).
		Where("version_number = ?", version).
		First(&pack).Error
	if err != nil {
		return nil, err
	}
	return &pack, nil
}

// ListAll 供后台列表使用，按发布日期倒序。
func (r *ServicePackRepository) ListAll(ctx context.Context) ([]servicepack.ServicePack, error) {
	var packs []servicepack.ServicePack
	err := r.db.WithContext(ctx).
		Preload("Details", orderedDetails).
		Order("release_date DESC, id DESC").
		Find(&packs).Error
	if err != nil {
		return nil, err
	}
	return packs, nil
}

// FindByID 根据主键查找补丁包并预加载说明。
func (r *ServicePackRepository) FindByID(ctx context.Context, id uint) (*servicepack.ServicePack, error) {
	var pack servicepack.ServicePack
	if err := r.db.WithContext(ctx).Preload("Details", orderedDetails).First(&pack, id).Error; err != nil {
		return nil, err
	}
	return &pack, nil
}

// CreateWithDetails 在同一事务中写入补丁包及其说明。
func (r *ServicePackRepository) CreateWithDetails(ctx context.Context, pack *servicepack.ServicePack, details []servicepack.Detail) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(pack).Error; err != nil {
			return fmt.Errorf("insert service pack: %w", err)
		}
		return insertDetails(tx, pack.ID, details)
	})
}

// UpdateWithDetails 在同一事务中更新补丁包。replaceDetails 为 true 时 details 即为最终列表：
// 未出现的已有说明被删除，带 ID 的说明原地更新，ID 为 0 的说明新增。
func (r *ServicePackRepository) UpdateWithDetails(ctx context.Context, pack *servicepack.ServicePack, details []servicepack.Detail, replaceDetails bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(pack).Error; err != nil {
			return fmt.Errorf("update service pack: %w", err)
		}
		if !replaceDetails {
			return nil
		}

		keep := make([]uint, 0, len(details))
		for _, detail := range details {
			if detail.ID != 0 {
				keep = append(keep, detail.ID)
			}
		}
		prune := tx.Where("service_pack_id = ?", pack.ID)
		if len(keep) > 0 {
			prune = prune.Where("id NOT IN ?", keep)
		}
		if err := prune.Delete(&servicepack.Detail{}).Error; err != nil {
			return fmt.Errorf("prune details: %w", err)
		}

		fresh := make([]servicepack.Detail, 0, len(details))
		for _, detail := range details {
			if detail.ID == 0 {
				fresh = append(fresh, detail)
				continue
			}
			err := tx.Model(&servicepack.Detail{}).
				Where("id = ? AND service_pack_id = ?", detail.ID, pack.ID).
				Updates(map[string]any{
					"language": detail.Language,
					"contents": detail.Contents,
				}).Error
			if err != nil {
				return fmt.Errorf("update detail %d: %w", detail.ID, err)
			}
		}
		return insertDetails(tx, pack.ID, fresh)
	})
}

// DeleteWithDetails 先删除全部说明再删除补丁包，两步在同一事务内完成。
func (r *ServicePackRepository) DeleteWithDetails(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("service_pack_id = ?", id).Delete(&servicepack.Detail{}).Error; err != nil {
			return fmt.Errorf("delete details: %w", err)
		}
		res := tx.Delete(&servicepack.ServicePack{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete service pack: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// DeleteDetail 删除补丁包下的单条说明。
func (r *ServicePackRepository) DeleteDetail(ctx context.Context, packID, detailID uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND service_pack_id = ?", detailID, packID).
		Delete(&servicepack.Detail{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func insertDetails(tx *gorm.DB, packID uint, details []servicepack.Detail) error {
	if len(details) == 0 {
		return nil
	}
	rows := make([]servicepack.Detail, len(details))
	for i, detail := range details {
		rows[i] = servicepack.Detail{
			ServicePackID: packID,
			Language:      detail.Language,
			Contents:      detail.Contents,
		}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("insert details: %w", err)
	}
	return nil
}
