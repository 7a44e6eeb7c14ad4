/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-12 11:02:00
 * @FilePath: \iqupdate\backend\internal\domain\servicepack\entity.go
 * @LastEditTime: 2025-10-20 09:41:12
 */
package servicepack

import (
	"time"

	"gorm.io/datatypes"
)

// Language 表示更新说明支持的语言枚举。
type Language string

const (
	LanguageDE Language = "de"
	LanguageEN Language = "en"
)

// Valid 判断语言是否在允许的枚举范围内。
func (l Language) Valid() bool {
	return l == LanguageDE || l == LanguageEN
}

// ServicePack 对应一次发布的补丁包记录。
type ServicePack struct {
	ID            uint           `gorm:"primaryKey" json:"id"`                            // 主键 ID
	Description   string         `gorm:"size:20;not null;uniqueIndex" json:"description"` // 人工填写的版本描述，例如 "Version 7.0 0170"
	VersionNumber int            `gorm:"not null;uniqueIndex" json:"version_number"`      // 由 Description 末尾数字推导，禁止直接写入
	ReleaseDate   datatypes.Date `gorm:"index" json:"release_date"`                       // 发布日期（仅日期语义）
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`

	// Details 为本地化更新说明，删除补丁包时一并删除。
	Details []Detail `gorm:"foreignKey:ServicePackID;constraint:OnDelete:CASCADE" json:"details,omitempty"`
}

// TableName 指定数据库表名。
func (ServicePack) TableName() string {
	return "service_packs"
}

// Detail 是某个补丁包在单一语言下的更新说明。
type Detail struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ServicePackID uint      `gorm:"not null;index" json:"service_pack_id"` // 所属补丁包
	Language      Language  `gorm:"size:2;not null" json:"language"`       // de / en
	Contents      string    `gorm:"type:text;not null" json:"contents"`    // 原样透传的 HTML 内容，不做清洗
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName 指定数据库表名。
func (Detail) TableName() string {
	return "service_pack_details"
}

// DetailFor 返回第一条匹配语言的说明，没有时返回 nil。
func (p *ServicePack) DetailFor(lang Language) *Detail {
	for i := range p.Details {
		if p.Details[i].Language == lang {
			return &p.Details[i]
		}
	}
	return nil
}

// Date 返回发布日期的 time.Time 形式。
func (p *ServicePack) Date() time.Time {
	return time.Time(p.ReleaseDate)
}
