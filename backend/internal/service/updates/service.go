/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-20 15:05:44
 * @FilePath: \iqupdate\backend\internal\service\updates\service.go
 * @LastEditTime: 2025-10-20 15:05:44
 */
package updates

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"iqupdate/backend/internal/domain/servicepack"
	"iqupdate/backend/internal/infra/locale"

	"gorm.io/gorm"
)

// ErrInvalidVersion 表示路径中的版本号不是整数。
var ErrInvalidVersion = errors.New("version number must be an integer")

const (
	ModeHasUpdates = "has_updates"
	ModeList       = "list"
)

// Gateway 是更新查询所需的只读持久化能力。
type Gateway interface {
	ListNewerThan(ctx context.Context, baseline int) ([]servicepack.ServicePack, error)
	ExistsNewerThan(ctx context.Context, baseline int) (bool, error)
	FindByVersion(ctx context.Context, version int) (*servicepack.ServicePack, error)
}

// BackLinker 生成追加在说明正文后的本地化返回链接。
type BackLinker interface {
	BackLink(acceptLanguage, target string) string
}

// Service 负责客户端轮询的两个只读查询：是否有新版本、读取某版本的更新说明。
type Service struct {
	packs       Gateway
	links       BackLinker
	defaultBack string
}

// NewService 构造查询服务，defaultBack 为没有 Referer 时返回链接的目标。
func NewService(packs Gateway, links BackLinker, defaultBack string) *Service {
	return &Service{packs: packs, links: links, defaultBack: defaultBack}
}

// Query 对应 /updates 的两个可选查询参数，原样保留字符串。
type Query struct {
	HasUpdatesFor string
	GreaterThan   string
}

// Summary 是列表中单个补丁包的展示信息。
type Summary struct {
	ID            uint   `json:"id"`
	Description   string `json:"description"`
	VersionNumber int    `json:"version_number"`
	ReleaseDate   string `json:"release_date"`
}

// CheckResult 为 /updates 的查询结果。
// Mode 为 ModeHasUpdates 时只有 HasUpdates 有意义；否则返回列表与最新版本号（列表为空时 Newest 为 nil）。
type CheckResult struct {
	Mode       string    `json:"mode"`
	Baseline   int       `json:"baseline"`
	HasUpdates bool      `json:"has_updates"`
	Packs      []Summary `json:"service_packs"`
	Newest     *int      `json:"newest_version_number"`
}

// Check 返回版本号严格大于基线的补丁包。
// hasUpdatesFor 非空时优先生效并只回答是否存在；否则使用 greaterThan。无法解析的基线按 0 处理。
func (s *Service) Check(ctx context.Context, q Query) (CheckResult, error) {
	if raw := strings.TrimSpace(q.HasUpdatesFor); raw != "" {
		baseline := ParseBaseline(raw)
		exists, err := s.packs.ExistsNewerThan(ctx, baseline)
		if err != nil {
			return CheckResult{}, fmt.Errorf("check updates: %w", err)
		}
		return CheckResult{Mode: ModeHasUpdates, Baseline: baseline, HasUpdates: exists}, nil
	}

	baseline := ParseBaseline(q.GreaterThan)
	packs, err := s.packs.ListNewerThan(ctx, baseline)
	if err != nil {
		return CheckResult{}, fmt.Errorf("list updates: %w", err)
	}

	result := CheckResult{
		Mode:       ModeList,
		Baseline:   baseline,
		HasUpdates: len(packs) > 0,
		Packs:      make([]Summary, 0, len(packs)),
	}
	for i := range packs {
		result.Packs = append(result.Packs, toSummary(&packs[i]))
		if result.Newest == nil || packs[i].VersionNumber > *result.Newest {
			newest := packs[i].VersionNumber
			result.Newest = &newest
		}
	}
	return result, nil
}

// NotesQuery 描述读取更新说明的输入。
type NotesQuery struct {
	Version         int
	Language        string
	LanguagePresent bool
	AcceptLanguage  string
	Referer         string
}

// Notes 为更新说明的查询结果。Body = Contents + BackLink。
type Notes struct {
	Version  int                  `json:"version_number"`
	Language servicepack.Language `json:"language"`
	Found    bool                 `json:"found"`
	Contents string               `json:"contents"`
	BackURL  string               `json:"back_url"`
	BackLink string               `json:"back_link"`
	Body     string               `json:"-"`
}

// Notes 返回指定版本在解析后语言下的说明。补丁包或对应语言缺失时正文为空，不视为错误。
func (s *Service) Notes(ctx context.Context, q NotesQuery) (Notes, error) {
	lang := locale.ResolveContentLanguage(q.Language, q.LanguagePresent, q.AcceptLanguage)

	back := strings.TrimSpace(q.Referer)
	if back == "" {
		back = s.defaultBack
	}

	notes := Notes{
		Version:  q.Version,
		Language: lang,
		BackURL:  back,
		BackLink: s.links.BackLink(q.AcceptLanguage, back),
	}

	pack, err := s.packs.FindByVersion(ctx, q.Version)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return Notes{}, fmt.Errorf("find service pack %d: %w", q.Version, err)
	default:
		if detail := pack.DetailFor(lang); detail != nil {
			notes.Found = true
			notes.Contents = detail.Contents
		}
	}

	notes.Body = notes.Contents + notes.BackLink
	return notes, nil
}

// ParseBaseline 把查询参数解析为整数基线，空值或非法值返回 0。
func ParseBaseline(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return value
}

// ParseVersion 解析路径中的版本号，允许前导零（"0161" -> 161）。
func ParseVersion(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, raw)
	}
	return value, nil
}

func toSummary(p *servicepack.ServicePack) Summary {
	return Summary{
		ID:            p.ID,
		Description:   p.Description,
		VersionNumber: p.VersionNumber,
		ReleaseDate:   p.Date().Format(time.DateOnly),
	}
}
