package release

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"iqupdate/backend/internal/domain/servicepack"

	"gorm.io/datatypes"
)

// MaxDescriptionLength 与 service_packs.description 的列宽一致。
const MaxDescriptionLength = 20

// ValidationError 指出具体出错的字段，handler 会把 Field 放进 details.field 返回给调用方。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// DeriveVersionNumber 取描述中最后一个空白分隔的片段并解析为整数，例如 "Version 7.0 0170" -> 170。
func DeriveVersionNumber(description string) (int, error) {
	fields := strings.Fields(description)
	if len(fields) == 0 {
		return 0, invalid("description", "description is required")
	}
	last := fields[len(fields)-1]
	value, err := strconv.Atoi(last)
	if err != nil {
		return 0, invalid("description", "last token %q of the description must be a build number", last)
	}
	return value, nil
}

// prepare 在写库前校验输入并推导版本号。客户端提交的版本号不会被读取。
func prepare(input Input) (servicepack.ServicePack, []servicepack.Detail, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return servicepack.ServicePack{}, nil, invalid("description", "description is required")
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return servicepack.ServicePack{}, nil, invalid("description", "description must be at most %d characters", MaxDescriptionLength)
	}

	version, err := DeriveVersionNumber(description)
	if err != nil {
		return servicepack.ServicePack{}, nil, err
	}

	releaseDate, err := parseDate(input.ReleaseDate)
	if err != nil {
		return servicepack.ServicePack{}, nil, err
	}

	details := make([]servicepack.Detail, 0, len(input.Details))
	for i, item := range input.Details {
		lang := servicepack.Language(strings.ToLower(strings.TrimSpace(item.Language)))
		if !lang.Valid() {
			return servicepack.ServicePack{}, nil, invalid(fmt.Sprintf("details[%d].language", i), "language must be one of de, en")
		}
		if strings.TrimSpace(item.Contents) == "" {
			return servicepack.ServicePack{}, nil, invalid(fmt.Sprintf("details[%d].contents", i), "contents is required")
		}
		details = append(details, servicepack.Detail{
			ID:       item.ID,
			Language: lang,
			Contents: item.Contents,
		})
	}

	pack := servicepack.ServicePack{
		Description:   description,
		VersionNumber: version,
		ReleaseDate:   releaseDate,
	}
	return pack, details, nil
}

func parseDate(raw string) (datatypes.Date, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return datatypes.Date{}, invalid("release_date", "release_date is required")
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			y, m, d := t.Date()
			return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)), nil
		}
	}
	return datatypes.Date{}, invalid("release_date", "invalid release_date format: %s", raw)
}
