/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-20 10:21:36
 * @FilePath: \iqupdate\backend\internal\infra\locale\locale.go
 * @LastEditTime: 2025-10-20 10:21:36
 */
package locale

import (
	"iqupdate/backend/internal/domain/servicepack"

	"golang.org/x/text/language"
)

// contentOffered 是内容协商时对外声明支持的语言集合，首项兼作无匹配时的默认值。
// 数据库中实际只存 de/en 两种说明，其余语言最终都会折叠为 en。
var contentOffered = []language.Tag{
	language.English,
	language.Chinese,
	language.German,
	language.French,
}

var contentMatcher = language.NewMatcher(contentOffered)

// ResolveContentLanguage 决定读取哪种语言的更新说明。
//
// explicit/present 对应查询参数 language：只要参数出现（哪怕为空串）就直接使用其值，
// 否则根据 Accept-Language 在 en/zh/de/fr 中协商。候选值恰好是 "de" 时返回 de，
// 其它任何值都返回 en。
func ResolveContentLanguage(explicit string, present bool, acceptLanguage string) servicepack.Language {
	candidate := explicit
	if !present {
		candidate = negotiate(contentMatcher, contentOffered, acceptLanguage).String()
	}
	if candidate == string(servicepack.LanguageDE) {
		return servicepack.LanguageDE
	}
	return servicepack.LanguageEN
}

// negotiate 返回 offered 中与 Accept-Language 最匹配的条目，无法解析或无匹配时返回 offered[0]。
func negotiate(matcher language.Matcher, offered []language.Tag, acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return offered[0]
	}
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return offered[0]
	}
	return offered[idx]
}
