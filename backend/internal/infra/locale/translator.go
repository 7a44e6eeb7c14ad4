package locale

import (
	"fmt"
	"html"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const keyBack = "Back"

// uiOffered 是界面文案支持的语言，默认英文。
var uiOffered = []language.Tag{
	language.English,
	language.German,
	language.French,
	language.Chinese,
}

// Translator 负责界面文案（目前只有“返回”链接）的本地化。
// 与更新说明正文无关，正文始终原样输出。
type Translator struct {
	catalog catalog.Catalog
	matcher language.Matcher
}

// NewTranslator 构建内置文案目录。
func NewTranslator() (*Translator, error) {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	entries := map[language.Tag]string{
		language.English: "Back",
		language.German:  "Zurück",
		language.French:  "Retour",
		language.Chinese: "返回",
	}
	for tag, text := range entries {
		if err := builder.SetString(tag, keyBack, text); err != nil {
			return nil, fmt.Errorf("register %s translation: %w", tag, err)
		}
	}
	return &Translator{catalog: builder, matcher: language.NewMatcher(uiOffered)}, nil
}

// UILanguage 根据 Accept-Language 选择界面语言。
func (t *Translator) UILanguage(acceptLanguage string) language.Tag {
	return negotiate(t.matcher, uiOffered, acceptLanguage)
}

// Back 返回“返回”链接的本地化文字。
func (t *Translator) Back(acceptLanguage string) string {
	printer := message.NewPrinter(t.UILanguage(acceptLanguage), message.Catalog(t.catalog))
	return printer.Sprintf(keyBack)
}

// BackLink 生成追加在更新说明后面的返回链接片段，URL 与文字均做 HTML 转义。
func (t *Translator) BackLink(acceptLanguage, target string) string {
	return fmt.Sprintf(`<p><a href="%s">%s</a></p>`, html.EscapeString(target), html.EscapeString(t.Back(acceptLanguage)))
}
