package content

import (
	"strings"
	"unicode/utf8"

	"github.com/fansite/contentflow/internal/workflow"
)

// Article is the payload of a written post.
type Article struct {
	Title             string   `json:"title" bson:"title"`
	Content           string   `json:"content" bson:"content"`
	Excerpt           string   `json:"excerpt,omitempty" bson:"excerpt,omitempty"`
	Author            string   `json:"author,omitempty" bson:"author,omitempty"`
	CategoryPrimary   string   `json:"categoryPrimary,omitempty" bson:"categoryPrimary,omitempty"`
	CategorySecondary string   `json:"categorySecondary,omitempty" bson:"categorySecondary,omitempty"`
	Tags              []string `json:"tags,omitempty" bson:"tags,omitempty"`
	CoverURL          string   `json:"coverUrl,omitempty" bson:"coverUrl,omitempty"`
	MetaDescription   string   `json:"metaDescription,omitempty" bson:"metaDescription,omitempty"`
	MetaKeywords      string   `json:"metaKeywords,omitempty" bson:"metaKeywords,omitempty"`
}

const excerptRunes = 150

// ArticleCategories maps each primary category to its secondary categories.
var ArticleCategories = map[string][]string{
	"峰言峰语": {"汪峰博客", "汪峰语录", "访谈记录"},
	"峰迷聊峰": {"闲聊汪峰", "歌曲赏析"},
	"数据科普": {"汪峰数据", "辟谣考证", "媒体报道", "逸闻趣事"},
}

// PublishableCategories returns the primary categories role may publish under.
func PublishableCategories(role workflow.Role) []string {
	switch role {
	case workflow.RoleSuperAdmin:
		return []string{"峰言峰语", "峰迷聊峰", "数据科普"}
	case workflow.RoleAdmin:
		return []string{"峰言峰语", "数据科普"}
	case workflow.RoleUser:
		return []string{"峰迷聊峰"}
	}
	return nil
}

// ArticleValidator checks article payloads and fills in the excerpt.
var ArticleValidator = workflow.ValidatorFunc[Article](validateArticle)

func validateArticle(action workflow.Action, actor workflow.Actor, a *Article) error {
	a.Title = strings.TrimSpace(a.Title)
	a.Tags = trimTags(a.Tags)
	if err := firstErr(
		maxRunes("title", a.Title, 200),
		maxRunes("author", a.Author, 100),
		maxRunes("coverUrl", a.CoverURL, 500),
		maxRunes("metaDescription", a.MetaDescription, 160),
		maxRunes("metaKeywords", a.MetaKeywords, 255),
	); err != nil {
		return err
	}
	if a.Excerpt == "" && a.Content != "" {
		a.Excerpt = excerpt(a.Content, excerptRunes)
	}

	if a.CategoryPrimary != "" {
		secondary, ok := ArticleCategories[a.CategoryPrimary]
		if !ok {
			return workflow.Validationf("unknown article category %q", a.CategoryPrimary)
		}
		if a.CategorySecondary != "" && !oneOf(a.CategorySecondary, secondary) {
			return workflow.Validationf("category %q has no subcategory %q", a.CategoryPrimary, a.CategorySecondary)
		}
		// only the author's own writes are bound by their role's categories
		if authoring(action) && !oneOf(a.CategoryPrimary, PublishableCategories(actor.Role)) {
			return workflow.Forbiddenf("%s may not publish in category %q", actor.Role, a.CategoryPrimary)
		}
	}

	if !strict(action) {
		return nil
	}
	return firstErr(
		required("title", a.Title),
		required("content", a.Content),
	)
}

// excerpt returns the first n runes of s with whitespace collapsed.
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
