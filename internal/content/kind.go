// Package content instantiates the moderation workflow for the site's three
// content kinds and exposes them behind a single Dispatcher.
package content

import (
	"strings"
	"unicode/utf8"

	"github.com/fansite/contentflow/internal/workflow"
)

// Kind names a content kind. The value is used in URLs, store prefixes and
// metric labels.
type Kind string

const (
	KindArticle    Kind = "article"
	KindVideo      Kind = "video"
	KindPhotoGroup Kind = "gallery"
)

// Kinds lists every content kind in display order.
var Kinds = []Kind{KindArticle, KindVideo, KindPhotoGroup}

// ParseKind accepts the singular and plural spellings used by clients.
func ParseKind(v string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "article", "articles":
		return KindArticle, nil
	case "video", "videos":
		return KindVideo, nil
	case "gallery", "galleries", "photo-group", "photo-groups", "photogroup":
		return KindPhotoGroup, nil
	}
	return "", workflow.NotFoundf("unknown content kind %q", v)
}

func (k Kind) String() string { return string(k) }

// strict reports whether action must leave the payload publishable.
// Draft saves and withdrawals only enforce size limits.
func strict(action workflow.Action) bool {
	switch action {
	case workflow.ActionSubmit, workflow.ActionResubmit, workflow.ActionUpdate:
		return true
	}
	return false
}

// authoring reports whether the action is the owner writing content, as
// opposed to a reviewer editing or deciding on it.
func authoring(action workflow.Action) bool {
	switch action {
	case workflow.ActionSaveDraft, workflow.ActionSubmit, workflow.ActionWithdrawToDraft, workflow.ActionResubmit:
		return true
	}
	return false
}

func maxRunes(field, v string, n int) error {
	if utf8.RuneCountInString(v) > n {
		return workflow.Validationf("%s must be at most %d characters", field, n)
	}
	return nil
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return workflow.Validationf("%s is required", field)
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// firstErr returns the first non-nil error.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func trimTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
