package content

import (
	"regexp"
	"strings"
	"time"

	"github.com/fansite/contentflow/internal/workflow"
)

// Video is the payload of an embedded bilibili video.
type Video struct {
	Title       string     `json:"title" bson:"title"`
	Description string     `json:"description,omitempty" bson:"description,omitempty"`
	Author      string     `json:"author,omitempty" bson:"author,omitempty"`
	Category    string     `json:"category,omitempty" bson:"category,omitempty"`
	BVID        string     `json:"bvid" bson:"bvid"`
	PublishDate *time.Time `json:"publishDate,omitempty" bson:"publishDate,omitempty"`
	CoverURL    string     `json:"coverUrl,omitempty" bson:"coverUrl,omitempty"`
	Tags        []string   `json:"tags,omitempty" bson:"tags,omitempty"`
}

// VideoCategories are the accepted values of Video.Category.
var VideoCategories = []string{"演出现场", "单曲现场", "综艺节目", "歌曲mv", "访谈节目", "纪录片", "其他"}

var (
	bvidPattern = regexp.MustCompile(`BV[0-9A-Za-z]{10}`)
	bvidExact   = regexp.MustCompile(`^BV[0-9A-Za-z]{10}$`)
)

// ExtractBVID finds a bilibili video id in a bare id or a video URL such as
// https://www.bilibili.com/video/BV1xx411c7mD/?p=2.
func ExtractBVID(s string) (string, bool) {
	id := bvidPattern.FindString(strings.TrimSpace(s))
	return id, id != ""
}

// VideoValidator checks video payloads and normalizes the BV id.
var VideoValidator = workflow.ValidatorFunc[Video](validateVideo)

func validateVideo(action workflow.Action, _ workflow.Actor, v *Video) error {
	v.Title = strings.TrimSpace(v.Title)
	v.Tags = trimTags(v.Tags)
	if id, ok := ExtractBVID(v.BVID); ok {
		v.BVID = id
	}
	if err := firstErr(
		maxRunes("title", v.Title, 200),
		maxRunes("author", v.Author, 100),
		maxRunes("coverUrl", v.CoverURL, 500),
	); err != nil {
		return err
	}
	if v.Category != "" && !oneOf(v.Category, VideoCategories) {
		return workflow.Validationf("unknown video category %q", v.Category)
	}

	if !strict(action) {
		return nil
	}
	if err := required("title", v.Title); err != nil {
		return err
	}
	if !bvidExact.MatchString(v.BVID) {
		return workflow.Validationf("bvid %q is not a valid bilibili video id", v.BVID)
	}
	return nil
}
