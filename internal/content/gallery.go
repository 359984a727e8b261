package content

import (
	"sort"
	"strings"
	"time"

	"github.com/fansite/contentflow/internal/workflow"
)

// Photo is one image of a photo group.
type Photo struct {
	Title       string `json:"title,omitempty" bson:"title,omitempty"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	ImageURL    string `json:"imageUrl" bson:"imageUrl"`
	ThumbURL    string `json:"thumbUrl,omitempty" bson:"thumbUrl,omitempty"`
	MediumURL   string `json:"mediumUrl,omitempty" bson:"mediumUrl,omitempty"`
	Width       int    `json:"width,omitempty" bson:"width,omitempty"`
	Height      int    `json:"height,omitempty" bson:"height,omitempty"`
	SortOrder   int    `json:"sortOrder" bson:"sortOrder"`
}

// PhotoGroup is the payload of a gallery.
type PhotoGroup struct {
	Title         string     `json:"title" bson:"title"`
	Category      string     `json:"category" bson:"category"`
	Date          *time.Time `json:"date,omitempty" bson:"date,omitempty"`
	DisplayDate   string     `json:"displayDate,omitempty" bson:"displayDate,omitempty"`
	Year          string     `json:"year,omitempty" bson:"year,omitempty"`
	Description   string     `json:"description,omitempty" bson:"description,omitempty"`
	CoverImageURL string     `json:"coverImageUrl,omitempty" bson:"coverImageUrl,omitempty"`
	CoverThumbURL string     `json:"coverThumbUrl,omitempty" bson:"coverThumbUrl,omitempty"`
	Photos        []Photo    `json:"photos" bson:"photos"`
	Tags          []string   `json:"tags,omitempty" bson:"tags,omitempty"`
}

// GalleryCategories are the accepted values of PhotoGroup.Category.
var GalleryCategories = []string{"巡演返图", "工作花絮", "日常生活"}

// GalleryValidator checks gallery payloads, orders the photos and picks a
// cover when none is set.
var GalleryValidator = workflow.ValidatorFunc[PhotoGroup](validateGallery)

func validateGallery(action workflow.Action, _ workflow.Actor, g *PhotoGroup) error {
	g.Title = strings.TrimSpace(g.Title)
	g.Tags = trimTags(g.Tags)
	if err := maxRunes("title", g.Title, 200); err != nil {
		return err
	}
	if g.Category != "" && !oneOf(g.Category, GalleryCategories) {
		return workflow.Validationf("unknown gallery category %q", g.Category)
	}
	g.Photos = append([]Photo(nil), g.Photos...)
	sort.SliceStable(g.Photos, func(i, j int) bool { return g.Photos[i].SortOrder < g.Photos[j].SortOrder })
	if g.Year == "" && g.Date != nil {
		g.Year = g.Date.Format("2006")
	}

	if !strict(action) {
		return nil
	}
	if err := firstErr(required("title", g.Title), required("category", g.Category)); err != nil {
		return err
	}
	if len(g.Photos) == 0 {
		return workflow.Validationf("a gallery needs at least one photo")
	}
	for i, p := range g.Photos {
		if strings.TrimSpace(p.ImageURL) == "" {
			return workflow.Validationf("photo %d has no image url", i+1)
		}
	}
	if g.CoverImageURL == "" {
		g.CoverImageURL = g.Photos[0].ImageURL
		g.CoverThumbURL = g.Photos[0].ThumbURL
	}
	return nil
}
