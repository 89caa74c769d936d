package model

import "strings"

// CategoryOther switches the form to a free-text custom category.
const CategoryOther = "Other"

var Categories = []string{"Gaming", "Vlog", "Fashion", "Tech", "Cooking", CategoryOther}

type Platform struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	AspectRatio string `json:"aspect_ratio"`
}

var Platforms = []Platform{
	{ID: "youtube", Label: "Youtube", AspectRatio: "16:9"},
	{ID: "insta-reel", Label: "Insta-reel", AspectRatio: "9:16"},
	{ID: "insta-post", Label: "Insta-post", AspectRatio: "1:1"},
	{ID: "x", Label: "X (Twitter)", AspectRatio: "16:9"},
}

func LookupPlatform(id string) (Platform, bool) {
	for _, p := range Platforms {
		if p.ID == id {
			return p, true
		}
	}
	return Platform{}, false
}

// FormState holds the user-entered generation parameters. CustomCategory only
// means something when Category is CategoryOther.
type FormState struct {
	Category       string `json:"category"`
	CustomCategory string `json:"customCategory"`
	Platform       string `json:"platform"`
	Focus          string `json:"focus"`
	Style          string `json:"style"`
	Addons         string `json:"addons"`
}

// DisplayCategory is the category as the user sees it.
func (f FormState) DisplayCategory() string {
	if f.Category == CategoryOther {
		if custom := strings.TrimSpace(f.CustomCategory); custom != "" {
			return custom
		}
	}
	return f.Category
}
