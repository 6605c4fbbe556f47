package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// VideoInfo is the subset of extractor output the bot needs
type VideoInfo struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Uploader    string   `json:"uploader"`
	Duration    float64  `json:"duration"`
	Thumbnail   string   `json:"thumbnail"`
	OriginalURL string   `json:"original_url"`
	Formats     []Format `json:"formats"`
}

// Format is a single downloadable rendition
type Format struct {
	FormatID      string `json:"format_id"`
	URL           string `json:"url"`
	Ext           string `json:"ext"`
	Width         *int   `json:"width,omitempty"`
	Height        *int   `json:"height,omitempty"`
	Resolution    string `json:"resolution"`
	VideoExt      string `json:"video_ext"`
	AudioChannels *int   `json:"audio_channels,omitempty"`
	Protocol      string `json:"protocol,omitempty"`
}

// Label returns the button text for the format
func (f Format) Label() string {
	if f.VideoExt == "none" {
		return "Audio only"
	}
	return fmt.Sprintf("%dp", intOrZero(f.Height))
}

// ServiceVK does not report audio information for its formats
const ServiceVK = "vk"

var standardSizes = map[int]bool{360: true, 480: true, 720: true, 1080: true}

// SelectFormats picks the formats offered to the user: standard sizes with
// audio, one per resolution, tallest first.
func SelectFormats(formats []Format, service string) []Format {
	vk := service == ServiceVK
	seen := make(map[string]bool)
	var result []Format

	for _, f := range formats {
		if !vk && (f.Ext != "mp4" || f.Width == nil) {
			continue
		}
		if !standardSizes[intOrZero(f.Height)] && !standardSizes[intOrZero(f.Width)] {
			continue
		}
		if !vk && f.AudioChannels == nil {
			continue
		}
		if seen[f.Resolution] {
			continue
		}
		seen[f.Resolution] = true
		result = append(result, f)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return intOrZero(result[i].Height) > intOrZero(result[j].Height)
	})
	return result
}

// FilterProtocols keeps formats fetched over protocols the fetcher supports
func FilterProtocols(formats []Format) []Format {
	kept := formats[:0:0]
	for _, f := range formats {
		protocol := f.Protocol
		if protocol == "" {
			protocol = "https"
		}
		if protocol == "https" || protocol == "m3u" {
			kept = append(kept, f)
		}
	}
	return kept
}

// FormatDuration renders seconds as H:MM:SS
func FormatDuration(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// https://regex101.com/r/Plm2NN/1
var linkRegex = regexp.MustCompile(
	`(?i)^https?://(?:www\.)?(?P<domain>[-a-zA-Z0-9@:%._+~#=]{1,256})\.[a-zA-Z0-9()]{1,6}\b` +
		`(?:[-a-zA-Z0-9()@:%_+.~#?&/=]*)$`)

// ParseLink validates text as a link and returns its second-level domain
func ParseLink(text string) (string, bool) {
	m := linkRegex.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[linkRegex.SubexpIndex("domain")]), true
}
