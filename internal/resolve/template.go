package resolve

import (
	"strings"
	"time"
)

// Time template tokens recognized in resolved text.
const (
	TemplateTime    = "{{current_time}}"
	TemplateTime24h = "{{current_time_24h}}"
	TemplateDate    = "{{current_date}}"
	TemplateDay     = "{{current_day}}"
)

var templateLayouts = []struct {
	token  string
	layout string
}{
	{TemplateTime, "3:04 PM"},
	{TemplateTime24h, "15:04"},
	{TemplateDate, "Jan 2, 2006"},
	{TemplateDay, "Monday"},
}

// ExpandTemplates substitutes every recognized time template in text with
// now formatted in now's location. Text without "{{" is returned unchanged,
// as are unrecognized templates.
func ExpandTemplates(text string, now time.Time) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	for _, tl := range templateLayouts {
		if strings.Contains(text, tl.token) {
			text = strings.ReplaceAll(text, tl.token, now.Format(tl.layout))
		}
	}
	return text
}
