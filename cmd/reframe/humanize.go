package main

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// humanizeStatus turns a status label into display form, e.g.
// "estimating_pose" becomes "Estimating Pose".
func humanizeStatus(status string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(status), "_", " ")
	if cleaned == "" {
		return "Unknown"
	}
	return titleCaser.String(cleaned)
}
