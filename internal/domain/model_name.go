package domain

import "strings"

const folderModelScheme = "gpt://"

// NormalizeModelName strips the gpt://folder_id/ prefix and any version suffix
// from folder-scoped model URIs; other names are returned unchanged.
// "gpt://b1g8t5pmnjifaov0paff/yandexgpt/rc" becomes "yandexgpt".
func NormalizeModelName(model string) string {
	_, rest, found := strings.Cut(model, folderModelScheme)
	if !found {
		return model
	}

	_, name, found := strings.Cut(rest, "/")
	if !found {
		return model
	}

	name, _, _ = strings.Cut(name, "/")

	return name
}
