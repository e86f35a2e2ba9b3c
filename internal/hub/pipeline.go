package hub

import (
	"strings"
	"unicode/utf8"

	"chathub/pkg/types"
)

// ApplyContentRules runs the content checks for a non-admin sender against
// text that has already been through types.SafeText. On success it returns
// the final stored text with every replacement pair applied in list order;
// on violation it returns one of the types content-rule errors and nothing
// is persisted or broadcast.
func ApplyContentRules(text string, rules *types.ChatRules) (string, error) {
	if rules.MaxLength > 0 && utf8.RuneCountInString(text) > rules.MaxLength {
		return "", types.ErrMessageTooLong
	}

	for _, word := range rules.Blocked {
		if word != "" && strings.Contains(text, word) {
			return "", types.ErrBlockedWord
		}
	}

	urls := types.ExtractURLs(text)
	if len(urls) > 0 && !rules.AllowLink {
		return "", types.ErrLinkNotAllowed
	}
	if !rules.AllowImage {
		for _, u := range urls {
			if types.IsImageURL(u) {
				return "", types.ErrImageNotAllowed
			}
		}
	}

	final := text
	for _, pair := range rules.Replace {
		if pair.From != "" {
			final = strings.ReplaceAll(final, pair.From, pair.To)
		}
	}

	return final, nil
}
