// Package storyurl разбирает ссылки на истории телеграм-аккаунтов.
//
// Поддерживаются два формата: t.me/<account>/s/<id> и t.me/<account>/<id>,
// с необязательной схемой http/https. Этот контракт — единственная часть
// пользовательского интерфейса, которую обязана соблюдать бизнес-логика
// при валидации входных данных загрузки.
package storyurl

import (
	"errors"
	"regexp"
	"strconv"
)

// ErrNotStoryURL возвращается, когда строка не является ссылкой на историю.
var ErrNotStoryURL = errors.New("not a story url")

var patterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:https?://)?t\.me/([a-zA-Z0-9_]+)/s/(\d+)$`),
	regexp.MustCompile(`^(?:https?://)?t\.me/([a-zA-Z0-9_]+)/(\d+)$`),
}

// Parse извлекает имя аккаунта и номер истории из ссылки.
func Parse(raw string) (account string, storyID int, err error) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		id, convErr := strconv.Atoi(m[2])
		if convErr != nil {
			return "", 0, ErrNotStoryURL
		}
		return m[1], id, nil
	}
	return "", 0, ErrNotStoryURL
}

// IsStoryURL сообщает, похожа ли строка на ссылку на историю.
func IsStoryURL(raw string) bool {
	_, _, err := Parse(raw)
	return err == nil
}
