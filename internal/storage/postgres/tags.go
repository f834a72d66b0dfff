package postgres

import (
	"database/sql"
	"strings"
)

const tagSeparator = ","

// encodeTags сворачивает список тегов в одну колонку: nil или пустой список хранится как NULL.
func encodeTags(tags []string) sql.NullString {
	if len(tags) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.Join(tags, tagSeparator), Valid: true}
}

// decodeTags разворачивает колонку обратно; NULL и пустая строка дают пустой список.
func decodeTags(column sql.NullString) []string {
	if !column.Valid || strings.TrimSpace(column.String) == "" {
		return []string{}
	}
	return strings.Split(column.String, tagSeparator)
}
