package models

// User представляет пользователя, зарегистрированного через внешний identity provider
type User struct {
	ID    int64
	Sub   string // идентификатор субъекта из токена (уникальный)
	Email string
	Name  string
}
