package models

import "time"

// Lesson представляет урок каталога. Уроки с IsPremium=true доступны
// только пользователям с активной подпиской.
type Lesson struct {
	UID          string    // Уникальный идентификатор урока
	Title        string    // Заголовок
	Description  string    // Краткое описание
	Content      string    // Содержимое урока
	VideoURL     string    // Ссылка на видео (опционально)
	ThumbnailURL string    // Ссылка на превью (опционально)
	Duration     int       // Длительность в минутах
	Category     string    // Категория
	Tags         []string  // Теги
	IsPremium    bool      // Признак платного контента
	Author       string    // Автор
	SortOrder    int       // Порядок сортировки в каталоге
	CreatedAt    time.Time
}

// DummyLesson используется для приёма данных урока из JSON-запроса
// до их валидации и преобразования в Lesson.
type DummyLesson struct {
	Title        string   `json:"title" validate:"required,max=200"`          // Заголовок
	Description  string   `json:"description" validate:"required,max=1000"`   // Описание
	Content      string   `json:"content" validate:"required"`                // Содержимое
	VideoURL     string   `json:"video_url" validate:"omitempty,url"`         // Видео (опционально)
	ThumbnailURL string   `json:"thumbnail_url" validate:"omitempty,url"`     // Превью (опционально)
	Duration     int      `json:"duration" validate:"required,gte=1,lte=480"` // Длительность (1..480 минут)
	Category     string   `json:"category" validate:"required,max=100"`       // Категория
	Tags         []string `json:"tags" validate:"omitempty,dive,max=50"`      // Теги
	IsPremium    bool     `json:"is_premium"`                                 // Платный контент
	Author       string   `json:"author" validate:"required,max=100"`         // Автор
	SortOrder    int      `json:"sort_order" validate:"omitempty,gte=0"`      // Порядок сортировки
}

// LessonFilter — параметры выборки уроков, передаваемые в слой доступа к данным.
// IsPremium == nil означает отсутствие фильтра по признаку платности.
type LessonFilter struct {
	Category  string  // Категория (пустая строка — без фильтра)
	Search    string  // Поисковая подстрока по заголовку и описанию
	IsPremium *bool   // Фильтр по платности (nil — без фильтра)
	Limit     int     // Размер страницы
	Offset    int     // Смещение
}
