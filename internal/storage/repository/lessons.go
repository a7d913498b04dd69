package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/lesson-platform/internal/models"
)

const lessonColumns = `uid, title, description, content, video_url, thumbnail_url,
			      duration, category, tags, is_premium, author, sort_order, created_at`

func scanLesson(scanner interface{ Scan(...any) error }) (*models.Lesson, error) {
	l := &models.Lesson{}
	var tags []byte
	if err := scanner.Scan(&l.UID, &l.Title, &l.Description, &l.Content,
		&l.VideoURL, &l.ThumbnailURL, &l.Duration, &l.Category, &tags,
		&l.IsPremium, &l.Author, &l.SortOrder, &l.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tags, &l.Tags); err != nil {
		return nil, err
	}
	return l, nil
}

// CreateLesson сохраняет новый урок.
func (s *Storage) CreateLesson(ctx context.Context, lesson models.Lesson) error {
	const op = "storage.CreateLesson"

	tags, err := json.Marshal(lesson.Tags)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	query := `INSERT INTO lessons (uid, title, description, content, video_url, thumbnail_url,
			      duration, category, tags, is_premium, author, sort_order)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := s.DB.ExecContext(ctx, query,
		lesson.UID, lesson.Title, lesson.Description, lesson.Content,
		lesson.VideoURL, lesson.ThumbnailURL, lesson.Duration, lesson.Category,
		tags, lesson.IsPremium, lesson.Author, lesson.SortOrder); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ReadLesson возвращает урок по его UID.
func (s *Storage) ReadLesson(ctx context.Context, uid string) (*models.Lesson, error) {
	const op = "storage.ReadLesson"

	query := `SELECT ` + lessonColumns + `
			  FROM lessons
			  WHERE uid = $1`
	l, err := scanLesson(s.DB.QueryRowContext(ctx, query, uid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrLessonNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return l, nil
}

// UpdateLesson обновляет данные урока по UID и возвращает количество
// обновлённых записей.
func (s *Storage) UpdateLesson(ctx context.Context, lesson models.Lesson) (int, error) {
	const op = "storage.UpdateLesson"

	tags, err := json.Marshal(lesson.Tags)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	query := `UPDATE lessons
			  SET title = $1, description = $2, content = $3, video_url = $4,
			      thumbnail_url = $5, duration = $6, category = $7, tags = $8,
			      is_premium = $9, author = $10, sort_order = $11
			  WHERE uid = $12`
	res, err := s.DB.ExecContext(ctx, query,
		lesson.Title, lesson.Description, lesson.Content, lesson.VideoURL,
		lesson.ThumbnailURL, lesson.Duration, lesson.Category, tags,
		lesson.IsPremium, lesson.Author, lesson.SortOrder, lesson.UID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rows), nil
}

// RemoveLesson удаляет урок по UID и возвращает количество удалённых записей.
func (s *Storage) RemoveLesson(ctx context.Context, uid string) (int, error) {
	const op = "storage.RemoveLesson"

	query := `DELETE FROM lessons WHERE uid = $1`
	res, err := s.DB.ExecContext(ctx, query, uid)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rows), nil
}

// ListLessons возвращает страницу уроков по фильтру и общее количество
// подходящих записей.
func (s *Storage) ListLessons(ctx context.Context, filter models.LessonFilter) ([]*models.Lesson, int, error) {
	const op = "storage.ListLessons"

	where := " WHERE 1=1"
	args := []any{}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.IsPremium != nil {
		args = append(args, *filter.IsPremium)
		where += fmt.Sprintf(" AND is_premium = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(" AND (title ILIKE $%d OR description ILIKE $%d)", len(args), len(args))
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM lessons`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + lessonColumns + ` FROM lessons` + where +
		fmt.Sprintf(` ORDER BY sort_order, created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, l)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return result, total, nil
}
