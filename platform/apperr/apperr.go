package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind классифицирует ошибку бизнес-логики.
// Классификация определяет HTTP статус и политику retry на стороне вызывающего:
// validation/not_found/unauthorized не ретраятся, conflict ретраится после
// повторного чтения состояния, unavailable безопасно ретраить целиком.
type Kind int

const (
	// KindValidation — некорректный или неполный ввод
	KindValidation Kind = iota + 1
	// KindNotFound — сущность, на которую ссылаются, отсутствует
	KindNotFound
	// KindConflict — недопустимый переход состояния, дубликат создания
	// или проигранная гонка optimistic lock
	KindConflict
	// KindUnauthorized — вызывающий не владеет сущностью или не имеет права на операцию
	KindUnauthorized
	// KindUnavailable — синхронный вызов к соседнему сервису упал или превысил таймаут;
	// операция завершается отказом (fail-closed), никогда не fail-open
	KindUnavailable
)

// Error представляет классифицированную ошибку бизнес-логики
type Error struct {
	Kind Kind
	Msg  string
	Err  error // исходная ошибка, если есть
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation создаёт ошибку валидации входных данных
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFound создаёт ошибку отсутствия сущности
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflict создаёт ошибку конфликта состояния
// Для недопустимых переходов сообщение должно называть оба статуса
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Unauthorized создаёт ошибку отсутствия прав на операцию
func Unauthorized(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthorized, Msg: fmt.Sprintf(format, args...)}
}

// Unavailable оборачивает ошибку вызова соседнего сервиса (таймаут, transport error)
func Unavailable(err error, format string, args ...any) *Error {
	return &Error{Kind: KindUnavailable, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf возвращает Kind ошибки или 0, если ошибка не классифицирована
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsValidation сообщает, является ли ошибка ошибкой валидации
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound сообщает, является ли ошибка ошибкой отсутствия сущности
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict сообщает, является ли ошибка конфликтом состояния
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsUnauthorized сообщает, является ли ошибка ошибкой прав доступа
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }

// IsUnavailable сообщает, является ли ошибка недоступностью соседнего сервиса
func IsUnavailable(err error) bool { return KindOf(err) == KindUnavailable }

// HTTPStatus возвращает HTTP статус для классифицированной ошибки.
// Неклассифицированные ошибки считаются внутренними (500).
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusForbidden
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
